package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Saga counters. Registered on the default registry; exposed via promhttp
// on the server's /metrics route.
var (
	SagasStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_saga",
		Name:      "sagas_started_total",
		Help:      "Saga invocations received from the change dispatcher.",
	})

	SagasCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_saga",
		Name:      "sagas_completed_total",
		Help:      "Sagas that reached the success terminal state.",
	})

	SagasCompensated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_saga",
		Name:      "sagas_compensated_total",
		Help:      "Sagas routed to the compensator.",
	})

	DebitRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_saga",
		Name:      "debit_retries_total",
		Help:      "Debit attempts retried after a transient failure.",
	})

	WriterResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transfer_saga",
		Name:      "writer_results_total",
		Help:      "Idempotent writer outcomes by result.",
	}, []string{"result"})

	EventsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_saga",
		Name:      "events_dispatched_total",
		Help:      "Change events that passed the dispatcher filter.",
	})

	EventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "transfer_saga",
		Name:      "events_skipped_total",
		Help:      "Change events dropped by kind or key-prefix filtering.",
	})
)
