package dispatcher

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ewallet/transfer-saga/internal/metrics"
	"github.com/ewallet/transfer-saga/internal/model"
	"github.com/ewallet/transfer-saga/internal/saga"
	"github.com/ewallet/transfer-saga/internal/stream"
)

// Runner starts one saga per invocation.
type Runner interface {
	Run(ctx context.Context, inv saga.Invocation) error
}

// Dispatcher turns ledger change events into saga invocations. The filter is
// coarse and idempotent — kind INSERT plus the transaction key prefix — not a
// dedup guarantee: the feed is at-least-once and the writer's idempotency is
// what keeps sagas at-most-once per key.
type Dispatcher struct {
	runner Runner
	log    *zap.SugaredLogger
}

func New(runner Runner, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{runner: runner, log: logger}
}

// Handle projects a qualifying INSERT into an invocation and starts the saga
// fire-and-forget. Returns whether the event was dispatched. Dispatch itself
// is never retried here; redelivery of the change event is the only retry path.
func (d *Dispatcher) Handle(ev stream.Event) bool {
	if ev.Kind != model.ChangeInsert || !strings.HasPrefix(ev.Key, model.KeyPrefixTransaction) {
		metrics.EventsSkipped.Inc()
		return false
	}

	img, err := ev.Record()
	if err != nil {
		d.log.Errorw("malformed new-image, skipping", "key", ev.Key, "err", err)
		metrics.EventsSkipped.Inc()
		return false
	}

	inv := saga.Invocation{
		TransactionID:   img.TransactionID,
		SenderOwnerID:   img.SenderOwnerID,
		ReceiverOwnerID: img.ReceiverOwnerID,
		Amount:          img.Amount,
	}

	metrics.EventsDispatched.Inc()
	d.log.Infow("dispatching saga", "transaction_id", inv.TransactionID)
	go func() {
		// outcome is observable only through the record status
		if err := d.runner.Run(context.Background(), inv); err != nil {
			d.log.Errorw("saga ended in compensation",
				"transaction_id", inv.TransactionID, "err", err)
		}
	}()
	return true
}
