package saga

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ewallet/transfer-saga/internal/metrics"
	"github.com/ewallet/transfer-saga/internal/model"
	"github.com/ewallet/transfer-saga/internal/repo"
)

// BalanceChecker is the check step seen by the orchestrator.
type BalanceChecker interface {
	Check(ctx context.Context, inv Invocation) (CheckOutput, error)
}

// Debiter is the debit step seen by the orchestrator.
type Debiter interface {
	Debit(ctx context.Context, in CheckOutput) (DebitOutput, error)
}

// RetryPolicy bounds the debit step's transient-error retries.
type RetryPolicy struct {
	MaxRetries   int
	BaseInterval time.Duration
	Multiplier   float64
}

// Delay returns the backoff before retry n (0-based): base * multiplier^n.
func (p RetryPolicy) Delay(retry int) time.Duration {
	return time.Duration(float64(p.BaseInterval) * math.Pow(p.Multiplier, float64(retry)))
}

// Orchestrator drives one transfer saga: CHECKING → DEBITING → DONE, any
// failure → COMPENSATING → FAILED. It is the only component that decides
// retry-vs-compensate.
type Orchestrator struct {
	guard   BalanceChecker
	debiter Debiter
	comp    Compensator
	ledger  repo.RepositoryInterface
	policy  RetryPolicy
	timeout time.Duration
	log     *zap.SugaredLogger

	// sleep is replaced in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(
	guard BalanceChecker,
	debiter Debiter,
	comp Compensator,
	ledger repo.RepositoryInterface,
	policy RetryPolicy,
	timeout time.Duration,
	logger *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		guard:   guard,
		debiter: debiter,
		comp:    comp,
		ledger:  ledger,
		policy:  policy,
		timeout: timeout,
		log:     logger,
		sleep:   waitFor,
	}
}

// Run executes the saga for one invocation. The returned error is the cause
// carried into compensation, or nil when the saga reached DONE.
func (o *Orchestrator) Run(ctx context.Context, inv Invocation) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	metrics.SagasStarted.Inc()
	o.log.Infow("saga started", "transaction_id", inv.TransactionID)

	state := StateChecking
	stage := stageCheck
	out, cause := o.guard.Check(ctx, inv)
	state, effect := Next(state, o.eventFor(ctx, cause))

	if effect == EffectRunDebit {
		stage = stageDebit
		cause = o.debitWithRetry(ctx, inv.TransactionID, out)
		state, effect = Next(state, o.eventFor(ctx, cause))
	}

	switch effect {
	case EffectComplete:
		if err := o.ledger.UpdateRecordStatus(ctx, inv.TransactionID, model.StatusDebited, ""); err != nil {
			o.log.Errorw("mark debited", "transaction_id", inv.TransactionID, "err", err)
		}
		metrics.SagasCompleted.Inc()
		o.log.Infow("saga done", "transaction_id", inv.TransactionID, "state", state.String())
		return nil
	case EffectCompensate:
		o.compensate(inv, cause, stage)
		state, _ = Next(state, EventStepSucceeded)
		o.log.Errorw("saga failed",
			"transaction_id", inv.TransactionID, "state", state.String(), "cause", cause)
		return cause
	}
	return cause
}

// debitWithRetry runs the debit step under the retry policy: business errors
// compensate immediately, transient errors back off and retry until the
// budget or the saga deadline runs out.
func (o *Orchestrator) debitWithRetry(ctx context.Context, transactionID string, in CheckOutput) error {
	attempts := 1 + o.policy.MaxRetries
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if _, err = o.debiter.Debit(ctx, in); err == nil {
			return nil
		}
		if Terminal(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		delay := o.policy.Delay(attempt - 1)
		o.log.Warnw("debit attempt failed, retrying",
			"transaction_id", transactionID, "attempt", attempt, "backoff", delay, "err", err)
		metrics.DebitRetries.Inc()
		if sleepErr := o.sleep(ctx, delay); sleepErr != nil {
			// deadline hit while backing off
			return err
		}
	}
	return err
}

// compensate records the failure and invokes the compensator. It runs on a
// fresh context: the saga deadline expiring is itself a compensation cause
// and must not starve the catch path.
func (o *Orchestrator) compensate(inv Invocation, cause error, stage string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	details := ErrorCode(cause, stage)
	if cause != nil {
		details = details + ": " + cause.Error()
	}
	if err := o.ledger.UpdateRecordStatus(ctx, inv.TransactionID, model.StatusFailed, details); err != nil {
		o.log.Errorw("mark failed", "transaction_id", inv.TransactionID, "err", err)
	}
	if err := o.comp.Compensate(ctx, inv, cause); err != nil {
		o.log.Errorw("compensator error", "transaction_id", inv.TransactionID, "err", err)
	}
}

func (o *Orchestrator) eventFor(ctx context.Context, err error) Event {
	if err == nil {
		return EventStepSucceeded
	}
	if ctx.Err() != nil {
		return EventTimedOut
	}
	return EventStepFailed
}

func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
