package saga

import (
	"context"

	"go.uber.org/zap"

	"github.com/ewallet/transfer-saga/internal/metrics"
	"github.com/ewallet/transfer-saga/internal/model"
	"github.com/ewallet/transfer-saga/internal/repo"
)

// Compensator is the terminal action for an unrecoverable saga. It must be
// safe to call more than once for the same invocation: the catch path
// delivers at-least-once.
type Compensator interface {
	Compensate(ctx context.Context, inv Invocation, cause error) error
}

// LedgerCompensator acknowledges the failure in the ledger: the record moves
// to COMPENSATED with the cause recorded in details. A repeat call rewrites
// the same terminal status, so it is idempotent at the store level.
type LedgerCompensator struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewLedgerCompensator(r repo.RepositoryInterface, logger *zap.SugaredLogger) *LedgerCompensator {
	return &LedgerCompensator{repo: r, log: logger}
}

func (c *LedgerCompensator) Compensate(ctx context.Context, inv Invocation, cause error) error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	c.log.Infow("compensating transaction",
		"transaction_id", inv.TransactionID, "cause", details)
	metrics.SagasCompensated.Inc()

	if err := c.repo.UpdateRecordStatus(ctx, inv.TransactionID, model.StatusCompensated, details); err != nil {
		// escalation channel of last resort
		c.log.Errorw("compensation write failed",
			"transaction_id", inv.TransactionID, "err", err)
		return err
	}
	return nil
}
