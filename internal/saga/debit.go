package saga

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ewallet/transfer-saga/internal/repo"
)

// DebitExecutor decrements the sender's balance under an exclusive row lock.
// The lock-read-validate-write-commit section is the system's sole
// concurrency-control point for monetary correctness; no lock is held across
// saga steps.
type DebitExecutor struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewDebitExecutor(r repo.RepositoryInterface, logger *zap.SugaredLogger) *DebitExecutor {
	return &DebitExecutor{repo: r, log: logger}
}

// Debit re-validates the account under SELECT ... FOR UPDATE and commits the
// decrement. Business errors pass through untouched; anything else is rolled
// back and wrapped as ErrUnexpected so the orchestrator retries it.
func (d *DebitExecutor) Debit(ctx context.Context, in CheckOutput) (DebitOutput, error) {
	err := d.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := d.repo.GetAccountForUpdate(ctx, tx, in.SenderAccountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no account %s under lock", ErrAccountNotFound, in.SenderAccountID)
			}
			return err
		}

		if account.Balance.LessThan(in.Amount) {
			return fmt.Errorf("%w: balance=%s required=%s under lock",
				ErrInsufficientBalance, account.Balance, in.Amount)
		}

		newBal := account.Balance.Sub(in.Amount)
		if err := d.repo.UpdateAccountBalance(ctx, tx, account.ID, newBal); err != nil {
			return err
		}
		if err := d.repo.CacheBalance(ctx, account.ID, newBal); err != nil {
			d.log.Warnw("cache balance", "account_id", account.ID, "err", err)
		}
		d.log.Infow("debited sender",
			"account_id", account.ID, "amount", in.Amount, "new_balance", newBal)
		return nil
	})
	if err != nil {
		if Terminal(err) {
			return DebitOutput{}, err
		}
		// rolled back in full; classified transient
		return DebitOutput{}, wrapUnexpected(err)
	}
	return DebitOutput{ReceiverOwnerID: in.ReceiverOwnerID, Amount: in.Amount}, nil
}
