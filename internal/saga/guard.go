package saga

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ewallet/transfer-saga/internal/repo"
)

// BalanceGuard resolves the sender's account and verifies funds before the
// debit. The read is unlocked; the debit re-validates under the row lock, so
// a balance change between check and debit is caught there, not here.
type BalanceGuard struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewBalanceGuard(r repo.RepositoryInterface, logger *zap.SugaredLogger) *BalanceGuard {
	return &BalanceGuard{repo: r, log: logger}
}

// Check looks up the sender by owner id and verifies balance >= amount.
// Returns the resolved account id for the debit step.
func (g *BalanceGuard) Check(ctx context.Context, inv Invocation) (CheckOutput, error) {
	account, err := g.repo.GetAccountByOwner(ctx, inv.SenderOwnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CheckOutput{}, fmt.Errorf("%w: no account for sender %s", ErrAccountNotFound, inv.SenderOwnerID)
		}
		return CheckOutput{}, fmt.Errorf("lookup sender %s: %w", inv.SenderOwnerID, err)
	}

	if account.Balance.LessThan(inv.Amount) {
		g.log.Errorw("insufficient funds",
			"transaction_id", inv.TransactionID,
			"balance", account.Balance, "required", inv.Amount)
		return CheckOutput{}, fmt.Errorf("%w: balance=%s required=%s",
			ErrInsufficientBalance, account.Balance, inv.Amount)
	}

	if err := g.repo.CacheAccountID(ctx, inv.SenderOwnerID, account.ID); err != nil {
		g.log.Warnw("cache account id", "owner_id", inv.SenderOwnerID, "err", err)
	}

	g.log.Infow("sufficient funds",
		"transaction_id", inv.TransactionID,
		"balance", account.Balance, "required", inv.Amount)

	return CheckOutput{
		SenderAccountID: account.ID,
		ReceiverOwnerID: inv.ReceiverOwnerID,
		Amount:          inv.Amount,
	}, nil
}
