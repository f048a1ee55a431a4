package saga

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ewallet/transfer-saga/internal/logger"
	"github.com/ewallet/transfer-saga/internal/model"
	"github.com/ewallet/transfer-saga/internal/repo"
)

func newStepsEnv(t *testing.T, balance int64) repo.RepositoryInterface {
	// a named shared-cache DB keeps the schema visible across pooled conns
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Account{}))

	assert.NoError(t, db.Create(&model.Account{
		ID:      "ACCOUNT#1",
		OwnerID: "U1",
		Balance: decimal.NewFromInt(balance),
	}).Error)

	rdb, _ := redismock.NewClientMock() // cache failures are soft
	log, _ := logger.NewLogger()
	return repo.NewRepository(db, rdb, &kafka.Writer{}, log)
}

func TestBalanceGuard_Pass(t *testing.T) {
	r := newStepsEnv(t, 100)
	log, _ := logger.NewLogger()
	guard := NewBalanceGuard(r, log)

	out, err := guard.Check(context.Background(), Invocation{
		TransactionID:   "TRANSACTION#t1",
		SenderOwnerID:   "U1",
		ReceiverOwnerID: "U2",
		Amount:          decimal.NewFromInt(40),
	})
	assert.NoError(t, err)
	assert.Equal(t, "ACCOUNT#1", out.SenderAccountID)
	assert.Equal(t, "U2", out.ReceiverOwnerID)
	assert.Equal(t, "40", out.Amount.StringFixed(0))
}

func TestBalanceGuard_InsufficientBalance(t *testing.T) {
	r := newStepsEnv(t, 10)
	log, _ := logger.NewLogger()
	guard := NewBalanceGuard(r, log)

	_, err := guard.Check(context.Background(), Invocation{
		SenderOwnerID: "U1",
		Amount:        decimal.NewFromInt(40),
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, Terminal(err))
}

func TestBalanceGuard_AccountNotFound(t *testing.T) {
	r := newStepsEnv(t, 100)
	log, _ := logger.NewLogger()
	guard := NewBalanceGuard(r, log)

	_, err := guard.Check(context.Background(), Invocation{
		SenderOwnerID: "nobody",
		Amount:        decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.True(t, Terminal(err))
}

func TestDebitExecutor_Commits(t *testing.T) {
	r := newStepsEnv(t, 100)
	log, _ := logger.NewLogger()
	debiter := NewDebitExecutor(r, log)

	out, err := debiter.Debit(context.Background(), CheckOutput{
		SenderAccountID: "ACCOUNT#1",
		ReceiverOwnerID: "U2",
		Amount:          decimal.NewFromInt(40),
	})
	assert.NoError(t, err)
	assert.Equal(t, "U2", out.ReceiverOwnerID)

	account, err := r.GetAccountByOwner(context.Background(), "U1")
	assert.NoError(t, err)
	assert.Equal(t, "60", account.Balance.StringFixed(0))
}

func TestDebitExecutor_AccountNotFound(t *testing.T) {
	r := newStepsEnv(t, 100)
	log, _ := logger.NewLogger()
	debiter := NewDebitExecutor(r, log)

	_, err := debiter.Debit(context.Background(), CheckOutput{
		SenderAccountID: "ACCOUNT#missing",
		Amount:          decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDebitExecutor_RevalidatesUnderLock(t *testing.T) {
	// the guard may have passed on a stale read; the locked re-check is
	// authoritative
	r := newStepsEnv(t, 10)
	log, _ := logger.NewLogger()
	debiter := NewDebitExecutor(r, log)

	_, err := debiter.Debit(context.Background(), CheckOutput{
		SenderAccountID: "ACCOUNT#1",
		Amount:          decimal.NewFromInt(40),
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	account, _ := r.GetAccountByOwner(context.Background(), "U1")
	assert.Equal(t, "10", account.Balance.StringFixed(0))
}

func TestDebit_Monotonicity(t *testing.T) {
	r := newStepsEnv(t, 100)
	log, _ := logger.NewLogger()
	debiter := NewDebitExecutor(r, log)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := debiter.Debit(context.Background(), CheckOutput{
				SenderAccountID: "ACCOUNT#1",
				Amount:          decimal.NewFromInt(30),
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	account, err := r.GetAccountByOwner(context.Background(), "U1")
	assert.NoError(t, err)
	want := decimal.NewFromInt(100).Sub(decimal.NewFromInt(30).Mul(decimal.NewFromInt(int64(successes))))
	assert.True(t, account.Balance.Equal(want),
		"final balance %s must equal 100 - 30*%d", account.Balance, successes)
	assert.False(t, account.Balance.IsNegative())
}
