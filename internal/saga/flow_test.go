package saga_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ewallet/transfer-saga/internal/ledger"
	"github.com/ewallet/transfer-saga/internal/logger"
	"github.com/ewallet/transfer-saga/internal/model"
	"github.com/ewallet/transfer-saga/internal/repo"
	"github.com/ewallet/transfer-saga/internal/saga"
	"github.com/ewallet/transfer-saga/internal/stream"
)

type flowEnv struct {
	db     *gorm.DB
	repo   repo.RepositoryInterface
	writer *ledger.Writer
	orch   *saga.Orchestrator
}

func newFlowEnv(t *testing.T, dsn string, senderBalance int64) *flowEnv {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&model.Account{},
		&model.TransactionRecord{},
		&model.IdempotencyMarker{},
		&model.ChangeEvent{},
	))
	assert.NoError(t, db.Create(&model.Account{
		ID:      "ACCOUNT#U1",
		OwnerID: "U1",
		Balance: decimal.NewFromInt(senderBalance),
	}).Error)

	rdb, _ := redismock.NewClientMock()
	log, _ := logger.NewLogger()
	r := repo.NewRepository(db, rdb, &kafka.Writer{}, log)

	guard := saga.NewBalanceGuard(r, log)
	debiter := saga.NewDebitExecutor(r, log)
	comp := saga.NewLedgerCompensator(r, log)
	orch := saga.NewOrchestrator(guard, debiter, comp, r, saga.RetryPolicy{
		MaxRetries:   3,
		BaseInterval: 10 * time.Millisecond,
		Multiplier:   2.0,
	}, 5*time.Minute, log)

	return &flowEnv{db: db, repo: r, writer: ledger.NewWriter(r, log), orch: orch}
}

// invocationFromFeed replays the single INSERT change event through the
// stream projection, the way the worker would.
func (e *flowEnv) invocationFromFeed(t *testing.T) saga.Invocation {
	events, err := e.repo.PollChangeEvents(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, model.ChangeInsert, events[0].Kind)

	img, err := stream.FromChangeRow(events[0]).Record()
	assert.NoError(t, err)
	return saga.Invocation{
		TransactionID:   img.TransactionID,
		SenderOwnerID:   img.SenderOwnerID,
		ReceiverOwnerID: img.ReceiverOwnerID,
		Amount:          img.Amount,
	}
}

func TestTransferSaga_HappyPath(t *testing.T) {
	env := newFlowEnv(t, "file:flowhappy?mode=memory&cache=shared", 100)
	ctx := context.Background()

	req := ledger.CreateRequest{
		IdempotentKey: "k1",
		SenderID:      "U1",
		ReceiverID:    "U2",
		Amount:        decimal.NewFromInt(40),
		Type:          "TRANSFER",
	}

	first := env.writer.Create(ctx, req)
	assert.Equal(t, ledger.ResultCreated, first.Result)

	second := env.writer.Create(ctx, req)
	assert.Equal(t, ledger.ResultDuplicate, second.Result)

	inv := env.invocationFromFeed(t)
	assert.Equal(t, first.TransactionID, inv.TransactionID)

	assert.NoError(t, env.orch.Run(ctx, inv))

	account, err := env.repo.GetAccountByOwner(ctx, "U1")
	assert.NoError(t, err)
	assert.Equal(t, "60", account.Balance.StringFixed(0))

	rec, err := env.repo.GetRecord(ctx, inv.TransactionID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusDebited, rec.Status)
}

func TestTransferSaga_InsufficientBalanceCompensates(t *testing.T) {
	env := newFlowEnv(t, "file:flowcomp?mode=memory&cache=shared", 10)
	ctx := context.Background()

	resp := env.writer.Create(ctx, ledger.CreateRequest{
		IdempotentKey: "k2",
		SenderID:      "U1",
		ReceiverID:    "U2",
		Amount:        decimal.NewFromInt(40),
		Type:          "TRANSFER",
	})
	assert.Equal(t, ledger.ResultCreated, resp.Result)

	inv := env.invocationFromFeed(t)
	err := env.orch.Run(ctx, inv)
	assert.ErrorIs(t, err, saga.ErrInsufficientBalance)

	// zero retries on the business error; sender untouched
	account, _ := env.repo.GetAccountByOwner(ctx, "U1")
	assert.Equal(t, "10", account.Balance.StringFixed(0))

	rec, err := env.repo.GetRecord(ctx, inv.TransactionID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusCompensated, rec.Status)
	assert.Contains(t, rec.Details, "insufficient balance")
}
