package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ewallet/transfer-saga/internal/metrics"
	"github.com/ewallet/transfer-saga/internal/model"
	"github.com/ewallet/transfer-saga/internal/repo"
)

// Result is the writer outcome. DUPLICATE is not an error: it is the
// idempotency signal the caller asked for.
type Result string

const (
	ResultCreated   Result = "CREATED"
	ResultDuplicate Result = "DUPLICATE"
	ResultFailed    Result = "FAILED"
)

// CreateRequest is the trigger input.
type CreateRequest struct {
	IdempotentKey string
	SenderID      string
	ReceiverID    string
	Amount        decimal.Decimal
	Type          string
	Details       string
}

// CreateResponse always carries the pre-generated transaction id, even on
// DUPLICATE and FAILED, for log and compensation correlation.
type CreateResponse struct {
	TransactionID string `json:"transaction_id"`
	Result        Result `json:"result"`
	Message       string `json:"message"`
}

// Writer is the idempotent transaction-record writer: at most one record per
// idempotent key, ever, enforced by a single all-or-nothing commit of the
// marker, the record and the INSERT change event.
type Writer struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewWriter(r repo.RepositoryInterface, logger *zap.SugaredLogger) *Writer {
	return &Writer{repo: r, log: logger}
}

// Create never returns a Go error: the caller is an asynchronous producer
// that cannot usefully unwind, so failure is a typed result.
func (w *Writer) Create(ctx context.Context, req CreateRequest) CreateResponse {
	transactionID := model.KeyPrefixTransaction + uuid.NewString()

	if msg := validate(req); msg != "" {
		metrics.WriterResults.WithLabelValues(string(ResultFailed)).Inc()
		return CreateResponse{TransactionID: transactionID, Result: ResultFailed, Message: msg}
	}

	markerKey := model.KeyPrefixIdempotent + req.IdempotentKey
	rec := &model.TransactionRecord{
		ID:              transactionID,
		IdempotentKey:   markerKey,
		SenderOwnerID:   req.SenderID,
		ReceiverOwnerID: req.ReceiverID,
		Amount:          req.Amount,
		Status:          model.StatusPending,
		Type:            req.Type,
		Details:         req.Details,
	}

	err := w.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		marker := &model.IdempotencyMarker{Key: markerKey, TransactionID: transactionID}
		if err := w.repo.CreateMarker(ctx, tx, marker); err != nil {
			return err
		}
		if err := w.repo.CreateRecord(ctx, tx, rec); err != nil {
			return err
		}
		return w.repo.CreateChangeEvent(ctx, tx, repo.NewChangeEvent(model.ChangeInsert, rec))
	})

	switch {
	case err == nil:
		w.log.Infow("transaction created", "transaction_id", transactionID)
		metrics.WriterResults.WithLabelValues(string(ResultCreated)).Inc()
		return CreateResponse{
			TransactionID: transactionID,
			Result:        ResultCreated,
			Message:       fmt.Sprintf("transaction %s created successfully", transactionID),
		}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// rolled back whole; no marker, record or change event was written
		w.log.Infow("duplicate idempotent key, skipping insert",
			"idempotent_key", req.IdempotentKey, "transaction_id", transactionID)
		metrics.WriterResults.WithLabelValues(string(ResultDuplicate)).Inc()
		return CreateResponse{
			TransactionID: transactionID,
			Result:        ResultDuplicate,
			Message:       fmt.Sprintf("transaction for idempotent key %s already exists", req.IdempotentKey),
		}
	default:
		w.log.Errorw("failed to create transaction",
			"transaction_id", transactionID, "err", err)
		metrics.WriterResults.WithLabelValues(string(ResultFailed)).Inc()
		return CreateResponse{
			TransactionID: transactionID,
			Result:        ResultFailed,
			Message:       "error: " + err.Error(),
		}
	}
}

func validate(req CreateRequest) string {
	switch {
	case req.IdempotentKey == "":
		return "idempotent_key is required"
	case req.SenderID == "":
		return "sender_id is required"
	case req.ReceiverID == "":
		return "receiver_id is required"
	case req.Amount.LessThanOrEqual(decimal.Zero):
		return "amount must be positive"
	default:
		return ""
	}
}
