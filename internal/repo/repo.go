package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ewallet/transfer-saga/internal/model"
	"github.com/ewallet/transfer-saga/internal/stream"
)

// RepositoryInterface restricts Repo methods (方便单元测试 mock)
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	GetAccountByOwner(ctx context.Context, ownerID string) (*model.Account, error)
	GetAccountForUpdate(ctx context.Context, tx *gorm.DB, accountID string) (*model.Account, error)
	UpdateAccountBalance(ctx context.Context, tx *gorm.DB, accountID string, newBalance decimal.Decimal) error

	CreateMarker(ctx context.Context, tx *gorm.DB, m *model.IdempotencyMarker) error
	CreateRecord(ctx context.Context, tx *gorm.DB, r *model.TransactionRecord) error
	GetRecord(ctx context.Context, transactionID string) (*model.TransactionRecord, error)
	UpdateRecordStatus(ctx context.Context, transactionID, status, details string) error

	CreateChangeEvent(ctx context.Context, tx *gorm.DB, ev *model.ChangeEvent) error
	PollChangeEvents(ctx context.Context, limit int) ([]model.ChangeEvent, error)
	MarkChangePublished(ctx context.Context, id uint64) error
	PublishChange(ctx context.Context, ev model.ChangeEvent) error

	CacheAccountID(ctx context.Context, ownerID, accountID string) error
	GetCachedAccountID(ctx context.Context, ownerID string) (string, error)
	CacheBalance(ctx context.Context, accountID string, bal decimal.Decimal) error
	GetCachedBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// GetAccountByOwner resolves an account by owner identity, unlocked.
func (r *Repository) GetAccountByOwner(ctx context.Context, ownerID string) (*model.Account, error) {
	var a model.Account
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccountForUpdate locks the account row.
func (r *Repository) GetAccountForUpdate(ctx context.Context, tx *gorm.DB, accountID string) (*model.Account, error) {
	var a model.Account
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", accountID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAccountBalance writes the new balance inside the caller's transaction.
func (r *Repository) UpdateAccountBalance(ctx context.Context, tx *gorm.DB, accountID string, newBalance decimal.Decimal) error {
	res := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateMarker inserts the idempotency marker; a duplicate key surfaces as
// gorm.ErrDuplicatedKey (TranslateError must be on).
func (r *Repository) CreateMarker(ctx context.Context, tx *gorm.DB, m *model.IdempotencyMarker) error {
	return tx.WithContext(ctx).Create(m).Error
}

// CreateRecord inserts the transaction record.
func (r *Repository) CreateRecord(ctx context.Context, tx *gorm.DB, rec *model.TransactionRecord) error {
	return tx.WithContext(ctx).Create(rec).Error
}

// GetRecord fetches a transaction record by id.
func (r *Repository) GetRecord(ctx context.Context, transactionID string) (*model.TransactionRecord, error) {
	var rec model.TransactionRecord
	if err := r.db.WithContext(ctx).Where("id = ?", transactionID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateRecordStatus advances a record's status and emits a MODIFY change
// event in the same transaction, so status changes flow through the stream
// like every other ledger mutation.
func (r *Repository) UpdateRecordStatus(ctx context.Context, transactionID, status, details string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}
		if details != "" {
			updates["details"] = details
		}
		res := tx.Model(&model.TransactionRecord{}).Where("id = ?", transactionID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var rec model.TransactionRecord
		if err := tx.Where("id = ?", transactionID).First(&rec).Error; err != nil {
			return err
		}
		return r.CreateChangeEvent(ctx, tx, NewChangeEvent(model.ChangeModify, &rec))
	})
}

// CreateChangeEvent appends to the change feed within the caller's transaction.
func (r *Repository) CreateChangeEvent(ctx context.Context, tx *gorm.DB, ev *model.ChangeEvent) error {
	return tx.WithContext(ctx).Create(ev).Error
}

// PollChangeEvents pulls unpublished change events in feed order.
func (r *Repository) PollChangeEvents(ctx context.Context, limit int) ([]model.ChangeEvent, error) {
	var evts []model.ChangeEvent
	err := r.db.WithContext(ctx).Where("published=false").Order("id").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkChangePublished sets the published flag.
func (r *Repository) MarkChangePublished(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.ChangeEvent{}).Where("id=?", id).
		Updates(map[string]interface{}{"published": true, "published_at": &now}).Error
}

// PublishChange ships one change event to Kafka, keyed by record key so
// events for the same record stay in one partition.
func (r *Repository) PublishChange(ctx context.Context, ev model.ChangeEvent) error {
	value, err := stream.FromChangeRow(ev).Encode()
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.Key),
		Value: value,
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// CacheAccountID caches owner→account resolution.
func (r *Repository) CacheAccountID(ctx context.Context, ownerID, accountID string) error {
	return r.rdb.Set(ctx, fmt.Sprintf("account:owner:%s", ownerID), accountID, 5*time.Minute).Err()
}

// GetCachedAccountID reads the owner→account cache.
func (r *Repository) GetCachedAccountID(ctx context.Context, ownerID string) (string, error) {
	return r.rdb.Get(ctx, fmt.Sprintf("account:owner:%s", ownerID)).Result()
}

// CacheBalance refreshes the balance cache after a committed debit.
func (r *Repository) CacheBalance(ctx context.Context, accountID string, bal decimal.Decimal) error {
	return r.rdb.Set(ctx, fmt.Sprintf("balance:%s", accountID), bal.String(), 5*time.Minute).Err()
}

// GetCachedBalance reads the balance cache.
func (r *Repository) GetCachedBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	str, err := r.rdb.Get(ctx, fmt.Sprintf("balance:%s", accountID)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(str)
}

// NewChangeEvent builds a change feed row from a record snapshot.
func NewChangeEvent(kind string, rec *model.TransactionRecord) *model.ChangeEvent {
	img := stream.RecordImage{
		TransactionID:   rec.ID,
		SenderOwnerID:   rec.SenderOwnerID,
		ReceiverOwnerID: rec.ReceiverOwnerID,
		Amount:          rec.Amount,
		Status:          rec.Status,
	}
	raw, _ := json.Marshal(img)
	return &model.ChangeEvent{
		Kind:     kind,
		Key:      rec.ID,
		NewImage: string(raw),
	}
}
