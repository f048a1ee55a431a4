package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord statuses. The record starts PENDING and is advanced by
// the saga; DEBITED is the success terminal for the debit leg.
const (
	StatusPending     = "PENDING"
	StatusDebited     = "DEBITED"
	StatusFailed      = "FAILED"
	StatusCompensated = "COMPENSATED"
)

// KeyPrefixTransaction and KeyPrefixIdempotent namespace the ledger keys so
// the change stream can tell record kinds apart.
const (
	KeyPrefixTransaction = "TRANSACTION#"
	KeyPrefixIdempotent  = "IDEMPOTENT#"
)

// TransactionRecord is the ledger row describing one transfer intent.
// Created exactly once per idempotent key; status advanced by the saga.
type TransactionRecord struct {
	ID              string          `gorm:"primaryKey;size:64" json:"transaction_id"`
	IdempotentKey   string          `gorm:"size:128;not null;uniqueIndex" json:"idempotent_key"`
	SenderOwnerID   string          `gorm:"size:64;not null" json:"sender_owner_id"`
	ReceiverOwnerID string          `gorm:"size:64;not null" json:"receiver_owner_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"amount"`
	Status          string          `gorm:"size:32;not null" json:"status"`
	Type            string          `gorm:"size:32;not null" json:"type"`
	Details         string          `gorm:"size:512" json:"details,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TransactionRecord) TableName() string { return "ledger_transaction" }

// IdempotencyMarker existence alone means "a transaction for this key was
// already accepted". Written atomically with the record, never updated.
type IdempotencyMarker struct {
	Key           string    `gorm:"primaryKey;size:128"`
	TransactionID string    `gorm:"size:64;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (IdempotencyMarker) TableName() string { return "ledger_idempotency" }
