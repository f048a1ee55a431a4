package model

import "time"

// Change event kinds, mirroring the mutation that produced the row.
const (
	ChangeInsert = "INSERT"
	ChangeModify = "MODIFY"
	ChangeRemove = "REMOVE"
)

// ChangeEvent is the ledger's change feed, written in the same database
// transaction as the mutation it describes. The poller ships unpublished
// rows to Kafka in id order, keyed by Key so per-record order survives
// partitioning.
type ChangeEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Kind        string    `gorm:"size:16;not null"`
	Key         string    `gorm:"size:128;not null;index"`
	NewImage    string    `gorm:"type:jsonb;not null"`
	Published   bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	PublishedAt *time.Time
}

func (ChangeEvent) TableName() string { return "ledger_change_event" }
