package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a wallet account row. Balance is mutated only by the debit
// (and the symmetric credit) path under a row lock.
type Account struct {
	ID        string          `gorm:"primaryKey;size:64" json:"id"`
	OwnerID   string          `gorm:"size:64;not null;uniqueIndex" json:"owner_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,8);not null;default:'0'" json:"balance"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string { return "wallet_account" }
