package saga

import "github.com/shopspring/decimal"

// Invocation is one saga's transient working set, built by the change
// dispatcher from a transaction record's new-image and discarded when the
// saga terminates.
type Invocation struct {
	TransactionID   string
	SenderOwnerID   string
	ReceiverOwnerID string
	Amount          decimal.Decimal
}

// CheckOutput is the Balance Guard result piped into the debit step.
type CheckOutput struct {
	SenderAccountID string
	ReceiverOwnerID string
	Amount          decimal.Decimal
}

// DebitOutput is what the debit step hands to the (out-of-scope) credit leg.
type DebitOutput struct {
	ReceiverOwnerID string
	Amount          decimal.Decimal
}
