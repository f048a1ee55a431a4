package saga

import (
	"errors"
	"fmt"
)

// Business errors are deterministic given current store state: retrying
// without external change cannot succeed, so the orchestrator routes them to
// compensation immediately. Everything else is treated as transient.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrArgument             = errors.New("invalid argument")
)

// ErrUnexpected wraps failures inside the debit's locked section after the
// transaction has been rolled back. Classified transient.
var ErrUnexpected = errors.New("unexpected debit failure")

// Error codes attached to compensation records and logs.
const (
	CodeCheckInsufficient    = "FAILED.CHECK_SENDER.INSUFFICIENT"
	CodeCheckAccountNotFound = "FAILED.CHECK_SENDER.ACCOUNT_NOT_FOUND"
	CodeDebitAccountNotFound = "FAILED.DEBIT_SENDER.ACCOUNT_NOT_FOUND"
	CodeDebitUnexpected      = "FAILED.DEBIT_SENDER"
)

// Terminal reports whether err is a business error that must not be retried.
func Terminal(err error) bool {
	for _, sentinel := range []error{
		ErrAccountNotFound,
		ErrInsufficientBalance,
		ErrDuplicateTransaction,
		ErrInvalidOperation,
		ErrArgument,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// ErrorCode maps an error to its reporting code.
func ErrorCode(err error, stage string) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return CodeCheckInsufficient
	case errors.Is(err, ErrAccountNotFound) && stage == stageCheck:
		return CodeCheckAccountNotFound
	case errors.Is(err, ErrAccountNotFound):
		return CodeDebitAccountNotFound
	default:
		return CodeDebitUnexpected
	}
}

const (
	stageCheck = "check"
	stageDebit = "debit"
)

func wrapUnexpected(err error) error {
	return fmt.Errorf("%w: %v", ErrUnexpected, err)
}
