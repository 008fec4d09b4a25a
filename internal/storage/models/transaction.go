// internal/storage/models/transaction.go
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus tracks where a billing transaction is in its lifecycle.
type TransactionStatus string

const (
	// StatusWaitingToBeSent marks records created externally and not yet
	// dispatched, or records requeued after a failed submission.
	StatusWaitingToBeSent TransactionStatus = "WAITING_TO_BE_SENT"
	// StatusSentTransaction marks records claimed by a dispatch cycle. The
	// processor transaction id is filled in once the submission succeeds.
	StatusSentTransaction TransactionStatus = "SENT_TRANSACTION"
	// StatusFailure is set by the reconciliation process; failed records are
	// picked up again by the next dispatch cycle.
	StatusFailure TransactionStatus = "FAILURE"
	// StatusConfirmed is set by the reconciliation process once the processor
	// confirms the transfer. Confirmed records are never fetched again.
	StatusConfirmed TransactionStatus = "CONFIRMED"
)

// TransactionDirection is the transfer direction relative to the source account.
type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
)

// ParseDirection validates a raw direction string.
func ParseDirection(s string) (TransactionDirection, error) {
	d := TransactionDirection(s)
	switch d {
	case DirectionCredit, DirectionDebit:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported direction: %q", s)
	}
}

// Transaction is a billing transaction row. The dispatcher mutates only
// Status and TransactionID; everything else is owned by whoever created
// the record.
type Transaction struct {
	ID             uint                 `gorm:"primarykey"`
	TransactionID  string               `gorm:"index;type:varchar(64)"` // processor-assigned, empty until sent
	SrcBankAccount string               `gorm:"type:varchar(64)"`
	DstBankAccount string               `gorm:"not null;type:varchar(64)"`
	Amount         decimal.Decimal      `gorm:"type:decimal(20,4);not null"`
	Direction      TransactionDirection `gorm:"not null;type:varchar(10)"`
	Status         TransactionStatus    `gorm:"index;not null;type:varchar(30)"`
	CreatedAt      time.Time            `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time            `gorm:"default:CURRENT_TIMESTAMP"`
}

// Validate checks the fields the dispatcher relies on.
func (t *Transaction) Validate() error {
	if t.DstBankAccount == "" {
		return fmt.Errorf("destination bank account cannot be empty")
	}

	if t.Amount.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}

	switch t.Direction {
	case DirectionCredit, DirectionDebit:
		// Valid directions
	default:
		return fmt.Errorf("invalid direction: %s", t.Direction)
	}

	switch t.Status {
	case StatusWaitingToBeSent, StatusSentTransaction, StatusFailure, StatusConfirmed:
		return nil
	default:
		return fmt.Errorf("invalid status: %s", t.Status)
	}
}

// Pending reports whether the record is eligible for dispatch.
func (t *Transaction) Pending() bool {
	return t.Status == StatusWaitingToBeSent || t.Status == StatusFailure
}
