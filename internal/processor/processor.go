// internal/processor/processor.go
package processor

import (
	"context"
	"fmt"

	"github.com/alphapay/billing-dispatcher/internal/storage/models"
	"github.com/shopspring/decimal"
)

// Processor submits billing transactions to the external payment processor.
type Processor interface {
	// Submit performs one transfer and returns the processor-assigned
	// transaction id. Any submission failure (network, rejection) is
	// reported as *Error.
	Submit(ctx context.Context, srcAccount, dstAccount string, amount decimal.Decimal, direction models.TransactionDirection) (string, error)
}

// Error is the distinguished submission failure kind. Records whose
// submission fails with *Error are requeued for the next dispatch cycle.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("processor: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
