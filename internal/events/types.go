// internal/events/types.go
package events

import (
	"time"

	"github.com/alphapay/billing-dispatcher/internal/storage/models"
	"github.com/shopspring/decimal"
)

// EventType represents the type of event.
type EventType string

const (
	// Cycle events
	CycleStarted   EventType = "cycle.started"
	CycleCompleted EventType = "cycle.completed"

	// Transaction events
	TransactionSent     EventType = "transaction.sent"
	TransactionRequeued EventType = "transaction.requeued"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// CycleStartedEvent is emitted when a dispatch cycle finds pending records.
type CycleStartedEvent struct {
	BaseEvent
	Pending int
}

// CycleCompletedEvent is emitted once every dispatch attempt of a cycle has
// finished locally.
type CycleCompletedEvent struct {
	BaseEvent
	Attempted int
}

// TransactionSentEvent is emitted when the processor accepts a submission.
type TransactionSentEvent struct {
	BaseEvent
	RecordID       uint
	TransactionID  string // processor-assigned
	SrcBankAccount string
	DstBankAccount string
	Amount         decimal.Decimal
	Direction      models.TransactionDirection
}

// TransactionRequeuedEvent is emitted when a submission fails and the record
// goes back to WAITING_TO_BE_SENT.
type TransactionRequeuedEvent struct {
	BaseEvent
	RecordID       uint
	DstBankAccount string
	Error          error
}
