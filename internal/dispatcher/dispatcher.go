// internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alphapay/billing-dispatcher/internal/events"
	"github.com/alphapay/billing-dispatcher/internal/processor"
	"github.com/alphapay/billing-dispatcher/internal/storage"
	"github.com/alphapay/billing-dispatcher/internal/storage/models"
	"go.uber.org/zap"
)

// Config carries the dispatch parameters supplied at process start.
type Config struct {
	// SrcBankAccount is the bank account every transfer originates from.
	SrcBankAccount string
	// Workers bounds the per-cycle dispatch fan-out.
	Workers int
}

// Dispatcher scans the transaction store for records waiting to be sent or
// previously failed, submits each to the payment processor and tracks the
// outcome through status transitions.
type Dispatcher struct {
	storage   storage.Storage
	processor processor.Processor
	eventBus  *events.Bus
	logger    *zap.Logger
	config    Config

	// fetchMu serializes the fetch step; the store's row locks guard
	// against other processes, this guards against overlapping cycles
	// in the same one.
	fetchMu sync.Mutex
}

func New(store storage.Storage, proc processor.Processor, eventBus *events.Bus, logger *zap.Logger, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Dispatcher{
		storage:   store,
		processor: proc,
		eventBus:  eventBus,
		logger:    logger.Named("dispatcher"),
		config:    cfg,
	}
}

// RunCycle performs one fetch-and-dispatch cycle. It returns once every
// dispatch attempt has completed locally, not once the processor confirms.
// Errors are reported, never fatal; the caller keeps scheduling.
func (d *Dispatcher) RunCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during dispatch cycle: %v", r)
		}
	}()

	d.logger.Debug("Performing transactions in status WAITING_TO_BE_SENT or FAILURE")

	d.fetchMu.Lock()
	pending, fetchErr := d.storage.FindPendingOrFailed(ctx)
	d.fetchMu.Unlock()
	if fetchErr != nil {
		return fmt.Errorf("fetch pending transactions: %w", fetchErr)
	}

	if len(pending) == 0 {
		d.logger.Debug("No transaction is required to be performed")
		return nil
	}

	_ = d.eventBus.Publish(&events.CycleStartedEvent{
		BaseEvent: events.BaseEvent{EventType: events.CycleStarted, EventTime: time.Now()},
		Pending:   len(pending),
	})

	txCh := make(chan *models.Transaction, len(pending))
	for _, tx := range pending {
		txCh <- tx
	}
	close(txCh)

	pool := NewWorkerPool(ctx, d, txCh, d.logger)
	pool.Start(d.config.Workers)
	pool.Wait()

	d.logger.Info("Waiting for confirmation of attempted transactions",
		zap.Int("count", len(pending)))

	_ = d.eventBus.Publish(&events.CycleCompletedEvent{
		BaseEvent: events.BaseEvent{EventType: events.CycleCompleted, EventTime: time.Now()},
		Attempted: len(pending),
	})

	return nil
}

// dispatchOne claims one record, submits it and records the outcome. A
// submission failure requeues the record; any other failure is contained
// here so one bad record never aborts the rest of the cycle.
func (d *Dispatcher) dispatchOne(ctx context.Context, tx *models.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic while dispatching transaction",
				zap.Uint("record_id", tx.ID),
				zap.Any("panic", r))
		}
	}()

	if err := d.submitOne(ctx, tx); err != nil {
		var procErr *processor.Error
		if errors.As(err, &procErr) {
			d.requeue(ctx, tx, procErr)
			return
		}

		d.logger.Error("Unexpected error while dispatching transaction",
			zap.Uint("record_id", tx.ID),
			zap.Error(err))
		return
	}

	d.logger.Info("Tried to perform transaction, awaiting confirmation",
		zap.String("direction", string(tx.Direction)),
		zap.String("transaction_id", tx.TransactionID),
		zap.String("src_account", d.config.SrcBankAccount),
		zap.String("dst_account", tx.DstBankAccount),
		zap.String("amount", tx.Amount.String()))

	_ = d.eventBus.Publish(&events.TransactionSentEvent{
		BaseEvent:      events.BaseEvent{EventType: events.TransactionSent, EventTime: time.Now()},
		RecordID:       tx.ID,
		TransactionID:  tx.TransactionID,
		SrcBankAccount: d.config.SrcBankAccount,
		DstBankAccount: tx.DstBankAccount,
		Amount:         tx.Amount,
		Direction:      tx.Direction,
	})
}

// submitOne marks the record SENT_TRANSACTION before the network call so the
// cycle's snapshot cannot dispatch it twice, then persists the id the
// processor assigned.
func (d *Dispatcher) submitOne(ctx context.Context, tx *models.Transaction) error {
	tx.Status = models.StatusSentTransaction
	if err := d.storage.Save(ctx, tx); err != nil {
		return fmt.Errorf("claim transaction %d: %w", tx.ID, err)
	}

	transactionID, err := d.processor.Submit(ctx, d.config.SrcBankAccount, tx.DstBankAccount, tx.Amount, tx.Direction)
	if err != nil {
		return err
	}

	tx.TransactionID = transactionID
	if err := d.storage.Save(ctx, tx); err != nil {
		return fmt.Errorf("save processor transaction id for %d: %w", tx.ID, err)
	}

	return nil
}

func (d *Dispatcher) requeue(ctx context.Context, tx *models.Transaction, procErr *processor.Error) {
	tx.Status = models.StatusWaitingToBeSent
	if err := d.storage.Save(ctx, tx); err != nil {
		d.logger.Error("Failed to requeue transaction",
			zap.Uint("record_id", tx.ID),
			zap.Error(err))
		return
	}

	d.logger.Error("Got an error while trying to perform transaction",
		zap.Uint("record_id", tx.ID),
		zap.String("dst_account", tx.DstBankAccount),
		zap.Error(procErr))

	_ = d.eventBus.Publish(&events.TransactionRequeuedEvent{
		BaseEvent:      events.BaseEvent{EventType: events.TransactionRequeued, EventTime: time.Now()},
		RecordID:       tx.ID,
		DstBankAccount: tx.DstBankAccount,
		Error:          procErr,
	})
}
