package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alphapay/billing-dispatcher/internal/events"
	"github.com/alphapay/billing-dispatcher/internal/processor"
	"github.com/alphapay/billing-dispatcher/internal/storage/memory"
	"github.com/alphapay/billing-dispatcher/internal/storage/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeProcessor scripts per-destination responses.
type fakeProcessor struct {
	mu      sync.Mutex
	calls   int
	respond func(dstAccount string) (string, error)
	delays  map[string]time.Duration
}

func (f *fakeProcessor) Submit(_ context.Context, _, dstAccount string, _ decimal.Decimal, _ models.TransactionDirection) (string, error) {
	f.mu.Lock()
	f.calls++
	delay := f.delays[dstAccount]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return f.respond(dstAccount)
}

func (f *fakeProcessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestDispatcher(t *testing.T, store *memory.Storage, proc processor.Processor) (*Dispatcher, *events.Bus) {
	t.Helper()
	bus := events.NewBus(zap.NewNop(), 64)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Shutdown(ctx)
	})

	d := New(store, proc, bus, zap.NewNop(), Config{
		SrcBankAccount: "ACC-SRC",
		Workers:        4,
	})
	return d, bus
}

func seedTransaction(t *testing.T, store *memory.Storage, dst string, status models.TransactionStatus) *models.Transaction {
	t.Helper()
	tx := &models.Transaction{
		DstBankAccount: dst,
		Amount:         decimal.NewFromInt(50),
		Direction:      models.DirectionCredit,
		Status:         status,
	}
	require.NoError(t, store.Save(context.Background(), tx))
	return tx
}

func TestCycleSubmitsWaitingTransaction(t *testing.T) {
	store := memory.NewStorage()
	proc := &fakeProcessor{respond: func(string) (string, error) { return "PX123", nil }}
	d, _ := newTestDispatcher(t, store, proc)

	tx := seedTransaction(t, store, "ACC-2", models.StatusWaitingToBeSent)

	require.NoError(t, d.RunCycle(context.Background()))

	loaded, err := store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentTransaction, loaded.Status)
	assert.Equal(t, "PX123", loaded.TransactionID)
}

func TestCycleRequeuesOnProcessorError(t *testing.T) {
	store := memory.NewStorage()
	proc := &fakeProcessor{respond: func(string) (string, error) {
		return "", &processor.Error{Op: "submit", Err: fmt.Errorf("processor down")}
	}}
	d, _ := newTestDispatcher(t, store, proc)

	tx := seedTransaction(t, store, "ACC-2", models.StatusFailure)

	require.NoError(t, d.RunCycle(context.Background()))

	loaded, err := store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingToBeSent, loaded.Status)
	assert.Empty(t, loaded.TransactionID)
}

func TestEmptyCycleWritesNothing(t *testing.T) {
	store := memory.NewStorage()
	proc := &fakeProcessor{respond: func(string) (string, error) { return "PX1", nil }}
	d, _ := newTestDispatcher(t, store, proc)

	require.NoError(t, d.RunCycle(context.Background()))

	assert.Zero(t, store.Writes())
	assert.Zero(t, proc.callCount())
}

func TestFailedTransactionRetriedNextCycle(t *testing.T) {
	store := memory.NewStorage()

	var attempts int32
	proc := &fakeProcessor{respond: func(string) (string, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return "", &processor.Error{Op: "submit", Err: fmt.Errorf("timeout")}
		}
		return "PX99", nil
	}}
	d, _ := newTestDispatcher(t, store, proc)

	tx := seedTransaction(t, store, "ACC-2", models.StatusWaitingToBeSent)

	// Cycle N: submission fails, record goes back to pending.
	require.NoError(t, d.RunCycle(context.Background()))
	loaded, err := store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitingToBeSent, loaded.Status)

	// Cycle N+1 picks it up again, no backoff suppression.
	require.NoError(t, d.RunCycle(context.Background()))
	loaded, err = store.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentTransaction, loaded.Status)
	assert.Equal(t, "PX99", loaded.TransactionID)
	assert.Equal(t, 2, proc.callCount())
}

func TestSlowRecordDoesNotBlockOthers(t *testing.T) {
	store := memory.NewStorage()
	proc := &fakeProcessor{
		respond: func(string) (string, error) { return "PX1", nil },
		delays: map[string]time.Duration{
			"ACC-SLOW-1": 200 * time.Millisecond,
			"ACC-SLOW-2": 200 * time.Millisecond,
		},
	}
	d, _ := newTestDispatcher(t, store, proc)

	seedTransaction(t, store, "ACC-SLOW-1", models.StatusWaitingToBeSent)
	seedTransaction(t, store, "ACC-SLOW-2", models.StatusWaitingToBeSent)

	start := time.Now()
	require.NoError(t, d.RunCycle(context.Background()))
	elapsed := time.Since(start)

	// Sequential dispatch would take at least 400ms.
	assert.Less(t, elapsed, 350*time.Millisecond, "records were not dispatched concurrently")
}

func TestUnexpectedErrorDoesNotAbortCycle(t *testing.T) {
	store := memory.NewStorage()
	proc := &fakeProcessor{respond: func(dst string) (string, error) {
		if dst == "ACC-BAD" {
			return "", fmt.Errorf("not a processor error")
		}
		return "PX777", nil
	}}
	d, _ := newTestDispatcher(t, store, proc)

	bad := seedTransaction(t, store, "ACC-BAD", models.StatusWaitingToBeSent)
	good := seedTransaction(t, store, "ACC-GOOD", models.StatusWaitingToBeSent)

	require.NoError(t, d.RunCycle(context.Background()))

	// The healthy record still went through.
	loadedGood, err := store.GetTransaction(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentTransaction, loadedGood.Status)
	assert.Equal(t, "PX777", loadedGood.TransactionID)

	// The bad record stays claimed for reconciliation, not requeued.
	loadedBad, err := store.GetTransaction(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentTransaction, loadedBad.Status)
	assert.Empty(t, loadedBad.TransactionID)
}

func TestPanicInDispatchIsContained(t *testing.T) {
	store := memory.NewStorage()
	proc := &fakeProcessor{respond: func(dst string) (string, error) {
		if dst == "ACC-PANIC" {
			panic("boom")
		}
		return "PX555", nil
	}}
	d, _ := newTestDispatcher(t, store, proc)

	seedTransaction(t, store, "ACC-PANIC", models.StatusWaitingToBeSent)
	good := seedTransaction(t, store, "ACC-GOOD", models.StatusWaitingToBeSent)

	require.NoError(t, d.RunCycle(context.Background()))

	loaded, err := store.GetTransaction(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentTransaction, loaded.Status)
}

func TestCyclePublishesOutcomeEvents(t *testing.T) {
	store := memory.NewStorage()
	proc := &fakeProcessor{respond: func(dst string) (string, error) {
		if dst == "ACC-FAIL" {
			return "", &processor.Error{Op: "submit", Err: fmt.Errorf("rejected")}
		}
		return "PX42", nil
	}}
	d, bus := newTestDispatcher(t, store, proc)

	sentCh := make(chan events.Event, 1)
	requeuedCh := make(chan events.Event, 1)
	bus.SubscribeFunc(events.TransactionSent, func(_ context.Context, e events.Event) error {
		sentCh <- e
		return nil
	})
	bus.SubscribeFunc(events.TransactionRequeued, func(_ context.Context, e events.Event) error {
		requeuedCh <- e
		return nil
	})

	seedTransaction(t, store, "ACC-OK", models.StatusWaitingToBeSent)
	seedTransaction(t, store, "ACC-FAIL", models.StatusWaitingToBeSent)

	require.NoError(t, d.RunCycle(context.Background()))

	select {
	case e := <-sentCh:
		sent := e.(*events.TransactionSentEvent)
		assert.Equal(t, "PX42", sent.TransactionID)
		assert.Equal(t, "ACC-SRC", sent.SrcBankAccount)
	case <-time.After(time.Second):
		t.Fatal("expected a TransactionSent event")
	}

	select {
	case e := <-requeuedCh:
		requeued := e.(*events.TransactionRequeuedEvent)
		assert.Equal(t, "ACC-FAIL", requeued.DstBankAccount)
		assert.Error(t, requeued.Error)
	case <-time.After(time.Second):
		t.Fatal("expected a TransactionRequeued event")
	}
}
