// internal/dispatcher/worker.go
package dispatcher

import (
	"context"
	"sync"

	"github.com/alphapay/billing-dispatcher/internal/storage/models"
	"go.uber.org/zap"
)

// WorkerPool fans a cycle's records out over n workers. Records are
// independent: no ordering between them, and a slow processor call for one
// never delays another.
type WorkerPool struct {
	wg         sync.WaitGroup
	ctx        context.Context
	txs        <-chan *models.Transaction
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewWorkerPool(ctx context.Context, d *Dispatcher, txs <-chan *models.Transaction, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		ctx:        ctx,
		txs:        txs,
		dispatcher: d,
		logger:     logger,
	}
}

func (wp *WorkerPool) Start(n int) {
	for i := 0; i < n; i++ {
		wp.wg.Add(1)
		go wp.worker(i + 1)
	}
}

func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	logger := wp.logger.With(zap.Int("worker_id", id))

	for {
		select {
		case <-wp.ctx.Done():
			logger.Debug("Worker shutting down due to context cancellation")
			return
		case tx, ok := <-wp.txs:
			if !ok {
				return
			}
			wp.dispatcher.dispatchOne(wp.ctx, tx)
		}
	}
}
