// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alphapay/billing-dispatcher/internal/storage"
	"github.com/alphapay/billing-dispatcher/internal/storage/models"
)

// Storage is an in-memory storage.Storage for tests and local runs.
// The mutex makes the pending snapshot atomic the same way the postgres
// implementation's row locks do.
type Storage struct {
	mu     sync.Mutex
	nextID uint
	txs    map[uint]models.Transaction
	writes int
}

func NewStorage() *Storage {
	return &Storage{
		nextID: 1,
		txs:    make(map[uint]models.Transaction),
	}
}

func (m *Storage) FindPendingOrFailed(_ context.Context) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*models.Transaction
	for _, tx := range m.txs {
		if tx.Pending() {
			copied := tx
			pending = append(pending, &copied)
		}
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

func (m *Storage) Save(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.ID == 0 {
		tx.ID = m.nextID
		m.nextID++
		tx.CreatedAt = time.Now().UTC()
	}
	tx.UpdatedAt = time.Now().UTC()

	m.txs[tx.ID] = *tx
	m.writes++
	return nil
}

func (m *Storage) GetTransaction(_ context.Context, id uint) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction %d not found", id)
	}
	return &tx, nil
}

func (m *Storage) RunMigrations() error {
	return nil
}

// Writes returns the number of Save calls, for asserting no-op cycles.
func (m *Storage) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

var _ storage.Storage = (*Storage)(nil)
