// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/alphapay/billing-dispatcher/internal/storage/models"
)

// Storage is the transaction store contract used by the dispatcher.
type Storage interface {
	// FindPendingOrFailed returns every transaction in status
	// WAITING_TO_BE_SENT or FAILURE. Implementations must guarantee a
	// consistent snapshot: two concurrent calls never claim the same rows.
	FindPendingOrFailed(ctx context.Context) ([]*models.Transaction, error)

	// Save upserts a transaction by primary key.
	Save(ctx context.Context, tx *models.Transaction) error

	// GetTransaction loads a transaction by primary key.
	GetTransaction(ctx context.Context, id uint) (*models.Transaction, error)

	// RunMigrations brings the schema up to date.
	RunMigrations() error
}
