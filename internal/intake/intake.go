// internal/intake/intake.go
package intake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alphapay/billing-dispatcher/internal/storage"
	"github.com/alphapay/billing-dispatcher/internal/storage/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader seeds the transaction store from a local YAML file. Production
// records are created by the upstream billing flow; the intake file covers
// local runs and operational backfills.
type Loader struct {
	storage storage.Storage
	logger  *zap.Logger
}

// intakeFile is the schema of the transactions YAML file.
type intakeFile struct {
	Transactions []struct {
		DstBankAccount string `yaml:"dst_bank_account"`
		Amount         string `yaml:"amount"`
		Direction      string `yaml:"direction"`
	} `yaml:"transactions"`
}

func NewLoader(store storage.Storage, logger *zap.Logger) *Loader {
	return &Loader{storage: store, logger: logger.Named("intake")}
}

// LoadFile reads transactions from the YAML file at path and stores the
// valid ones in WAITING_TO_BE_SENT. Invalid entries are skipped with a
// warning, mirroring how bad rows are tolerated everywhere else.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	if filepath.IsAbs(path) {
		l.logger.Warn("Using absolute path for intake file", zap.String("path", path))
	}

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	var file intakeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Transactions) == 0 {
		return 0, fmt.Errorf("no transactions found in intake file")
	}

	loaded := 0
	for _, entry := range file.Transactions {
		direction, err := models.ParseDirection(entry.Direction)
		if err != nil {
			l.logger.Warn("Skipping invalid intake entry",
				zap.String("dst_account", entry.DstBankAccount),
				zap.Error(err))
			continue
		}

		amount, err := decimal.NewFromString(entry.Amount)
		if err != nil {
			l.logger.Warn("Skipping intake entry with invalid amount",
				zap.String("dst_account", entry.DstBankAccount),
				zap.String("amount", entry.Amount))
			continue
		}

		tx := &models.Transaction{
			DstBankAccount: entry.DstBankAccount,
			Amount:         amount,
			Direction:      direction,
			Status:         models.StatusWaitingToBeSent,
		}

		if err := tx.Validate(); err != nil {
			l.logger.Warn("Skipping invalid intake entry",
				zap.String("dst_account", entry.DstBankAccount),
				zap.Error(err))
			continue
		}

		if err := l.storage.Save(ctx, tx); err != nil {
			return loaded, fmt.Errorf("failed to store intake entry: %w", err)
		}
		loaded++
	}

	if loaded == 0 {
		return 0, fmt.Errorf("no valid transactions loaded")
	}

	l.logger.Info("Loaded intake transactions", zap.Int("count", loaded))
	return loaded, nil
}
