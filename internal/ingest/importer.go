// Package ingest brings transactions into local storage from OFX/QFX files
// and the Plaid API. Imports are idempotent: transactions are deduplicated
// by ID upsert and by content hash.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
)

// TransactionFetcher is a source of transactions for a date range.
type TransactionFetcher interface {
	GetTransactions(ctx context.Context, startDate, endDate time.Time) ([]model.Transaction, error)
	GetAccounts(ctx context.Context) ([]string, error)
}

// Importer persists fetched transactions, stamping each with its account's
// configured purpose.
type Importer struct {
	store    service.Storage
	logger   *slog.Logger
	purposes map[string]model.AccountPurpose
}

// NewImporter creates an importer. purposes maps account IDs to their
// configured purpose; unmapped accounts default to personal.
func NewImporter(store service.Storage, purposes map[string]model.AccountPurpose, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:    store,
		logger:   logger,
		purposes: purposes,
	}
}

// Import saves transactions after assigning account purposes and content
// hashes. Returns the number of transactions handed to storage; duplicates
// are dropped there.
func (i *Importer) Import(ctx context.Context, txns []model.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	for idx := range txns {
		if purpose, ok := i.purposes[txns[idx].AccountID]; ok {
			txns[idx].AccountPurpose = purpose
		} else if txns[idx].AccountPurpose == "" {
			txns[idx].AccountPurpose = model.PurposePersonal
		}
		if txns[idx].Hash == "" {
			txns[idx].Hash = txns[idx].GenerateHash()
		}
	}

	if err := i.store.SaveTransactions(ctx, txns); err != nil {
		return 0, fmt.Errorf("failed to save transactions: %w", err)
	}

	i.logger.Info("imported transactions", "count", len(txns))
	return len(txns), nil
}
