package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: transactions, categories, classifications",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					raw_description TEXT NOT NULL,
					merchant_name TEXT,
					amount REAL NOT NULL,
					account_id TEXT NOT NULL,
					account_purpose TEXT NOT NULL DEFAULT 'personal',
					deductible_override INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_merchant ON transactions(merchant_name)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					slug TEXT NOT NULL,
					name TEXT NOT NULL,
					icon TEXT NOT NULL DEFAULT '',
					color TEXT NOT NULL DEFAULT '',
					parent_slug TEXT NOT NULL DEFAULT '',
					user_id TEXT NOT NULL DEFAULT '',
					is_essential INTEGER NOT NULL DEFAULT 0,
					is_typically_deductible INTEGER NOT NULL DEFAULT 0,
					tax_schedule_line TEXT NOT NULL DEFAULT '',
					keywords TEXT NOT NULL DEFAULT '[]',
					sort_order INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, slug)
				)`,

				`CREATE TABLE IF NOT EXISTS classifications (
					transaction_id TEXT PRIMARY KEY,
					category_slug TEXT NOT NULL,
					source TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					pending_question INTEGER NOT NULL DEFAULT 0,
					priority INTEGER NOT NULL DEFAULT 0,
					classified_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					notes TEXT NOT NULL DEFAULT '',
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_classifications_category ON classifications(category_slug)`,

				`CREATE TABLE IF NOT EXISTS classification_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					transaction_id TEXT NOT NULL,
					category_slug TEXT NOT NULL,
					source TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_classification_history_transaction_id
					ON classification_history(transaction_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Merchant aliases and normalization candidates",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS merchant_aliases (
					pattern TEXT PRIMARY KEY,
					canonical TEXT NOT NULL,
					kind TEXT NOT NULL,
					source TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_merchant_aliases_canonical ON merchant_aliases(canonical)`,

				`CREATE TABLE IF NOT EXISTS normalization_candidates (
					raw_description TEXT PRIMARY KEY,
					cleaned TEXT NOT NULL,
					seen_count INTEGER NOT NULL DEFAULT 1,
					last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Subscription records with supersede chain",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS subscription_records (
					id TEXT PRIMARY KEY,
					merchant TEXT NOT NULL,
					frequency TEXT NOT NULL,
					median_amount REAL NOT NULL DEFAULT 0,
					occurrences INTEGER NOT NULL DEFAULT 0,
					last_seen DATETIME,
					likely_stopped INTEGER NOT NULL DEFAULT 0,
					stable INTEGER NOT NULL DEFAULT 0,
					supersedes_id TEXT NOT NULL DEFAULT '',
					superseded INTEGER NOT NULL DEFAULT 0,
					computed_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_subscription_records_merchant ON subscription_records(merchant)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Index pending questions for the review queue",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_classifications_pending
				ON classifications(pending_question, priority DESC)`)
			return err
		},
	},
}

// Migrate runs all pending migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= ExpectedSchemaVersion {
		slog.Debug("database schema up to date", "version", currentVersion)
		return nil
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	return nil
}

func (s *SQLiteStorage) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
