package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
)

const transactionColumns = `id, hash, date, raw_description, merchant_name,
	amount, account_id, account_purpose, deductible_override`

func scanTransaction(row interface{ Scan(...any) error }) (*model.Transaction, error) {
	var txn model.Transaction
	var merchant sql.NullString
	var purpose string
	if err := row.Scan(
		&txn.ID, &txn.Hash, &txn.Date, &txn.RawDescription, &merchant,
		&txn.Amount, &txn.AccountID, &purpose, &txn.DeductibleOvrd,
	); err != nil {
		return nil, err
	}
	txn.MerchantName = merchant.String
	txn.AccountPurpose = model.AccountPurpose(purpose)
	return &txn, nil
}

// SaveTransactions upserts a batch of transactions keyed by id. Bank-sync
// feeds may redeliver or correct transactions, so conflicts update the row
// rather than failing.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, hash, date, raw_description, merchant_name,
			amount, account_id, account_purpose, deductible_override
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hash = excluded.hash,
			date = excluded.date,
			raw_description = excluded.raw_description,
			merchant_name = excluded.merchant_name,
			amount = excluded.amount,
			account_id = excluded.account_id,
			account_purpose = excluded.account_purpose`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		purpose := txn.AccountPurpose
		if purpose == "" {
			purpose = model.PurposePersonal
		}

		if _, err := stmt.ExecContext(ctx,
			txn.ID, txn.Hash, txn.Date, txn.RawDescription, txn.MerchantName,
			txn.Amount, txn.AccountID, string(purpose), txn.DeductibleOvrd,
		); err != nil {
			// A hash conflict on a different id is the same charge
			// redelivered under a new id; skip it.
			if strings.Contains(err.Error(), "transactions.hash") {
				slog.Debug("skipping duplicate transaction", "id", txn.ID, "hash", txn.Hash)
				continue
			}
			return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// GetTransactionByID returns a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = ?`, transactionColumns)
	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions returns transactions matching a filter.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE 1=1`, transactionColumns)
	args := make([]any, 0, 5)

	if filter.StartDate != nil {
		query += " AND date >= ?"
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += " AND date <= ?"
		args = append(args, *filter.EndDate)
	}
	if filter.Merchant != "" {
		query += " AND merchant_name = ?"
		args = append(args, filter.Merchant)
	}
	if filter.AccountID != "" {
		query += " AND account_id = ?"
		args = append(args, filter.AccountID)
	}
	query += " ORDER BY date"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryTransactions(ctx, query, args...)
}

// GetTransactionsToClassify returns transactions without a classification,
// optionally starting from a date.
func (s *SQLiteStorage) GetTransactionsToClassify(ctx context.Context, fromDate *time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM transactions t
		WHERE NOT EXISTS (
			SELECT 1 FROM classifications c WHERE c.transaction_id = t.id
		)`, transactionColumns)
	args := make([]any, 0, 1)
	if fromDate != nil {
		query += " AND t.date >= ?"
		args = append(args, *fromDate)
	}
	query += " ORDER BY t.date"

	return s.queryTransactions(ctx, query, args...)
}

// GetTransactionsByMerchant returns a merchant's full history ordered by date.
func (s *SQLiteStorage) GetTransactionsByMerchant(ctx context.Context, merchant string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchant, "merchant"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE merchant_name = ?
		ORDER BY date`, transactionColumns)
	return s.queryTransactions(ctx, query, merchant)
}

// SetTransactionMerchant stores the canonical merchant for a transaction.
func (s *SQLiteStorage) SetTransactionMerchant(ctx context.Context, transactionID, merchant string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET merchant_name = ? WHERE id = ?`, merchant, transactionID)
	if err != nil {
		return fmt.Errorf("failed to set merchant: %w", err)
	}
	return nil
}

// SetDeductibleOverride marks a transaction individually deductible (or not)
// regardless of its account purpose.
func (s *SQLiteStorage) SetDeductibleOverride(ctx context.Context, transactionID string, deductible bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET deductible_override = ? WHERE id = ?`, deductible, transactionID)
	if err != nil {
		return fmt.Errorf("failed to set deductible override: %w", err)
	}
	return nil
}

// GetClassifiedMerchants lists distinct canonical merchants that have at
// least one classified transaction, for batch subscription detection.
func (s *SQLiteStorage) GetClassifiedMerchants(ctx context.Context) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT merchant_name
		FROM transactions
		WHERE merchant_name IS NOT NULL AND merchant_name != ''
		ORDER BY merchant_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var merchants []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan merchant: %w", err)
		}
		merchants = append(merchants, m)
	}
	return merchants, rows.Err()
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}
