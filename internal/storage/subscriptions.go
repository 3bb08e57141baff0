package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calderhart/sift/internal/model"
)

const subscriptionColumns = `id, merchant, frequency, median_amount, occurrences,
	last_seen, likely_stopped, stable, supersedes_id, computed_at`

func scanSubscription(row interface{ Scan(...any) error }) (*model.SubscriptionRecord, error) {
	var record model.SubscriptionRecord
	var frequency string
	var lastSeen sql.NullTime
	if err := row.Scan(
		&record.ID, &record.Merchant, &frequency, &record.MedianAmount, &record.Occurrences,
		&lastSeen, &record.LikelyStopped, &record.Stable, &record.SupersedesID, &record.ComputedAt,
	); err != nil {
		return nil, err
	}
	record.Frequency = model.Frequency(frequency)
	record.LastSeen = lastSeen.Time
	return &record, nil
}

// SaveSubscriptionRecord inserts a freshly computed record and marks the one
// it supersedes. History is never mutated in place.
func (s *SQLiteStorage) SaveSubscriptionRecord(ctx context.Context, record *model.SubscriptionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSubscription(record); err != nil {
		return err
	}

	if record.ComputedAt.IsZero() {
		record.ComputedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if record.SupersedesID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscription_records SET superseded = 1 WHERE id = ?`,
			record.SupersedesID); err != nil {
			return fmt.Errorf("failed to mark superseded record: %w", err)
		}
	}

	var lastSeen any
	if !record.LastSeen.IsZero() {
		lastSeen = record.LastSeen
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subscription_records (
			id, merchant, frequency, median_amount, occurrences,
			last_seen, likely_stopped, stable, supersedes_id, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Merchant, string(record.Frequency), record.MedianAmount,
		record.Occurrences, lastSeen, record.LikelyStopped, record.Stable,
		record.SupersedesID, record.ComputedAt,
	); err != nil {
		return fmt.Errorf("failed to save subscription record: %w", err)
	}

	return tx.Commit()
}

// GetActiveSubscriptionRecords returns the latest record per merchant.
func (s *SQLiteStorage) GetActiveSubscriptionRecords(ctx context.Context) ([]model.SubscriptionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM subscription_records
		WHERE superseded = 0
		ORDER BY merchant`, subscriptionColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.SubscriptionRecord
	for rows.Next() {
		record, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// GetLatestSubscriptionRecord returns the current record for a merchant, or
// nil when none has been computed.
func (s *SQLiteStorage) GetLatestSubscriptionRecord(ctx context.Context, merchant string) (*model.SubscriptionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchant, "merchant"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM subscription_records
		WHERE merchant = ? AND superseded = 0
		ORDER BY computed_at DESC
		LIMIT 1`, subscriptionColumns)

	record, err := scanSubscription(s.db.QueryRowContext(ctx, query, merchant))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription record: %w", err)
	}
	return record, nil
}
