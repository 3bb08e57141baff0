package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
)

const classificationColumns = `transaction_id, category_slug, source, confidence,
	pending_question, priority, classified_at, notes`

func scanClassification(row interface{ Scan(...any) error }) (*model.ClassificationResult, error) {
	var result model.ClassificationResult
	var source string
	if err := row.Scan(
		&result.TransactionID, &result.CategorySlug, &source, &result.Confidence,
		&result.PendingQuestion, &result.Priority, &result.ClassifiedAt, &result.Notes,
	); err != nil {
		return nil, err
	}
	result.Source = model.ClassificationSource(source)
	return &result, nil
}

// SaveClassification upserts a classification result keyed by transaction id
// and appends the new value to the audit history. A user-confirmed result is
// only replaced by another user-confirmed result.
func (s *SQLiteStorage) SaveClassification(ctx context.Context, result *model.ClassificationResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateResult(result); err != nil {
		return err
	}

	if result.ClassifiedAt.IsZero() {
		result.ClassifiedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Confirmed results are protected from silent overwrites, including
	// re-classification after a taxonomy change.
	if result.Source != model.SourceUserConfirmed {
		var existingSource string
		err := tx.QueryRowContext(ctx,
			`SELECT source FROM classifications WHERE transaction_id = ?`,
			result.TransactionID).Scan(&existingSource)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check existing classification: %w", err)
		}
		if model.ClassificationSource(existingSource) == model.SourceUserConfirmed {
			slog.Debug("keeping user-confirmed classification",
				"transaction_id", result.TransactionID)
			return tx.Commit()
		}
	}

	// The assigned category must exist in some scope.
	var categoryExists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE slug = ?)`,
		result.CategorySlug).Scan(&categoryExists); err != nil {
		return fmt.Errorf("failed to check category existence: %w", err)
	}
	if !categoryExists {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, result.CategorySlug)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO classifications (
			transaction_id, category_slug, source, confidence,
			pending_question, priority, classified_at, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			category_slug = excluded.category_slug,
			source = excluded.source,
			confidence = excluded.confidence,
			pending_question = excluded.pending_question,
			priority = excluded.priority,
			classified_at = excluded.classified_at,
			notes = excluded.notes`,
		result.TransactionID, result.CategorySlug, string(result.Source), result.Confidence,
		result.PendingQuestion, result.Priority, result.ClassifiedAt, result.Notes,
	); err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO classification_history (transaction_id, category_slug, source, confidence)
		VALUES (?, ?, ?, ?)`,
		result.TransactionID, result.CategorySlug, string(result.Source), result.Confidence,
	); err != nil {
		return fmt.Errorf("failed to save classification history: %w", err)
	}

	return tx.Commit()
}

// GetClassification returns the current result for a transaction, or nil.
func (s *SQLiteStorage) GetClassification(ctx context.Context, transactionID string) (*model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM classifications WHERE transaction_id = ?`,
		classificationColumns)
	result, err := scanClassification(s.db.QueryRowContext(ctx, query, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}
	return result, nil
}

// GetClassificationsByDateRange returns results for transactions dated in
// [start, end].
func (s *SQLiteStorage) GetClassificationsByDateRange(ctx context.Context, start, end time.Time) ([]model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %v before start %v", ErrInvalidDateRange, end, start)
	}

	query := `
		SELECT c.transaction_id, c.category_slug, c.source, c.confidence,
			c.pending_question, c.priority, c.classified_at, c.notes
		FROM classifications c
		JOIN transactions t ON t.id = c.transaction_id
		WHERE t.date >= ? AND t.date <= ?
		ORDER BY t.date`

	return s.queryClassifications(ctx, query, start, end)
}

// GetPendingQuestions returns flagged results ordered by priority then age.
func (s *SQLiteStorage) GetPendingQuestions(ctx context.Context, limit int) ([]model.ClassificationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM classifications
		WHERE pending_question = 1
		ORDER BY priority DESC, classified_at`,
		classificationColumns)
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryClassifications(ctx, query, args...)
}

// GetMerchantCategoryHistory summarizes how a canonical merchant has been
// classified before. User-confirmed results are counted separately so the
// engine can weight them more heavily.
func (s *SQLiteStorage) GetMerchantCategoryHistory(ctx context.Context, merchant string) ([]service.MerchantCategoryCount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchant, "merchant"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.category_slug,
			COUNT(*),
			SUM(CASE WHEN c.source = 'user-confirmed' THEN 1 ELSE 0 END)
		FROM classifications c
		JOIN transactions t ON t.id = c.transaction_id
		WHERE t.merchant_name = ?
		GROUP BY c.category_slug
		ORDER BY COUNT(*) DESC`, merchant)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []service.MerchantCategoryCount
	for rows.Next() {
		var c service.MerchantCategoryCount
		if err := rows.Scan(&c.CategorySlug, &c.Count, &c.UserConfirmed); err != nil {
			return nil, fmt.Errorf("failed to scan merchant history: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// RerouteClassificationsForCategory moves every result assigned to a
// category onto another slug. Results that were user-confirmed lose that
// protection, are flagged as pending questions, and the event is logged for
// user review rather than silently dropped.
func (s *SQLiteStorage) RerouteClassificationsForCategory(ctx context.Context, categorySlug, toSlug string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(categorySlug, "categorySlug"); err != nil {
		return 0, err
	}
	if err := validateString(toSlug, "toSlug"); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var confirmed int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM classifications
		WHERE category_slug = ? AND source = 'user-confirmed'`,
		categorySlug).Scan(&confirmed); err != nil {
		return 0, fmt.Errorf("failed to count confirmed results: %w", err)
	}
	if confirmed > 0 {
		slog.Warn("re-routing user-confirmed classifications from removed category",
			"category", categorySlug, "to", toSlug, "count", confirmed)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE classifications SET
			category_slug = ?,
			source = 'rule',
			confidence = 0,
			pending_question = 1,
			priority = ?,
			classified_at = ?
		WHERE category_slug = ?`,
		toSlug, model.PriorityHigh, time.Now(), categorySlug)
	if err != nil {
		return 0, fmt.Errorf("failed to re-route classifications: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check re-route result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *SQLiteStorage) queryClassifications(ctx context.Context, query string, args ...any) ([]model.ClassificationResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.ClassificationResult
	for rows.Next() {
		result, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}
