package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calderhart/sift/internal/model"
)

const categoryColumns = `id, slug, name, icon, color, parent_slug, user_id,
	is_essential, is_typically_deductible, tax_schedule_line, keywords, sort_order, created_at`

func scanCategory(row interface{ Scan(...any) error }) (*model.Category, error) {
	var cat model.Category
	var keywordsJSON string
	if err := row.Scan(
		&cat.ID, &cat.Slug, &cat.Name, &cat.Icon, &cat.Color, &cat.ParentSlug, &cat.UserID,
		&cat.IsEssential, &cat.IsTypicallyDeductible, &cat.TaxScheduleLine,
		&keywordsJSON, &cat.SortOrder, &cat.CreatedAt,
	); err != nil {
		return nil, err
	}
	if keywordsJSON != "" {
		if err := json.Unmarshal([]byte(keywordsJSON), &cat.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode keywords for %s: %w", cat.Slug, err)
		}
	}
	return &cat, nil
}

// GetCategories returns all categories visible to a user: the shared system
// layer plus the user's own overlay, ordered for display.
func (s *SQLiteStorage) GetCategories(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM categories
		WHERE user_id = '' OR user_id = ?
		ORDER BY sort_order, slug`, categoryColumns)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories), "user_id", userID)
	return categories, nil
}

// GetCategoryBySlug resolves a slug, checking the user overlay before the
// system scope.
func (s *SQLiteStorage) GetCategoryBySlug(ctx context.Context, userID, slug string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(slug, "slug"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM categories
		WHERE slug = ? AND (user_id = ? OR user_id = '')
		ORDER BY user_id DESC
		LIMIT 1`, categoryColumns)

	cat, err := scanCategory(s.db.QueryRowContext(ctx, query, slug, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCategoryNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	return cat, nil
}

// CreateCategory inserts a category. Parent existence and acyclicity are
// enforced by the taxonomy layer before this is called.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, category *model.Category) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(category.Slug, "slug"); err != nil {
		return nil, err
	}
	if err := validateString(category.Name, "name"); err != nil {
		return nil, err
	}

	keywordsJSON, err := json.Marshal(category.Keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to encode keywords: %w", err)
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (
			slug, name, icon, color, parent_slug, user_id,
			is_essential, is_typically_deductible, tax_schedule_line,
			keywords, sort_order, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		category.Slug, category.Name, category.Icon, category.Color,
		category.ParentSlug, category.UserID,
		category.IsEssential, category.IsTypicallyDeductible, category.TaxScheduleLine,
		string(keywordsJSON), category.SortOrder, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", category.Slug, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category ID: %w", err)
	}

	created := *category
	created.ID = int(id)
	created.CreatedAt = now

	slog.Info("created category", "slug", created.Slug, "user_id", created.UserID)
	return &created, nil
}

// UpdateCategory updates a category's mutable fields by scope and slug.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(category.Slug, "slug"); err != nil {
		return err
	}

	keywordsJSON, err := json.Marshal(category.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categories SET
			name = ?, icon = ?, color = ?, parent_slug = ?,
			is_essential = ?, is_typically_deductible = ?, tax_schedule_line = ?,
			keywords = ?, sort_order = ?
		WHERE slug = ? AND user_id = ?`,
		category.Name, category.Icon, category.Color, category.ParentSlug,
		category.IsEssential, category.IsTypicallyDeductible, category.TaxScheduleLine,
		string(keywordsJSON), category.SortOrder,
		category.Slug, category.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update category %q: %w", category.Slug, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, category.Slug)
	}

	return nil
}

// DeleteCategory removes a user-scoped category. Existing classifications
// are reassigned to reassignTo when given; otherwise they are re-routed to
// the uncategorized placeholder with a pending question.
func (s *SQLiteStorage) DeleteCategory(ctx context.Context, userID, slug, reassignTo string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(slug, "slug"); err != nil {
		return err
	}

	target := reassignTo
	if target == "" {
		target = model.UncategorizedSlug
	}

	rerouted, err := s.RerouteClassificationsForCategory(ctx, slug, target)
	if err != nil {
		return fmt.Errorf("failed to reassign classifications: %w", err)
	}
	if rerouted > 0 {
		slog.Info("reassigned classifications from deleted category",
			"from", slug, "to", target, "count", rerouted)
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM categories WHERE slug = ? AND user_id = ?`, slug, userID)
	if err != nil {
		return fmt.Errorf("failed to delete category %q: %w", slug, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, slug)
	}

	return nil
}
