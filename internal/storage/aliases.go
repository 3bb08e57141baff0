package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calderhart/sift/internal/model"
)

// GetAliases returns every merchant alias rule, seeded and learned.
// Results are cached briefly since normalization is read-heavy.
func (s *SQLiteStorage) GetAliases(ctx context.Context) ([]model.MerchantAlias, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	if cached := s.cachedAliases(); cached != nil {
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern, canonical, kind, source, created_at
		FROM merchant_aliases
		ORDER BY pattern`)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aliases []model.MerchantAlias
	for rows.Next() {
		var alias model.MerchantAlias
		var kind, source string
		if err := rows.Scan(&alias.Pattern, &alias.Canonical, &kind, &source, &alias.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		alias.Kind = model.AliasMatchKind(kind)
		alias.Source = model.AliasSource(source)
		aliases = append(aliases, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aliases: %w", err)
	}

	s.storeAliasCache(aliases)
	return aliases, nil
}

// SaveAlias upserts an alias rule. A pattern maps to exactly one canonical
// name at a time; conflicts resolve last-write-wins and are logged.
func (s *SQLiteStorage) SaveAlias(ctx context.Context, alias *model.MerchantAlias) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAlias(alias); err != nil {
		return err
	}

	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = time.Now()
	}

	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT canonical FROM merchant_aliases WHERE pattern = ?`,
		alias.Pattern).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing alias: %w", err)
	}
	if err == nil && existing != alias.Canonical {
		slog.Warn("alias pattern remapped",
			"pattern", alias.Pattern,
			"old_canonical", existing,
			"new_canonical", alias.Canonical,
			"source", alias.Source)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_aliases (pattern, canonical, kind, source, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pattern) DO UPDATE SET
			canonical = excluded.canonical,
			kind = excluded.kind,
			source = excluded.source`,
		alias.Pattern, alias.Canonical, string(alias.Kind), string(alias.Source), alias.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to save alias: %w", err)
	}

	s.invalidateAliasCache()
	return nil
}

// SaveNormalizationCandidate records a raw description that no alias rule
// matched, so learned rules can be proposed later.
func (s *SQLiteStorage) SaveNormalizationCandidate(ctx context.Context, rawDescription, cleaned string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(rawDescription, "rawDescription"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO normalization_candidates (raw_description, cleaned, seen_count, last_seen)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(raw_description) DO UPDATE SET
			seen_count = seen_count + 1,
			last_seen = excluded.last_seen`,
		rawDescription, cleaned, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to save normalization candidate: %w", err)
	}
	return nil
}

// GetNormalizationCandidates returns the most frequently seen unmatched raw
// descriptions mapped to their cleaned form.
func (s *SQLiteStorage) GetNormalizationCandidates(ctx context.Context, limit int) (map[string]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT raw_description, cleaned
		FROM normalization_candidates
		ORDER BY seen_count DESC, last_seen DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query normalization candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make(map[string]string)
	for rows.Next() {
		var raw, cleaned string
		if err := rows.Scan(&raw, &cleaned); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates[raw] = cleaned
	}
	return candidates, rows.Err()
}
