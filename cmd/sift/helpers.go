package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/calderhart/sift/internal/config"
	"github.com/calderhart/sift/internal/engine"
	"github.com/calderhart/sift/internal/llm"
	"github.com/calderhart/sift/internal/merchant"
	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/storage"
	"github.com/calderhart/sift/internal/taxonomy"
)

// initStorage opens the database, runs migrations, and applies seed data.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/sift/sift.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := taxonomy.Seed(ctx, store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to seed categories: %w", err)
	}
	if err := merchant.SeedAliases(ctx, store); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to seed aliases: %w", err)
	}

	return store, nil
}

func closeStorage(store service.Storage) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

// buildEngine assembles the classification engine. The semantic classifier
// is attached only when an LLM provider is configured; its Close func is
// returned for cleanup and is non-nil even when no classifier exists.
func buildEngine(store service.Storage) (*engine.Engine, func(), error) {
	merchants := merchant.NewService(store)
	manager := taxonomy.NewManager(store)

	opts := engine.Options{
		Learner: merchants,
		UserID:  viper.GetString("user.id"),
	}

	cleanup := func() {}
	if provider := viper.GetString("llm.provider"); provider != "" {
		classifier, err := llm.NewClassifier(llm.Config{
			Provider:    provider,
			APIKey:      viper.GetString("llm.api_key"),
			Model:       viper.GetString("llm.model"),
			Timeout:     viper.GetDuration("llm.timeout"),
			CacheTTL:    viper.GetDuration("llm.cache_ttl"),
			RateLimit:   viper.GetInt("llm.rate_limit"),
			Temperature: viper.GetFloat64("llm.temperature"),
			MaxTokens:   viper.GetInt("llm.max_tokens"),
		}, slog.Default())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create LLM classifier: %w", err)
		}
		opts.Semantic = classifier
		cleanup = classifier.Close
	}

	return engine.New(store, merchants, manager, opts), cleanup, nil
}

// accountPurposes reads the accounts.purposes config map (account ID to
// business/personal/mixed).
func accountPurposes() map[string]model.AccountPurpose {
	raw := viper.GetStringMapString("accounts.purposes")
	purposes := make(map[string]model.AccountPurpose, len(raw))
	for id, purpose := range raw {
		purposes[id] = model.AccountPurpose(purpose)
	}
	return purposes
}

// parseDate parses a YYYY-MM-DD flag value.
func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", value, err)
	}
	return parsed, nil
}
