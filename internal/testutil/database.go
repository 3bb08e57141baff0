// Package testutil provides shared helpers for package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/calderhart/sift/internal/merchant"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/storage"
	"github.com/calderhart/sift/internal/taxonomy"
)

// SetupTestDB creates a migrated in-memory database seeded with the system
// categories and merchant alias rules. Cleanup is registered automatically.
func SetupTestDB(t *testing.T) service.Storage {
	t.Helper()

	store := SetupBareDB(t)

	ctx := context.Background()
	if err := taxonomy.Seed(ctx, store); err != nil {
		t.Fatalf("failed to seed categories: %v", err)
	}
	if err := merchant.SeedAliases(ctx, store); err != nil {
		t.Fatalf("failed to seed aliases: %v", err)
	}

	return store
}

// SetupBareDB creates a migrated in-memory database with no seed data.
func SetupBareDB(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
