package taxonomy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderhart/sift/internal/common"
	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/storage"
)

func setupSeededStore(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, Seed(ctx, store))
	return store
}

func TestSeedIsIdempotent(t *testing.T) {
	store := setupSeededStore(t)
	ctx := context.Background()

	snap, err := Load(ctx, store, model.SystemScope)
	require.NoError(t, err)
	before := snap.Len()

	require.NoError(t, Seed(ctx, store))

	snap, err = Load(ctx, store, model.SystemScope)
	require.NoError(t, err)
	assert.Equal(t, before, snap.Len())
}

func TestSnapshotHierarchy(t *testing.T) {
	store := setupSeededStore(t)
	ctx := context.Background()

	snap, err := Load(ctx, store, model.SystemScope)
	require.NoError(t, err)

	groceries, ok := snap.Resolve("food-groceries")
	require.True(t, ok)
	assert.Equal(t, "food", groceries.ParentSlug)

	crumbs := snap.Breadcrumb("food-groceries")
	require.Len(t, crumbs, 2)
	assert.Equal(t, "food", crumbs[0].Slug)
	assert.Equal(t, "food-groceries", crumbs[1].Slug)

	// Children come back in sort order, parents precede children in All.
	all := snap.All()
	index := make(map[string]int, len(all))
	for i, cat := range all {
		index[cat.Slug] = i
	}
	assert.Less(t, index["food"], index["food-groceries"])
	assert.Less(t, index["transport"], index["transport-fuel"])
}

func TestUserOverlayShadowsSystem(t *testing.T) {
	store := setupSeededStore(t)
	ctx := context.Background()
	manager := NewManager(store)

	// A user copy of a system slug shadows it within that user's scope
	// without touching the shared layer.
	_, err := store.CreateCategory(ctx, &model.Category{
		Slug:   "software",
		Name:   "Tools & Software",
		UserID: "u1",
	})
	require.NoError(t, err)

	userSnap, err := manager.Snapshot(ctx, "u1")
	require.NoError(t, err)
	cat, ok := userSnap.Resolve("software")
	require.True(t, ok)
	assert.Equal(t, "Tools & Software", cat.Name)
	assert.Equal(t, "u1", cat.UserID)

	systemSnap, err := manager.Snapshot(ctx, model.SystemScope)
	require.NoError(t, err)
	cat, ok = systemSnap.Resolve("software")
	require.True(t, ok)
	assert.Equal(t, "Software & Subscriptions", cat.Name)
}

func TestCreateValidation(t *testing.T) {
	store := setupSeededStore(t)
	ctx := context.Background()
	manager := NewManager(store)

	t.Run("rejects missing parent", func(t *testing.T) {
		_, err := manager.Create(ctx, &model.Category{
			Slug: "gadgets", Name: "Gadgets", ParentSlug: "nope", UserID: "u1",
		})
		assert.ErrorIs(t, err, common.ErrInvalidTaxonomy)
	})

	t.Run("rejects duplicate slug", func(t *testing.T) {
		_, err := manager.Create(ctx, &model.Category{
			Slug: "food", Name: "Food Again", UserID: "u1",
		})
		assert.ErrorIs(t, err, common.ErrInvalidTaxonomy)
	})

	t.Run("creates under existing parent", func(t *testing.T) {
		created, err := manager.Create(ctx, &model.Category{
			Slug: "food-snacks", Name: "Snacks", ParentSlug: "food", UserID: "u1",
		})
		require.NoError(t, err)
		assert.Equal(t, "food-snacks", created.Slug)
	})
}

func TestUpdateRejectsCycleAndLeavesTreeUnchanged(t *testing.T) {
	store := setupSeededStore(t)
	ctx := context.Background()
	manager := NewManager(store)

	parent, err := manager.Create(ctx, &model.Category{
		Slug: "hobby", Name: "Hobby", UserID: "u1",
	})
	require.NoError(t, err)
	child, err := manager.Create(ctx, &model.Category{
		Slug: "hobby-models", Name: "Models", ParentSlug: "hobby", UserID: "u1",
	})
	require.NoError(t, err)

	// Re-parenting hobby under its own child would create a cycle.
	edited := *parent
	edited.ParentSlug = child.Slug
	err = manager.Update(ctx, &edited)
	assert.ErrorIs(t, err, common.ErrInvalidTaxonomy)

	snap, err := manager.Snapshot(ctx, "u1")
	require.NoError(t, err)
	got, ok := snap.Resolve("hobby")
	require.True(t, ok)
	assert.Empty(t, got.ParentSlug)
}

func TestUpdateProtectsSystemCategories(t *testing.T) {
	store := setupSeededStore(t)
	ctx := context.Background()
	manager := NewManager(store)

	err := manager.Update(ctx, &model.Category{
		Slug: "food", Name: "Renamed", UserID: "u1",
	})
	assert.ErrorIs(t, err, common.ErrSystemCategory)
}

func TestDelete(t *testing.T) {
	store := setupSeededStore(t)
	ctx := context.Background()
	manager := NewManager(store)

	t.Run("protects uncategorized", func(t *testing.T) {
		err := manager.Delete(ctx, "u1", model.UncategorizedSlug, "")
		assert.ErrorIs(t, err, common.ErrSystemCategory)
	})

	t.Run("protects system categories", func(t *testing.T) {
		err := manager.Delete(ctx, "u1", "food", "")
		assert.ErrorIs(t, err, common.ErrSystemCategory)
	})

	t.Run("rejects delete with children", func(t *testing.T) {
		_, err := manager.Create(ctx, &model.Category{Slug: "hobby", Name: "Hobby", UserID: "u1"})
		require.NoError(t, err)
		_, err = manager.Create(ctx, &model.Category{Slug: "hobby-models", Name: "Models", ParentSlug: "hobby", UserID: "u1"})
		require.NoError(t, err)

		err = manager.Delete(ctx, "u1", "hobby", "")
		assert.ErrorIs(t, err, common.ErrInvalidTaxonomy)
	})

	t.Run("deletes leaf and reroutes classifications", func(t *testing.T) {
		txn := model.Transaction{
			ID: "txn-del", RawDescription: "MODEL SHOP", MerchantName: "Model Shop",
			Amount: 25, AccountID: "a1",
		}
		txn.Hash = txn.GenerateHash()
		require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))
		require.NoError(t, store.SaveClassification(ctx, &model.ClassificationResult{
			TransactionID: "txn-del",
			CategorySlug:  "hobby-models",
			Source:        model.SourceRule,
			Confidence:    0.9,
		}))

		require.NoError(t, manager.Delete(ctx, "u1", "hobby-models", ""))

		result, err := store.GetClassification(ctx, "txn-del")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, model.UncategorizedSlug, result.CategorySlug)
		assert.True(t, result.PendingQuestion)
		assert.Equal(t, model.PriorityHigh, result.Priority)
	})
}
