package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/testutil"
)

func TestImportStampsPurposeAndHash(t *testing.T) {
	store := testutil.SetupBareDB(t)
	importer := NewImporter(store, map[string]model.AccountPurpose{
		"biz-1": model.PurposeBusiness,
	}, nil)

	ctx := context.Background()
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	count, err := importer.Import(ctx, []model.Transaction{
		{ID: "txn-1", Date: date, RawDescription: "GITHUB.COM", Amount: 4, AccountID: "biz-1"},
		{ID: "txn-2", Date: date, RawDescription: "WM SUPERCENTER", Amount: 42.17, AccountID: "pers-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	biz, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.PurposeBusiness, biz.AccountPurpose)
	assert.NotEmpty(t, biz.Hash)

	// Accounts without a configured purpose default to personal.
	personal, err := store.GetTransactionByID(ctx, "txn-2")
	require.NoError(t, err)
	assert.Equal(t, model.PurposePersonal, personal.AccountPurpose)
}

func TestImportEmptyBatch(t *testing.T) {
	store := testutil.SetupBareDB(t)
	importer := NewImporter(store, nil, nil)

	count, err := importer.Import(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestImportIsIdempotent(t *testing.T) {
	store := testutil.SetupBareDB(t)
	importer := NewImporter(store, nil, nil)

	ctx := context.Background()
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	txn := model.Transaction{
		ID: "txn-1", Date: date, RawDescription: "NETFLIX.COM", Amount: 15.49, AccountID: "acct-1",
	}

	_, err := importer.Import(ctx, []model.Transaction{txn})
	require.NoError(t, err)
	_, err = importer.Import(ctx, []model.Transaction{txn})
	require.NoError(t, err)

	all, err := store.GetTransactionsToClassify(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
