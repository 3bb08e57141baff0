package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderhart/sift/internal/common"
	"github.com/calderhart/sift/internal/engine"
	"github.com/calderhart/sift/internal/merchant"
	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/taxonomy"
	"github.com/calderhart/sift/internal/testutil"
)

func setupEngine(t *testing.T, opts engine.Options) (*engine.Engine, service.Storage) {
	t.Helper()

	store := testutil.SetupTestDB(t)
	svc := merchant.NewService(store)
	if opts.Learner == nil {
		opts.Learner = svc
	}
	eng := engine.New(store, svc, taxonomy.NewManager(store), opts)
	return eng, store
}

func saveTxn(t *testing.T, store service.Storage, id, description string, amount float64, date time.Time) model.Transaction {
	t.Helper()

	txn := model.Transaction{
		ID:             id,
		Date:           date,
		RawDescription: description,
		Amount:         amount,
		AccountID:      "acct-1",
	}
	txn.Hash = txn.GenerateHash()
	require.NoError(t, store.SaveTransactions(context.Background(), []model.Transaction{txn}))
	return txn
}

func TestClassifyKnownMerchantAutoAssigns(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{})
	ctx := context.Background()

	txn := saveTxn(t, store, "txn-1", "WM SUPERCENTER #4521", 42.17,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))

	result, err := eng.Classify(ctx, txn)
	require.NoError(t, err)

	assert.Equal(t, "food-groceries", result.CategorySlug)
	assert.Equal(t, model.SourceRule, result.Source)
	assert.GreaterOrEqual(t, result.Confidence, model.AutoAssignThreshold)
	assert.InDelta(t, 0.89, result.Confidence, 0.001)
	assert.False(t, result.PendingQuestion)
	assert.Equal(t, model.PriorityNone, result.Priority)

	// The canonical merchant is written back onto the transaction.
	stored, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, "Walmart", stored.MerchantName)
}

func TestClassifyIsIdempotent(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{})
	ctx := context.Background()

	txn := saveTxn(t, store, "txn-1", "WM SUPERCENTER #4521", 42.17,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))

	first, err := eng.Classify(ctx, txn)
	require.NoError(t, err)

	// The first run stores an unconfirmed result, which feeds back into the
	// merchant history; the rerun must not drift.
	second, err := eng.Classify(ctx, txn)
	require.NoError(t, err)

	assert.Equal(t, first.CategorySlug, second.CategorySlug)
	assert.InDelta(t, first.Confidence, second.Confidence, 0.001)
	assert.Equal(t, first.PendingQuestion, second.PendingQuestion)
}

func TestConfirmRaisesConfidenceForMerchant(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{})
	ctx := context.Background()

	txn1 := saveTxn(t, store, "txn-1", "WM SUPERCENTER #4521", 42.17,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	before, err := eng.Classify(ctx, txn1)
	require.NoError(t, err)

	require.NoError(t, eng.Confirm(ctx, "txn-1", "food-groceries"))

	txn2 := saveTxn(t, store, "txn-2", "WM SUPERCENTER #0098", 17.80,
		time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC))
	after, err := eng.Classify(ctx, txn2)
	require.NoError(t, err)

	assert.Equal(t, "food-groceries", after.CategorySlug)
	assert.Greater(t, after.Confidence, before.Confidence)
	assert.InDelta(t, 0.94, after.Confidence, 0.001)
	assert.False(t, after.PendingQuestion)
}

func TestClassifyUnknownMerchantFallsBack(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{})
	ctx := context.Background()

	txn := saveTxn(t, store, "txn-1", "JOES DINER 0042", 23.50,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))

	result, err := eng.Classify(ctx, txn)
	require.NoError(t, err)

	assert.Equal(t, model.UncategorizedSlug, result.CategorySlug)
	assert.True(t, result.PendingQuestion)
	assert.Equal(t, model.PriorityHigh, result.Priority)
}

func TestClassifyKeepsUserConfirmedResult(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{})
	ctx := context.Background()

	txn := saveTxn(t, store, "txn-1", "WM SUPERCENTER #4521", 42.17,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	_, err := eng.Classify(ctx, txn)
	require.NoError(t, err)

	// The user disagrees with the keyword signal.
	require.NoError(t, eng.Confirm(ctx, "txn-1", "shopping"))

	result, err := eng.Classify(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, "shopping", result.CategorySlug)
	assert.Equal(t, model.SourceUserConfirmed, result.Source)
}

func TestConfirmRejectsUnknownCategory(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{})
	ctx := context.Background()

	saveTxn(t, store, "txn-1", "WM SUPERCENTER #4521", 42.17,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))

	err := eng.Confirm(ctx, "txn-1", "no-such-slug")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)

	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)
}

func TestConfirmLearnsExactAlias(t *testing.T) {
	store := testutil.SetupTestDB(t)
	svc := merchant.NewService(store)
	eng := engine.New(store, svc, taxonomy.NewManager(store), engine.Options{Learner: svc})
	ctx := context.Background()

	txn := saveTxn(t, store, "txn-1", "JOES DINER 0042", 23.50,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	_, err := eng.Classify(ctx, txn)
	require.NoError(t, err)

	require.NoError(t, eng.Confirm(ctx, "txn-1", "food-restaurants"))

	// Later charges with the same description resolve without heuristics.
	normalized, err := svc.Normalize(ctx, "JOES DINER 0042")
	require.NoError(t, err)
	assert.True(t, normalized.Matched())
	assert.Equal(t, "Joes Diner", normalized.Canonical)
}

func TestConfirmMerchantConfirmsAllPending(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{})
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	txn1 := saveTxn(t, store, "txn-1", "JOES DINER 0042", 23.50, base)
	txn2 := saveTxn(t, store, "txn-2", "JOES DINER 0042", 31.20, base.AddDate(0, 0, 7))

	_, err := eng.Classify(ctx, txn1)
	require.NoError(t, err)
	_, err = eng.Classify(ctx, txn2)
	require.NoError(t, err)

	confirmed, err := eng.ConfirmMerchant(ctx, "Joes Diner", "food-restaurants")
	require.NoError(t, err)
	assert.Equal(t, 2, confirmed)

	for _, id := range []string{"txn-1", "txn-2"} {
		result, err := store.GetClassification(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "food-restaurants", result.CategorySlug)
		assert.Equal(t, model.SourceUserConfirmed, result.Source)
		assert.False(t, result.PendingQuestion)
	}
}

// errorSemantic simulates an unavailable external classifier.
type errorSemantic struct{}

func (errorSemantic) Classify(context.Context, model.Transaction, string, []model.Category) (model.ClassificationSource, string, float64, error) {
	return "", "", 0, errors.New("deadline exceeded")
}

// fixedSemantic returns a canned classification.
type fixedSemantic struct {
	slug  string
	score float64
}

func (f fixedSemantic) Classify(context.Context, model.Transaction, string, []model.Category) (model.ClassificationSource, string, float64, error) {
	return model.SourceModel, f.slug, f.score, nil
}

func TestSemanticErrorFallsBackToDeterministic(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{Semantic: errorSemantic{}})
	ctx := context.Background()

	txn := saveTxn(t, store, "txn-1", "JOES DINER 0042", 23.50,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))

	result, err := eng.Classify(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, model.UncategorizedSlug, result.CategorySlug)
	assert.Equal(t, model.PriorityHigh, result.Priority)
}

func TestSemanticResultWinsWhenStronger(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{
		Semantic: fixedSemantic{slug: "food-restaurants", score: 0.91},
	})
	ctx := context.Background()

	txn := saveTxn(t, store, "txn-1", "JOES DINER 0042", 23.50,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))

	result, err := eng.Classify(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, "food-restaurants", result.CategorySlug)
	assert.Equal(t, model.SourceModel, result.Source)
	assert.InDelta(t, 0.91, result.Confidence, 0.001)
	assert.False(t, result.PendingQuestion)
}

func TestSemanticNotConsultedAboveThreshold(t *testing.T) {
	// A high deterministic score must short-circuit the external call.
	eng, store := setupEngine(t, engine.Options{
		Semantic: fixedSemantic{slug: "shopping", score: 0.99},
	})
	ctx := context.Background()

	txn := saveTxn(t, store, "txn-1", "WM SUPERCENTER #4521", 42.17,
		time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))

	result, err := eng.Classify(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, "food-groceries", result.CategorySlug)
	assert.Equal(t, model.SourceRule, result.Source)
}

func TestRecurringPatternBoostsSubscriptionCategories(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{})
	ctx := context.Background()

	base := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	txn1 := saveTxn(t, store, "txn-1", "NETFLIX.COM", 15.49, base)
	_, err := eng.Classify(ctx, txn1)
	require.NoError(t, err)
	require.NoError(t, eng.Confirm(ctx, "txn-1", "entertainment"))

	require.NoError(t, store.SaveSubscriptionRecord(ctx, &model.SubscriptionRecord{
		ID: "sub-1", Merchant: "Netflix",
		Frequency: model.FrequencyMonthly, MedianAmount: 15.49,
		Occurrences: 3, LastSeen: base.AddDate(0, 2, 0), Stable: true,
	}))

	txn2 := saveTxn(t, store, "txn-2", "NETFLIX.COM", 15.49, base.AddDate(0, 3, 0))
	result, err := eng.Classify(ctx, txn2)
	require.NoError(t, err)

	// One confirmation (0.85) plus the recurring-pattern boost (0.05).
	assert.Equal(t, "entertainment", result.CategorySlug)
	assert.InDelta(t, 0.90, result.Confidence, 0.001)
	assert.False(t, result.PendingQuestion)
}

func TestClassifyBatchStats(t *testing.T) {
	eng, store := setupEngine(t, engine.Options{})
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	saveTxn(t, store, "txn-auto", "WM SUPERCENTER #4521", 42.17, base)
	saveTxn(t, store, "txn-unknown", "JOES DINER 0042", 23.50, base)

	confirmed := saveTxn(t, store, "txn-confirmed", "NETFLIX.COM", 15.49, base)
	_, err := eng.Classify(ctx, confirmed)
	require.NoError(t, err)
	require.NoError(t, eng.Confirm(ctx, "txn-confirmed", "entertainment"))

	var calls int
	stats, err := eng.ClassifyNew(ctx, nil, func(done, total int) {
		calls++
		assert.Equal(t, 2, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.AutoAssigned)
	assert.Equal(t, 1, stats.Uncategorized)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 2, calls)
}
