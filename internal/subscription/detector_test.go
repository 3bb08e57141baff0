package subscription

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/testutil"
)

var detectorNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupDetector(t *testing.T) (*Detector, service.Storage) {
	t.Helper()

	store := testutil.SetupBareDB(t)
	detector := NewDetector(store, slog.Default())
	detector.now = func() time.Time { return detectorNow }
	return detector, store
}

func saveCharges(t *testing.T, store service.Storage, merchant string, amount float64, dates []time.Time) {
	t.Helper()

	txns := make([]model.Transaction, 0, len(dates))
	for i, date := range dates {
		txn := model.Transaction{
			ID:             merchant + "-" + date.Format("2006-01-02") + "-" + string(rune('a'+i)),
			Date:           date,
			RawDescription: merchant,
			MerchantName:   merchant,
			Amount:         amount,
			AccountID:      "acct-1",
		}
		txn.Hash = txn.GenerateHash()
		txns = append(txns, txn)
	}
	require.NoError(t, store.SaveTransactions(context.Background(), txns))
}

func monthlyDates(last time.Time, count int) []time.Time {
	dates := make([]time.Time, count)
	for i := range dates {
		dates[i] = last.AddDate(0, 0, -30*(count-1-i))
	}
	return dates
}

func TestDetectMonthlyStable(t *testing.T) {
	detector, store := setupDetector(t)
	ctx := context.Background()

	last := detectorNow.AddDate(0, 0, -10)
	saveCharges(t, store, "Netflix", 14.99, monthlyDates(last, 6))

	record, err := detector.Detect(ctx, "Netflix")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, model.FrequencyMonthly, record.Frequency)
	assert.InDelta(t, 14.99, record.MedianAmount, 0.001)
	assert.Equal(t, 6, record.Occurrences)
	assert.True(t, record.Stable)
	assert.False(t, record.LikelyStopped)
	assert.True(t, record.LastSeen.Equal(last))
	assert.NotEmpty(t, record.ID)
	assert.Empty(t, record.SupersedesID)
}

func TestDetectWeekly(t *testing.T) {
	detector, store := setupDetector(t)
	ctx := context.Background()

	last := detectorNow.AddDate(0, 0, -2)
	dates := []time.Time{
		last.AddDate(0, 0, -21),
		last.AddDate(0, 0, -14),
		last.AddDate(0, 0, -7),
		last,
	}
	saveCharges(t, store, "Cleaners", 35, dates)

	record, err := detector.Detect(ctx, "Cleaners")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, model.FrequencyWeekly, record.Frequency)
	assert.True(t, record.Stable)
}

func TestDetectLikelyStopped(t *testing.T) {
	detector, store := setupDetector(t)
	ctx := context.Background()

	// Last charge 70 days ago: past 1.5x the 30-day period.
	last := detectorNow.AddDate(0, 0, -70)
	saveCharges(t, store, "OldBox", 9.99, monthlyDates(last, 4))

	record, err := detector.Detect(ctx, "OldBox")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, model.FrequencyMonthly, record.Frequency)
	assert.True(t, record.LikelyStopped)
}

func TestDetectIrregularIntervals(t *testing.T) {
	detector, store := setupDetector(t)
	ctx := context.Background()

	// Gaps of 10, 45, and 80 days vary far too much for any cadence.
	start := detectorNow.AddDate(0, 0, -140)
	dates := []time.Time{
		start,
		start.AddDate(0, 0, 10),
		start.AddDate(0, 0, 55),
		start.AddDate(0, 0, 135),
	}
	saveCharges(t, store, "CloudCompute", 120, dates)

	record, err := detector.Detect(ctx, "CloudCompute")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, model.FrequencyIrregular, record.Frequency)
	assert.False(t, record.Stable)
}

func TestDetectMeteredBillingIsIrregular(t *testing.T) {
	detector, store := setupDetector(t)
	ctx := context.Background()

	// Clean monthly cadence but wildly varying amounts: usage-based
	// billing, downgraded rather than discarded.
	dates := monthlyDates(detectorNow.AddDate(0, 0, -10), 4)
	txns := make([]model.Transaction, 0, len(dates))
	for i, amount := range []float64{20, 85, 310, 47} {
		txn := model.Transaction{
			ID:             "aws-" + dates[i].Format("2006-01-02"),
			Date:           dates[i],
			RawDescription: "AWS",
			MerchantName:   "AWS",
			Amount:         amount,
			AccountID:      "acct-1",
		}
		txn.Hash = txn.GenerateHash()
		txns = append(txns, txn)
	}
	require.NoError(t, store.SaveTransactions(ctx, txns))

	record, err := detector.Detect(ctx, "AWS")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, model.FrequencyIrregular, record.Frequency)
	assert.False(t, record.Stable)
	assert.InDelta(t, 66, record.MedianAmount, 0.001)
}

func TestDetectNeedsTwoCharges(t *testing.T) {
	detector, store := setupDetector(t)
	ctx := context.Background()

	saveCharges(t, store, "OneOff", 50, []time.Time{detectorNow.AddDate(0, 0, -5)})

	record, err := detector.Detect(ctx, "OneOff")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestDetectIsIdempotent(t *testing.T) {
	detector, store := setupDetector(t)
	ctx := context.Background()

	last := detectorNow.AddDate(0, 0, -10)
	saveCharges(t, store, "Netflix", 14.99, monthlyDates(last, 4))

	first, err := detector.Detect(ctx, "Netflix")
	require.NoError(t, err)
	require.NotNil(t, first)

	// Nothing changed, so the stored record is returned as-is.
	second, err := detector.Detect(ctx, "Netflix")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, second.SupersedesID)
}

func TestDetectSupersedesOnNewCharge(t *testing.T) {
	detector, store := setupDetector(t)
	ctx := context.Background()

	last := detectorNow.AddDate(0, 0, -40)
	saveCharges(t, store, "Netflix", 14.99, monthlyDates(last, 4))

	first, err := detector.Detect(ctx, "Netflix")
	require.NoError(t, err)
	require.NotNil(t, first)

	newLast := last.AddDate(0, 0, 30)
	saveCharges(t, store, "Netflix", 14.99, []time.Time{newLast})

	second, err := detector.Detect(ctx, "Netflix")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.ID, second.SupersedesID)
	assert.Equal(t, 5, second.Occurrences)

	// Only the newest record remains active.
	latest, err := store.GetLatestSubscriptionRecord(ctx, "Netflix")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestDetectAll(t *testing.T) {
	detector, store := setupDetector(t)
	ctx := context.Background()

	last := detectorNow.AddDate(0, 0, -10)
	saveCharges(t, store, "Netflix", 14.99, monthlyDates(last, 4))
	saveCharges(t, store, "Spotify", 11.99, monthlyDates(last.AddDate(0, 0, -3), 3))
	saveCharges(t, store, "OneOff", 50, []time.Time{last})

	detected, err := detector.DetectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, detected)

	active, err := store.GetActiveSubscriptionRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}
