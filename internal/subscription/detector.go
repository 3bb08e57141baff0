// Package subscription infers recurring-billing patterns from transaction
// history. Inference is recomputed from scratch on each run and persisted
// as an append-only chain of records: a new result supersedes the previous
// one rather than mutating it.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
)

// Detection tuning constants.
const (
	// minOccurrences is the minimum charge count before any cadence is
	// inferred.
	minOccurrences = 2
	// stableOccurrences is the minimum charge count for a pattern to be
	// marked stable.
	stableOccurrences = 3
	// toleranceRatio and toleranceFloor bound how far an observed interval
	// may drift from a nominal period and still match it.
	toleranceRatio = 0.15
	toleranceFloor = 3 * 24 * time.Hour
	// maxIntervalCV is the coefficient-of-variation ceiling on intervals;
	// above it the cadence is irregular regardless of the median.
	maxIntervalCV = 0.20
	// maxAmountCV is the same ceiling on charge amounts. Metered billing
	// recurs on a clean cadence but with varying amounts; it is downgraded
	// to irregular rather than discarded.
	maxAmountCV = 0.20
	// stoppedMultiple is how many nominal periods may pass after the last
	// charge before the subscription is considered likely stopped.
	stoppedMultiple = 1.5
)

var nominalPeriods = []model.Frequency{
	model.FrequencyWeekly,
	model.FrequencyMonthly,
	model.FrequencyQuarterly,
	model.FrequencyAnnual,
}

// Detector computes subscription records for canonical merchants.
type Detector struct {
	store  service.Storage
	logger *slog.Logger
	now    func() time.Time
}

// NewDetector creates a subscription detector.
func NewDetector(store service.Storage, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// DetectAll recomputes subscription records for every merchant with
// classified transactions. Returns the number of merchants for which a
// record now exists.
func (d *Detector) DetectAll(ctx context.Context) (int, error) {
	merchants, err := d.store.GetClassifiedMerchants(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list merchants: %w", err)
	}

	detected := 0
	for _, merchant := range merchants {
		record, err := d.Detect(ctx, merchant)
		if err != nil {
			return detected, err
		}
		if record != nil {
			detected++
		}
	}

	d.logger.Info("subscription detection complete",
		"merchants", len(merchants),
		"detected", detected)

	return detected, nil
}

// Detect recomputes the subscription record for one merchant. A merchant
// with fewer than two charges yields no record. Detection is idempotent:
// when the computed pattern matches the latest stored record, no new record
// is written and the existing one is returned.
func (d *Detector) Detect(ctx context.Context, merchant string) (*model.SubscriptionRecord, error) {
	txns, err := d.store.GetTransactionsByMerchant(ctx, merchant)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for %q: %w", merchant, err)
	}
	if len(txns) < minOccurrences {
		return nil, nil
	}

	record := d.infer(merchant, txns)

	latest, err := d.store.GetLatestSubscriptionRecord(ctx, merchant)
	if err != nil {
		return nil, err
	}
	if latest != nil && samePattern(latest, record) {
		return latest, nil
	}

	record.ID = uuid.NewString()
	record.ComputedAt = d.now()
	if latest != nil {
		record.SupersedesID = latest.ID
	}

	if err := d.store.SaveSubscriptionRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save subscription record: %w", err)
	}

	d.logger.Debug("subscription record updated",
		"merchant", merchant,
		"frequency", record.Frequency,
		"occurrences", record.Occurrences,
		"stable", record.Stable,
		"likely_stopped", record.LikelyStopped)

	return record, nil
}

// infer derives the cadence from charge dates and amounts.
func (d *Detector) infer(merchant string, txns []model.Transaction) *model.SubscriptionRecord {
	sort.Slice(txns, func(i, j int) bool { return txns[i].Date.Before(txns[j].Date) })

	amounts := make([]float64, len(txns))
	for i, txn := range txns {
		amounts[i] = math.Abs(txn.Amount)
	}

	intervals := make([]time.Duration, 0, len(txns)-1)
	for i := 1; i < len(txns); i++ {
		intervals = append(intervals, txns[i].Date.Sub(txns[i-1].Date))
	}

	lastSeen := txns[len(txns)-1].Date
	record := &model.SubscriptionRecord{
		Merchant:     merchant,
		Frequency:    model.FrequencyIrregular,
		MedianAmount: median(amounts),
		Occurrences:  len(txns),
		LastSeen:     lastSeen,
	}

	freq, allWithinTolerance := matchPeriod(intervals)
	if freq == model.FrequencyIrregular {
		return record
	}
	if cv(amounts) > maxAmountCV {
		return record
	}

	record.Frequency = freq
	record.Stable = len(txns) >= stableOccurrences && allWithinTolerance

	period := time.Duration(freq.PeriodDays()) * 24 * time.Hour
	cutoff := time.Duration(float64(period) * stoppedMultiple)
	record.LikelyStopped = d.now().Sub(lastSeen) > cutoff

	return record
}

// matchPeriod maps observed intervals to the nearest nominal period, or
// irregular when the median fits no period or the intervals vary too much.
// The second return reports whether every individual interval is within
// tolerance of the matched period.
func matchPeriod(intervals []time.Duration) (model.Frequency, bool) {
	if len(intervals) == 0 {
		return model.FrequencyIrregular, false
	}

	days := make([]float64, len(intervals))
	for i, iv := range intervals {
		days[i] = iv.Hours() / 24
	}

	if cv(days) > maxIntervalCV {
		return model.FrequencyIrregular, false
	}

	med := median(days)
	for _, freq := range nominalPeriods {
		period := float64(freq.PeriodDays())
		if math.Abs(med-period) > tolerance(period) {
			continue
		}
		allWithin := true
		for _, dayCount := range days {
			if math.Abs(dayCount-period) > tolerance(period) {
				allWithin = false
				break
			}
		}
		return freq, allWithin
	}
	return model.FrequencyIrregular, false
}

func tolerance(periodDays float64) float64 {
	floor := toleranceFloor.Hours() / 24
	return math.Max(periodDays*toleranceRatio, floor)
}

func samePattern(a, b *model.SubscriptionRecord) bool {
	return a.Frequency == b.Frequency &&
		a.Occurrences == b.Occurrences &&
		a.Stable == b.Stable &&
		a.LikelyStopped == b.LikelyStopped &&
		a.LastSeen.Equal(b.LastSeen) &&
		math.Abs(a.MedianAmount-b.MedianAmount) < 0.005
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// cv is the coefficient of variation: sample standard deviation over mean.
func cv(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance) / mean
}
