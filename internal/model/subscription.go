package model

import "time"

// Frequency classifies the cadence of a recurring charge.
type Frequency string

const (
	// FrequencyWeekly is a charge roughly every 7 days.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly is a charge roughly every 30 days.
	FrequencyMonthly Frequency = "monthly"
	// FrequencyQuarterly is a charge roughly every 91 days.
	FrequencyQuarterly Frequency = "quarterly"
	// FrequencyAnnual is a charge roughly every 365 days.
	FrequencyAnnual Frequency = "annual"
	// FrequencyIrregular is recurring spend without a stable cadence or
	// with high amount variability (metered billing).
	FrequencyIrregular Frequency = "irregular"
)

// PeriodDays returns the nominal period for a frequency, or 0 for irregular.
func (f Frequency) PeriodDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyMonthly:
		return 30
	case FrequencyQuarterly:
		return 91
	case FrequencyAnnual:
		return 365
	default:
		return 0
	}
}

// SubscriptionRecord is an inferred recurring-billing pattern for one
// canonical merchant. Records are superseded on recomputation rather than
// mutated, so the chain preserves history.
type SubscriptionRecord struct {
	ComputedAt    time.Time
	LastSeen      time.Time
	ID            string // uuid
	Merchant      string
	SupersedesID  string // previous record in the chain, if any
	Frequency     Frequency
	MedianAmount  float64
	Occurrences   int
	LikelyStopped bool
	Stable        bool // 3+ occurrences with consistent cadence
}
