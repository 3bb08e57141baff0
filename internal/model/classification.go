package model

import "time"

// ClassificationSource indicates how a transaction was categorized.
type ClassificationSource string

// Classification source constants.
const (
	SourceRule          ClassificationSource = "rule"
	SourceModel         ClassificationSource = "model"
	SourceUserConfirmed ClassificationSource = "user-confirmed"
)

// Confidence band thresholds. At or above AutoAssignThreshold results are
// applied silently; below QuestionThreshold the transaction falls back to
// the uncategorized placeholder.
const (
	AutoAssignThreshold = 0.85
	QuestionThreshold   = 0.5
)

// QuestionPriority orders the pending-question queue.
type QuestionPriority int

const (
	// PriorityNone means no confirmation is needed.
	PriorityNone QuestionPriority = 0
	// PriorityNormal flags a mid-confidence assignment for review.
	PriorityNormal QuestionPriority = 1
	// PriorityHigh flags an uncategorized transaction for review.
	PriorityHigh QuestionPriority = 2
)

// ClassificationResult records the category decision for one transaction.
// Results are upserted by transaction ID and never deleted; prior values
// are copied to an audit history table on every change.
type ClassificationResult struct {
	ClassifiedAt    time.Time
	TransactionID   string
	CategorySlug    string
	Source          ClassificationSource
	Notes           string
	Confidence      float64
	PendingQuestion bool
	Priority        QuestionPriority
}

// IsUserConfirmed reports whether the result was explicitly confirmed and
// therefore must never be silently overwritten.
func (r *ClassificationResult) IsUserConfirmed() bool {
	return r.Source == SourceUserConfirmed
}

// BandFor returns the source-appropriate pending flag and priority for a
// confidence score.
func BandFor(confidence float64) (pending bool, priority QuestionPriority) {
	switch {
	case confidence >= AutoAssignThreshold:
		return false, PriorityNone
	case confidence >= QuestionThreshold:
		return true, PriorityNormal
	default:
		return true, PriorityHigh
	}
}
