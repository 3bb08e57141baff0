package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandFor(t *testing.T) {
	tests := []struct {
		name         string
		confidence   float64
		wantPending  bool
		wantPriority QuestionPriority
	}{
		{"high confidence auto-assigns", 0.92, false, PriorityNone},
		{"threshold exactly auto-assigns", 0.85, false, PriorityNone},
		{"mid confidence queues a question", 0.70, true, PriorityNormal},
		{"lower band boundary queues", 0.50, true, PriorityNormal},
		{"low confidence is high priority", 0.49, true, PriorityHigh},
		{"zero confidence is high priority", 0, true, PriorityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending, priority := BandFor(tt.confidence)
			assert.Equal(t, tt.wantPending, pending)
			assert.Equal(t, tt.wantPriority, priority)
		})
	}
}

func TestIsUserConfirmed(t *testing.T) {
	confirmed := ClassificationResult{Source: SourceUserConfirmed}
	assert.True(t, confirmed.IsUserConfirmed())

	rule := ClassificationResult{Source: SourceRule}
	assert.False(t, rule.IsUserConfirmed())
}
