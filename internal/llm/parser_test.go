package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    ClassificationResponse
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"category": "software", "confidence": 0.82}`,
			want:    ClassificationResponse{CategorySlug: "software", Confidence: 0.82},
		},
		{
			name: "json fenced",
			content: "```json\n" +
				`{"category": "food-groceries", "confidence": 0.9}` + "\n```",
			want: ClassificationResponse{CategorySlug: "food-groceries", Confidence: 0.9},
		},
		{
			name:    "bare fence",
			content: "```\n{\"category\": \"travel\", \"confidence\": 0.75}\n```",
			want:    ClassificationResponse{CategorySlug: "travel", Confidence: 0.75},
		},
		{
			name:    "surrounding whitespace",
			content: "  \n{\"category\": \"shopping\", \"confidence\": 0.6}\n ",
			want:    ClassificationResponse{CategorySlug: "shopping", Confidence: 0.6},
		},
		{
			name:    "missing category",
			content: `{"confidence": 0.9}`,
			wantErr: true,
		},
		{
			name:    "confidence above one",
			content: `{"category": "software", "confidence": 1.2}`,
			wantErr: true,
		},
		{
			name:    "negative confidence",
			content: `{"category": "software", "confidence": -0.1}`,
			wantErr: true,
		},
		{
			name:    "not json",
			content: "I think this is probably software.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.CategorySlug, got.CategorySlug)
			assert.InDelta(t, tt.want.Confidence, got.Confidence, 0.001)
		})
	}
}

func TestSuggestionCache(t *testing.T) {
	cache := newSuggestionCache(50 * time.Millisecond)
	defer cache.Close()

	_, ok := cache.get("Netflix")
	assert.False(t, ok)

	cache.set("Netflix", ClassificationResponse{CategorySlug: "entertainment", Confidence: 0.8})

	got, ok := cache.get("Netflix")
	require.True(t, ok)
	assert.Equal(t, "entertainment", got.CategorySlug)

	// Entries expire after the TTL.
	time.Sleep(80 * time.Millisecond)
	_, ok = cache.get("Netflix")
	assert.False(t, ok)
}
