package merchant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/storage"
)

func seededNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	aliases := make([]model.MerchantAlias, 0, len(defaultAliases))
	for _, rule := range defaultAliases {
		aliases = append(aliases, model.MerchantAlias{
			Pattern:   rule.pattern,
			Canonical: rule.canonical,
			Kind:      rule.kind,
			Source:    model.AliasHardcoded,
		})
	}
	return NewNormalizer(aliases)
}

func TestNormalizerAliasMatching(t *testing.T) {
	n := seededNormalizer(t)

	tests := []struct {
		name          string
		raw           string
		wantCanonical string
		wantMatched   bool
	}{
		{"amazon marketplace with reference", "AMZN MKTP US*1A2B3", "Amazon", true},
		{"walmart store number", "WM SUPERCENTER #4521", "Walmart", true},
		{"exact netflix", "NETFLIX.COM", "Netflix", true},
		{"square processor prefix", "SQ *BLUE BOTTLE COFFEE", "Square", true},
		{"case insensitive", "wm supercenter #99", "Walmart", true},
		{"unmatched falls back to cleaned", "JOES DINER 0042", "Joes Diner", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.raw)
			assert.Equal(t, tt.wantCanonical, got.Canonical)
			assert.Equal(t, tt.wantMatched, got.Matched())
		})
	}
}

func TestNormalizerLongestPrefixWins(t *testing.T) {
	n := seededNormalizer(t)

	// UBER *EATS is longer than UBER *, so food delivery resolves to the
	// food brand, not the rideshare one.
	eats := n.Normalize("UBER *EATS PENDING")
	assert.Equal(t, "Uber Eats", eats.Canonical)

	trip := n.Normalize("UBER *TRIP 8FJ2K")
	assert.Equal(t, "Uber", trip.Canonical)
}

func TestNormalizerLastWriteWins(t *testing.T) {
	aliases := []model.MerchantAlias{
		{Pattern: "ACME", Canonical: "Acme Old", Kind: model.MatchPrefix, Source: model.AliasHardcoded},
		{Pattern: "ACME", Canonical: "Acme New", Kind: model.MatchPrefix, Source: model.AliasLearned},
	}
	n := NewNormalizer(aliases)

	got := n.Normalize("ACME SUPPLIES 42")
	assert.Equal(t, "Acme New", got.Canonical)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"strips store number", "STARBUCKS STORE 0042", "Starbucks Store"},
		{"strips hash code", "LOCAL CAFE #12", "Local Cafe"},
		{"cuts at processor asterisk", "VENDOR *REF123 EXTRA", "Vendor"},
		{"collapses whitespace", "CORNER   MARKET", "Corner Market"},
		{"keeps plain name", "BLUE BOTTLE", "Blue Bottle"},
		{"all codes keeps last token", "X 12345", "X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw))
		})
	}
}

func TestServiceRecordsCandidatesAndLearns(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, SeedAliases(ctx, store))

	svc := NewService(store)

	// Unmatched descriptions are recorded for review.
	got, err := svc.Normalize(ctx, "JOES DINER 0042")
	require.NoError(t, err)
	assert.Equal(t, "Joes Diner", got.Canonical)
	assert.False(t, got.Matched())

	candidates, err := store.GetNormalizationCandidates(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Joes Diner", candidates["JOES DINER 0042"])

	// Learned aliases take effect on the next call.
	require.NoError(t, svc.Learn(ctx, "JOES DINER", "Joe's Diner", model.MatchPrefix))

	got, err = svc.Normalize(ctx, "JOES DINER 0042")
	require.NoError(t, err)
	assert.Equal(t, "Joe's Diner", got.Canonical)
	assert.True(t, got.Matched())
	assert.Equal(t, model.AliasLearned, got.Source)
}
