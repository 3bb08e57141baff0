package model

import "time"

// AliasSource indicates how a merchant alias rule was created.
type AliasSource string

const (
	// AliasHardcoded indicates the alias came from the seeded rule set.
	AliasHardcoded AliasSource = "hardcoded"
	// AliasLearned indicates the alias was learned from user feedback.
	AliasLearned AliasSource = "learned"
)

// AliasMatchKind distinguishes exact patterns from prefix patterns.
type AliasMatchKind string

const (
	// MatchExact requires the whole raw description to equal the pattern.
	MatchExact AliasMatchKind = "exact"
	// MatchPrefix matches any raw description beginning with the pattern.
	MatchPrefix AliasMatchKind = "prefix"
)

// MerchantAlias maps a raw bank string pattern to a canonical merchant name.
// Many patterns may map to one canonical name; each pattern maps to exactly
// one canonical name at a time (last write wins).
type MerchantAlias struct {
	CreatedAt time.Time
	Pattern   string
	Canonical string
	Kind      AliasMatchKind
	Source    AliasSource
}

// NormalizedMerchant is the outcome of normalizing a raw description.
// Normalization never fails: when no alias matches, Canonical holds the
// cleaned raw string and Source is empty.
type NormalizedMerchant struct {
	Canonical      string
	MatchedPattern string
	Source         AliasSource // empty when no alias rule matched
}

// Matched reports whether an alias rule produced the canonical name.
func (n NormalizedMerchant) Matched() bool {
	return n.Source != ""
}
