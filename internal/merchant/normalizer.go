// Package merchant normalizes raw bank descriptions into canonical
// merchant identities using ranked alias rules.
package merchant

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
)

// Normalizer matches raw descriptions against an immutable alias rule set.
// Rule order is deterministic: exact matches first, then prefixes longest
// first, so the most specific rule always wins.
type Normalizer struct {
	exact    map[string]model.MerchantAlias
	prefixes []model.MerchantAlias
}

// NewNormalizer compiles an alias rule set. Later entries for the same
// pattern shadow earlier ones (last write wins).
func NewNormalizer(aliases []model.MerchantAlias) *Normalizer {
	n := &Normalizer{
		exact: make(map[string]model.MerchantAlias),
	}

	prefixByPattern := make(map[string]model.MerchantAlias)
	for _, alias := range aliases {
		key := canonicalKey(alias.Pattern)
		switch alias.Kind {
		case model.MatchExact:
			n.exact[key] = alias
		case model.MatchPrefix:
			prefixByPattern[key] = alias
		}
	}

	n.prefixes = make([]model.MerchantAlias, 0, len(prefixByPattern))
	for key, alias := range prefixByPattern {
		alias.Pattern = key
		n.prefixes = append(n.prefixes, alias)
	}
	// Longest prefix first; ties break lexically for determinism.
	sort.Slice(n.prefixes, func(i, j int) bool {
		if len(n.prefixes[i].Pattern) != len(n.prefixes[j].Pattern) {
			return len(n.prefixes[i].Pattern) > len(n.prefixes[j].Pattern)
		}
		return n.prefixes[i].Pattern < n.prefixes[j].Pattern
	})

	return n
}

// Normalize maps a raw description to a canonical merchant. It never fails:
// when no rule matches, the cleaned raw string becomes its own canonical
// identity with an empty alias source.
func (n *Normalizer) Normalize(rawDescription string) model.NormalizedMerchant {
	key := canonicalKey(rawDescription)
	if key == "" {
		return model.NormalizedMerchant{Canonical: strings.TrimSpace(rawDescription)}
	}

	if alias, ok := n.exact[key]; ok {
		return model.NormalizedMerchant{
			Canonical:      alias.Canonical,
			MatchedPattern: alias.Pattern,
			Source:         alias.Source,
		}
	}

	for _, alias := range n.prefixes {
		if strings.HasPrefix(key, alias.Pattern) {
			return model.NormalizedMerchant{
				Canonical:      alias.Canonical,
				MatchedPattern: alias.Pattern,
				Source:         alias.Source,
			}
		}
	}

	return model.NormalizedMerchant{Canonical: Clean(rawDescription)}
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Trailing store numbers, reference codes, and location suffixes, e.g.
	// "#4521", "*1A2B3", "0042", "F7231".
	trailingCodeRe = regexp.MustCompile(`^[#*]?[A-Z]{0,2}\d[\dA-Z-]*$`)
)

// Clean applies light normalization to an unmatched raw description: strip
// trailing store and reference codes, collapse whitespace, title-case.
func Clean(rawDescription string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(rawDescription))
	// Payment processors glue reference codes on with an asterisk.
	if idx := strings.Index(cleaned, " *"); idx > 0 {
		cleaned = cleaned[:idx]
	}
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")

	tokens := strings.Split(cleaned, " ")
	for len(tokens) > 1 && trailingCodeRe.MatchString(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}

	for i, token := range tokens {
		if len(token) > 1 {
			tokens[i] = token[:1] + strings.ToLower(token[1:])
		}
	}
	result := strings.Join(tokens, " ")
	if result == "" {
		return strings.TrimSpace(rawDescription)
	}
	return result
}

func canonicalKey(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), " ")
}

// Service layers persistence over the matcher: alias rules come from
// storage (seeded plus learned), and unmatched descriptions are recorded as
// normalization candidates for later review.
type Service struct {
	store    service.Storage
	compiled *Normalizer
	count    int
	mu       sync.Mutex
}

// NewService creates a storage-backed normalizer service.
func NewService(store service.Storage) *Service {
	return &Service{store: store}
}

func (s *Service) normalizer(ctx context.Context) (*Normalizer, error) {
	aliases, err := s.store.GetAliases(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled == nil || s.count != len(aliases) {
		s.compiled = NewNormalizer(aliases)
		s.count = len(aliases)
	}
	return s.compiled, nil
}

// Normalize resolves a raw description against the current rule set.
// Candidates that match no rule are logged, never blocked.
func (s *Service) Normalize(ctx context.Context, rawDescription string) (model.NormalizedMerchant, error) {
	n, err := s.normalizer(ctx)
	if err != nil {
		return model.NormalizedMerchant{}, err
	}

	result := n.Normalize(rawDescription)
	if !result.Matched() && result.Canonical != "" {
		if err := s.store.SaveNormalizationCandidate(ctx, rawDescription, result.Canonical); err != nil {
			slog.Warn("failed to record normalization candidate",
				"raw", rawDescription, "error", err)
		}
	}
	return result, nil
}

// Learn persists a runtime alias so future imports of the same pattern
// resolve to the given canonical name.
func (s *Service) Learn(ctx context.Context, pattern, canonical string, kind model.AliasMatchKind) error {
	if err := s.store.SaveAlias(ctx, &model.MerchantAlias{
		Pattern:   pattern,
		Canonical: canonical,
		Kind:      kind,
		Source:    model.AliasLearned,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.compiled = nil
	s.mu.Unlock()
	return nil
}
