package engine

import (
	"strings"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/taxonomy"
)

// candidate is a scored category suggestion from one deterministic signal.
type candidate struct {
	slug  string
	score float64
}

// dominantHistory picks the merchant's strongest prior category. User
// confirmations outrank any volume of unconfirmed assignments; among
// equally-confirmed entries the larger total wins. Uncategorized fallbacks
// carry no signal and are skipped.
func dominantHistory(history []service.MerchantCategoryCount) (service.MerchantCategoryCount, bool) {
	var best service.MerchantCategoryCount
	found := false
	for _, h := range history {
		if h.CategorySlug == model.UncategorizedSlug {
			continue
		}
		if !found {
			best, found = h, true
			continue
		}
		if h.UserConfirmed != best.UserConfirmed {
			if h.UserConfirmed > best.UserConfirmed {
				best = h
			}
			continue
		}
		if h.Count > best.Count {
			best = h
		}
	}
	return best, found
}

// keywordSignal matches the canonical merchant and raw description against
// category keywords. More distinct keyword hits mean a stronger score;
// three or more hits clear the auto-assign threshold on their own.
func keywordSignal(txn model.Transaction, canonical string, snap *taxonomy.Snapshot) (candidate, bool) {
	haystack := strings.ToLower(canonical + " " + txn.RawDescription)

	var best candidate
	bestHits := 0
	for _, cat := range snap.All() {
		if cat.Slug == model.UncategorizedSlug || len(cat.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, kw := range cat.Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best.slug = cat.Slug
		}
	}
	if bestHits == 0 {
		return candidate{}, false
	}
	if bestHits > 3 {
		bestHits = 3
	}
	best.score = 0.75 + 0.07*float64(bestHits)
	return best, true
}

// recurringSlugs are categories where a recurring-billing pattern supports
// the assignment.
var recurringSlugs = map[string]bool{
	"software":      true,
	"entertainment": true,
	"utilities":     true,
	"phone":         true,
	"insurance":     true,
}

// contextBoost nudges the score when transaction context agrees with the
// candidate category.
func contextBoost(txn model.Transaction, cat model.Category, recurring bool) float64 {
	boost := 0.0
	if txn.AccountPurpose == model.PurposeBusiness && cat.IsTypicallyDeductible {
		boost += 0.03
	}
	if recurring && recurringSlugs[cat.Slug] {
		boost += 0.05
	}
	return boost
}

// scoreDeterministic combines the history, keyword, and context signals
// into a single candidate. A user-confirmed history entry wins the slug
// outright and each additional confirmation strictly raises the score, so
// feedback is monotone. Returns an empty slug when no signal fires.
func scoreDeterministic(txn model.Transaction, canonical string, snap *taxonomy.Snapshot, history []service.MerchantCategoryCount, recurring bool) candidate {
	kw, kwOK := keywordSignal(txn, canonical, snap)
	hist, histOK := dominantHistory(history)

	var best candidate
	switch {
	case histOK && hist.UserConfirmed > 0:
		base := 0.8
		if kwOK && kw.slug == hist.CategorySlug && kw.score > base {
			base = kw.score
		}
		n := float64(hist.UserConfirmed)
		best = candidate{slug: hist.CategorySlug, score: base + 0.1*n/(n+1)}
	case histOK && kwOK:
		n := float64(hist.Count)
		histScore := 0.55 + 0.15*n/(n+1)
		if histScore > kw.score {
			best = candidate{slug: hist.CategorySlug, score: histScore}
		} else {
			best = kw
		}
	case kwOK:
		best = kw
	case histOK:
		n := float64(hist.Count)
		best = candidate{slug: hist.CategorySlug, score: 0.55 + 0.15*n/(n+1)}
	default:
		return candidate{}
	}

	if cat, ok := snap.Resolve(best.slug); ok {
		best.score += contextBoost(txn, cat, recurring)
	}
	if best.score > 0.99 {
		best.score = 0.99
	}
	return best
}
