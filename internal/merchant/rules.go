package merchant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
)

type seedRule struct {
	pattern   string
	canonical string
	kind      model.AliasMatchKind
}

// defaultAliases is the hardcoded alias seed. Processor prefixes (SQ, TST,
// PAYPAL) stay stable even when the suffix varies per charge; more specific
// prefixes beat shorter ones at match time.
var defaultAliases = []seedRule{
	{"AMZN MKTP", "Amazon", model.MatchPrefix},
	{"AMAZON.COM", "Amazon", model.MatchPrefix},
	{"AMZN DIGITAL", "Amazon", model.MatchPrefix},
	{"WM SUPERCENTER", "Walmart", model.MatchPrefix},
	{"WAL-MART", "Walmart", model.MatchPrefix},
	{"WALMART.COM", "Walmart", model.MatchPrefix},
	{"TARGET T-", "Target", model.MatchPrefix},
	{"TARGET.COM", "Target", model.MatchPrefix},
	{"COSTCO WHSE", "Costco", model.MatchPrefix},
	{"TRADER JOE S", "Trader Joe's", model.MatchPrefix},
	{"WHOLEFDS", "Whole Foods", model.MatchPrefix},
	{"SAFEWAY", "Safeway", model.MatchPrefix},

	{"SQ *", "Square", model.MatchPrefix},
	{"TST*", "Toast", model.MatchPrefix},
	{"PAYPAL *", "PayPal", model.MatchPrefix},
	{"PY *", "PayPal", model.MatchPrefix},

	{"UBER *EATS", "Uber Eats", model.MatchPrefix},
	{"UBER *", "Uber", model.MatchPrefix},
	{"UBER TRIP", "Uber", model.MatchPrefix},
	{"LYFT *", "Lyft", model.MatchPrefix},
	{"DOORDASH*", "DoorDash", model.MatchPrefix},
	{"GRUBHUB*", "Grubhub", model.MatchPrefix},

	{"NETFLIX.COM", "Netflix", model.MatchExact},
	{"SPOTIFY USA", "Spotify", model.MatchPrefix},
	{"APPLE.COM/BILL", "Apple", model.MatchPrefix},
	{"GOOGLE *", "Google", model.MatchPrefix},
	{"MSFT *", "Microsoft", model.MatchPrefix},
	{"ADOBE *", "Adobe", model.MatchPrefix},
	{"GITHUB", "GitHub", model.MatchPrefix},
	{"DIGITALOCEAN", "DigitalOcean", model.MatchPrefix},
	{"AWS", "Amazon Web Services", model.MatchExact},
	{"AMAZON WEB SERVICES", "Amazon Web Services", model.MatchPrefix},

	{"SHELL OIL", "Shell", model.MatchPrefix},
	{"CHEVRON", "Chevron", model.MatchPrefix},
	{"EXXONMOBIL", "ExxonMobil", model.MatchPrefix},

	{"STARBUCKS", "Starbucks", model.MatchPrefix},
	{"MCDONALD'S", "McDonald's", model.MatchPrefix},
	{"CHIPOTLE", "Chipotle", model.MatchPrefix},

	{"DELTA AIR", "Delta Air Lines", model.MatchPrefix},
	{"UNITED", "United Airlines", model.MatchPrefix},
	{"AIRBNB", "Airbnb", model.MatchPrefix},
	{"MARRIOTT", "Marriott", model.MatchPrefix},

	{"CVS/PHARMACY", "CVS", model.MatchPrefix},
	{"WALGREENS", "Walgreens", model.MatchPrefix},
}

// SeedAliases loads the hardcoded alias table. Last entry wins on pattern
// conflicts, matching the seed format's conflict resolution.
func SeedAliases(ctx context.Context, store service.Storage) error {
	existing, err := store.GetAliases(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, alias := range existing {
		seen[canonicalKey(alias.Pattern)] = true
	}

	created := 0
	for _, rule := range defaultAliases {
		if seen[canonicalKey(rule.pattern)] {
			continue
		}
		alias := &model.MerchantAlias{
			Pattern:   rule.pattern,
			Canonical: rule.canonical,
			Kind:      rule.kind,
			Source:    model.AliasHardcoded,
		}
		if err := store.SaveAlias(ctx, alias); err != nil {
			return fmt.Errorf("failed to seed alias %q: %w", rule.pattern, err)
		}
		created++
	}

	if created > 0 {
		slog.Info("seeded merchant aliases", "created", created)
	}
	return nil
}
