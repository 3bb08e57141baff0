package taxonomy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
)

// SeedVersion identifies the seed data applied by Seed. Bump it when the
// default category set changes.
const SeedVersion = 1

// defaultCategories is the system category layer. Tax lines reference IRS
// Schedule C part II line items. Keywords feed the deterministic keyword
// signal of the classification engine.
var defaultCategories = []model.Category{
	{Slug: "food", Name: "Food & Dining", Icon: "🍽️", Color: "#E07A5F", SortOrder: 10, IsEssential: true},
	{Slug: "food-groceries", Name: "Groceries", Icon: "🛒", Color: "#E07A5F", ParentSlug: "food", SortOrder: 11, IsEssential: true,
		Keywords: []string{"grocery", "supermarket", "supercenter", "market", "foods", "produce", "walmart", "costco", "safeway", "trader joe"}},
	{Slug: "food-restaurants", Name: "Restaurants", Icon: "🍜", Color: "#E07A5F", ParentSlug: "food", SortOrder: 12,
		Keywords: []string{"restaurant", "cafe", "coffee", "pizza", "grill", "bistro", "bakery"}},
	{Slug: "food-business-meals", Name: "Business Meals", Icon: "🤝", Color: "#E07A5F", ParentSlug: "food", SortOrder: 13,
		IsTypicallyDeductible: true, TaxScheduleLine: "24b",
		Keywords: []string{"client dinner", "business lunch"}},

	{Slug: "housing", Name: "Housing", Icon: "🏠", Color: "#3D405B", SortOrder: 20, IsEssential: true,
		Keywords: []string{"rent", "mortgage", "hoa"}},
	{Slug: "utilities", Name: "Utilities", Icon: "💡", Color: "#3D405B", SortOrder: 21, IsEssential: true,
		IsTypicallyDeductible: true, TaxScheduleLine: "25",
		Keywords: []string{"electric", "water", "gas", "internet", "utility", "power"}},
	{Slug: "phone", Name: "Phone", Icon: "📱", Color: "#3D405B", ParentSlug: "utilities", SortOrder: 22,
		IsTypicallyDeductible: true, TaxScheduleLine: "25",
		Keywords: []string{"wireless", "mobile", "cellular"}},

	{Slug: "transport", Name: "Transportation", Icon: "🚗", Color: "#81B29A", SortOrder: 30,
		Keywords: []string{"parking", "toll", "transit", "metro"}},
	{Slug: "transport-fuel", Name: "Fuel", Icon: "⛽", Color: "#81B29A", ParentSlug: "transport", SortOrder: 31,
		IsTypicallyDeductible: true, TaxScheduleLine: "9",
		Keywords: []string{"gas station", "fuel", "shell", "chevron", "exxon"}},
	{Slug: "transport-rideshare", Name: "Rideshare & Taxis", Icon: "🚕", Color: "#81B29A", ParentSlug: "transport", SortOrder: 32,
		IsTypicallyDeductible: true, TaxScheduleLine: "24a",
		Keywords: []string{"uber", "lyft", "taxi", "rideshare"}},
	{Slug: "travel", Name: "Travel", Icon: "✈️", Color: "#81B29A", SortOrder: 33,
		IsTypicallyDeductible: true, TaxScheduleLine: "24a",
		Keywords: []string{"airline", "hotel", "airbnb", "flight", "rental car"}},

	{Slug: "software", Name: "Software & Subscriptions", Icon: "💻", Color: "#5F797B", SortOrder: 40,
		IsTypicallyDeductible: true, TaxScheduleLine: "27a",
		Keywords: []string{"software", "subscription", "saas", "cloud", "hosting", "domain"}},
	{Slug: "office", Name: "Office Expenses", Icon: "🖇️", Color: "#5F797B", SortOrder: 41,
		IsTypicallyDeductible: true, TaxScheduleLine: "18",
		Keywords: []string{"office", "supplies", "printer", "stationery"}},
	{Slug: "equipment", Name: "Equipment", Icon: "🖥️", Color: "#5F797B", SortOrder: 42,
		IsTypicallyDeductible: true, TaxScheduleLine: "22",
		Keywords: []string{"hardware", "monitor", "laptop", "keyboard"}},
	{Slug: "professional-services", Name: "Professional Services", Icon: "⚖️", Color: "#5F797B", SortOrder: 43,
		IsTypicallyDeductible: true, TaxScheduleLine: "17",
		Keywords: []string{"legal", "accounting", "consulting", "attorney", "cpa"}},
	{Slug: "advertising", Name: "Advertising", Icon: "📣", Color: "#5F797B", SortOrder: 44,
		IsTypicallyDeductible: true, TaxScheduleLine: "8",
		Keywords: []string{"ads", "advertising", "marketing", "promotion"}},
	{Slug: "insurance", Name: "Insurance", Icon: "🛡️", Color: "#5F797B", SortOrder: 45, IsEssential: true,
		IsTypicallyDeductible: true, TaxScheduleLine: "15",
		Keywords: []string{"insurance", "premium", "policy"}},

	{Slug: "health", Name: "Health & Wellness", Icon: "🏥", Color: "#F2CC8F", SortOrder: 50, IsEssential: true,
		Keywords: []string{"pharmacy", "doctor", "dental", "clinic", "gym", "fitness"}},
	{Slug: "entertainment", Name: "Entertainment", Icon: "🎬", Color: "#F2CC8F", SortOrder: 51,
		Keywords: []string{"streaming", "movie", "music", "game", "concert"}},
	{Slug: "shopping", Name: "Shopping", Icon: "🛍️", Color: "#F2CC8F", SortOrder: 52,
		Keywords: []string{"store", "retail", "clothing", "apparel"}},
	{Slug: "education", Name: "Education", Icon: "📚", Color: "#F2CC8F", SortOrder: 53,
		IsTypicallyDeductible: true, TaxScheduleLine: "27a",
		Keywords: []string{"course", "training", "book", "tuition", "workshop"}},

	{Slug: model.UncategorizedSlug, Name: "Uncategorized", Icon: "❓", Color: "#999999", SortOrder: 99},
}

// Seed applies the system category layer. It is idempotent: categories that
// already exist are left untouched, so user edits to the database survive
// re-seeding.
func Seed(ctx context.Context, store service.Storage) error {
	snap, err := Load(ctx, store, model.SystemScope)
	if err != nil {
		return err
	}

	created := 0
	for i := range defaultCategories {
		cat := defaultCategories[i]
		if _, ok := snap.Resolve(cat.Slug); ok {
			continue
		}
		if _, err := store.CreateCategory(ctx, &cat); err != nil {
			return fmt.Errorf("failed to seed category %q: %w", cat.Slug, err)
		}
		created++
	}

	if created > 0 {
		slog.Info("seeded system categories",
			"created", created,
			"seed_version", SeedVersion)
	}
	return nil
}
