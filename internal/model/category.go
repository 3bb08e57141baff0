// Package model defines the core domain models used throughout the application.
package model

import "time"

// SystemScope is the user scope shared by all users. System categories are
// seeded once and cannot be modified through the CLI.
const SystemScope = ""

// UncategorizedSlug is the reserved slug for the fallback category assigned
// to low-confidence classifications. It always exists.
const UncategorizedSlug = "uncategorized"

// Category represents a single node in the expense taxonomy.
type Category struct {
	CreatedAt             time.Time
	Slug                  string
	Name                  string
	Icon                  string
	Color                 string
	ParentSlug            string // empty for root categories
	TaxScheduleLine       string // empty means not mapped to a tax line
	UserID                string // SystemScope for seeded categories
	Keywords              []string
	ID                    int
	SortOrder             int
	IsEssential           bool
	IsTypicallyDeductible bool
}

// IsSystem reports whether the category belongs to the shared base layer.
func (c *Category) IsSystem() bool {
	return c.UserID == SystemScope
}

// HasTaxLine reports whether the category maps to a Schedule C line.
func (c *Category) HasTaxLine() bool {
	return c.TaxScheduleLine != ""
}
