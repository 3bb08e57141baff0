// Package taxonomy maintains the hierarchical expense category tree.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/calderhart/sift/internal/common"
	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/storage"
)

// Snapshot is an immutable view of the taxonomy for one user scope: the
// shared system layer with the user's categories overlaid. Lookups are O(1)
// by slug; breadcrumbs walk parents and are O(depth).
type Snapshot struct {
	bySlug   map[string]model.Category
	children map[string][]model.Category
	userID   string
}

// Load builds a snapshot from storage. User-scoped categories shadow system
// categories with the same slug.
func Load(ctx context.Context, store service.Storage, userID string) (*Snapshot, error) {
	categories, err := store.GetCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	snap := &Snapshot{
		bySlug:   make(map[string]model.Category, len(categories)),
		children: make(map[string][]model.Category),
		userID:   userID,
	}

	for _, cat := range categories {
		if existing, ok := snap.bySlug[cat.Slug]; ok {
			// User overlay wins over the system layer.
			if existing.IsSystem() && !cat.IsSystem() {
				snap.bySlug[cat.Slug] = cat
			}
			continue
		}
		snap.bySlug[cat.Slug] = cat
	}

	for _, cat := range snap.bySlug {
		snap.children[cat.ParentSlug] = append(snap.children[cat.ParentSlug], cat)
	}
	for parent := range snap.children {
		kids := snap.children[parent]
		sort.Slice(kids, func(i, j int) bool {
			if kids[i].SortOrder != kids[j].SortOrder {
				return kids[i].SortOrder < kids[j].SortOrder
			}
			return kids[i].Slug < kids[j].Slug
		})
	}

	return snap, nil
}

// Resolve returns the category for a slug.
func (s *Snapshot) Resolve(slug string) (model.Category, bool) {
	cat, ok := s.bySlug[slug]
	return cat, ok
}

// Children returns the ordered direct children of a slug. Pass an empty
// slug for the root categories.
func (s *Snapshot) Children(slug string) []model.Category {
	return s.children[slug]
}

// All returns every category in the snapshot in display order.
func (s *Snapshot) All() []model.Category {
	out := make([]model.Category, 0, len(s.bySlug))
	var walk func(parent string)
	walk = func(parent string) {
		for _, cat := range s.children[parent] {
			out = append(out, cat)
			walk(cat.Slug)
		}
	}
	walk("")
	return out
}

// IsDeductible reports the category's own deductible flag. Tax attributes
// are not inherited from parents.
func (s *Snapshot) IsDeductible(slug string) bool {
	cat, ok := s.bySlug[slug]
	return ok && cat.IsTypicallyDeductible
}

// TaxLine returns the Schedule C line for a slug, or empty when unmapped.
func (s *Snapshot) TaxLine(slug string) string {
	return s.bySlug[slug].TaxScheduleLine
}

// Breadcrumb returns the path from root to the slug, inclusive.
func (s *Snapshot) Breadcrumb(slug string) []model.Category {
	var path []model.Category
	seen := make(map[string]bool)
	for slug != "" && !seen[slug] {
		seen[slug] = true
		cat, ok := s.bySlug[slug]
		if !ok {
			break
		}
		path = append([]model.Category{cat}, path...)
		slug = cat.ParentSlug
	}
	return path
}

// Len returns the number of categories in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.bySlug)
}

// Manager validates and applies taxonomy edits, then hands out fresh
// snapshots. Reads go through immutable snapshots so no locking is needed.
type Manager struct {
	store service.Storage
}

// NewManager creates a taxonomy manager backed by storage.
func NewManager(store service.Storage) *Manager {
	return &Manager{store: store}
}

// Snapshot loads the current taxonomy for a user scope.
func (m *Manager) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	return Load(ctx, m.store, userID)
}

// Create inserts a new category after validating its parent exists in the
// visible scope. A new leaf cannot create a cycle.
func (m *Manager) Create(ctx context.Context, category *model.Category) (*model.Category, error) {
	snap, err := Load(ctx, m.store, category.UserID)
	if err != nil {
		return nil, err
	}

	if category.ParentSlug != "" {
		if _, ok := snap.Resolve(category.ParentSlug); !ok {
			return nil, fmt.Errorf("%w: parent %q does not exist",
				common.ErrInvalidTaxonomy, category.ParentSlug)
		}
	}
	if _, ok := snap.Resolve(category.Slug); ok {
		return nil, fmt.Errorf("%w: slug %q already exists",
			common.ErrInvalidTaxonomy, category.Slug)
	}

	return m.store.CreateCategory(ctx, category)
}

// Update applies edits to an existing category. Re-parenting is validated
// with an ancestor walk so a category can never become its own descendant;
// on rejection the tree is left unchanged.
func (m *Manager) Update(ctx context.Context, category *model.Category) error {
	snap, err := Load(ctx, m.store, category.UserID)
	if err != nil {
		return err
	}

	current, ok := snap.Resolve(category.Slug)
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrCategoryNotFound, category.Slug)
	}
	if current.IsSystem() && category.UserID != model.SystemScope {
		return common.ErrSystemCategory
	}

	if category.ParentSlug != "" {
		if _, ok := snap.Resolve(category.ParentSlug); !ok {
			return fmt.Errorf("%w: parent %q does not exist",
				common.ErrInvalidTaxonomy, category.ParentSlug)
		}
		// Walk up from the proposed parent; reaching the category itself
		// means the edit would create a cycle.
		ancestor := category.ParentSlug
		seen := make(map[string]bool)
		for ancestor != "" && !seen[ancestor] {
			if ancestor == category.Slug {
				return fmt.Errorf("%w: %q cannot be a descendant of itself",
					common.ErrInvalidTaxonomy, category.Slug)
			}
			seen[ancestor] = true
			parent, ok := snap.Resolve(ancestor)
			if !ok {
				break
			}
			ancestor = parent.ParentSlug
		}
	}

	return m.store.UpdateCategory(ctx, category)
}

// Delete removes a user category, reassigning its transactions. System
// categories and the uncategorized placeholder are protected.
func (m *Manager) Delete(ctx context.Context, userID, slug, reassignTo string) error {
	if slug == model.UncategorizedSlug {
		return fmt.Errorf("%w: %s is reserved", common.ErrSystemCategory, slug)
	}

	cat, err := m.store.GetCategoryBySlug(ctx, userID, slug)
	if err != nil {
		return err
	}
	if cat.IsSystem() {
		return common.ErrSystemCategory
	}

	snap, err := Load(ctx, m.store, userID)
	if err != nil {
		return err
	}
	if kids := snap.Children(slug); len(kids) > 0 {
		return fmt.Errorf("%w: %q still has %d child categories",
			common.ErrInvalidTaxonomy, slug, len(kids))
	}
	if reassignTo != "" {
		if _, ok := snap.Resolve(reassignTo); !ok {
			return fmt.Errorf("%w: reassignment target %q does not exist",
				common.ErrInvalidTaxonomy, reassignTo)
		}
	}

	if err := m.store.DeleteCategory(ctx, userID, slug, reassignTo); err != nil {
		return err
	}

	slog.Info("deleted category", "slug", slug, "reassigned_to", reassignTo)
	return nil
}

// IsNotFound reports whether an error means the category does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrCategoryNotFound)
}
