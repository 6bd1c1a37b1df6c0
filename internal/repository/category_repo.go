package repository

import (
	"context"
	"errors"

	"github.com/topicsloop/topicsloop/internal/domain"
	"gorm.io/gorm"
)

// CategoryRepository handles category taxonomy operations.
// Hierarchy invariants (no self-parent, no cycles, bounded depth, derived
// level) are enforced here at write time; read paths assume a valid tree.
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByID retrieves a category by its ID.
// Returns domain.ErrNotFound if absent.
func (r *CategoryRepository) GetByID(ctx context.Context, id uint) (*domain.Category, error) {
	var category domain.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &category, nil
}

// ListAll retrieves every category.
func (r *CategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := r.db.WithContext(ctx).Order("id").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// ListByLevel retrieves categories at a hierarchy level, optionally scoped to
// a parent. For level 0 with no parent, only root categories are returned.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - level: hierarchy level (0 = root).
//   - parentID: optional parent scope; nil means no parent filter beyond level.
// Returns:
//   - []domain.Category: matching categories ordered by id.
//   - error: non-nil if the query fails.
func (r *CategoryRepository) ListByLevel(ctx context.Context, level int, parentID *uint) ([]domain.Category, error) {
	query := r.db.WithContext(ctx).Where("level = ?", level)
	if parentID != nil {
		query = query.Where("parent_id = ?", *parentID)
	} else if level == 0 {
		query = query.Where("parent_id IS NULL")
	}
	var categories []domain.Category
	if err := query.Order("id").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Children retrieves the direct children of a category.
func (r *CategoryRepository) Children(ctx context.Context, id uint) ([]domain.Category, error) {
	var categories []domain.Category
	if err := r.db.WithContext(ctx).Where("parent_id = ?", id).Order("id").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Ancestors walks the parent chain from the category to the root.
// The walk is bounded by domain.MaxCategoryDepth so it terminates even if a
// cycle slipped past validation.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: starting category id (not included in the result).
// Returns:
//   - []domain.Category: ancestors ordered nearest-first.
//   - error: non-nil if a lookup fails.
func (r *CategoryRepository) Ancestors(ctx context.Context, id uint) ([]domain.Category, error) {
	category, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var ancestors []domain.Category
	current := category
	for depth := 0; depth < domain.MaxCategoryDepth && current.ParentID != nil; depth++ {
		parent, err := r.GetByID(ctx, *current.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				break
			}
			return nil, err
		}
		ancestors = append(ancestors, *parent)
		current = parent
	}
	return ancestors, nil
}

// DescendantIDs collects the category id plus every descendant id via a
// breadth-first walk bounded by domain.MaxCategoryDepth levels.
func (r *CategoryRepository) DescendantIDs(ctx context.Context, id uint) ([]uint, error) {
	ids := []uint{id}
	frontier := []uint{id}
	seen := map[uint]struct{}{id: {}}

	for depth := 0; depth < domain.MaxCategoryDepth && len(frontier) > 0; depth++ {
		var children []domain.Category
		if err := r.db.WithContext(ctx).
			Select("id").
			Where("parent_id IN ?", frontier).
			Find(&children).Error; err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, c := range children {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			ids = append(ids, c.ID)
			frontier = append(frontier, c.ID)
		}
	}
	return ids, nil
}

// Path builds the hierarchical display path ("Root > Child > Leaf") for a
// category.
func (r *CategoryRepository) Path(ctx context.Context, id uint) (string, error) {
	category, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	ancestors, err := r.Ancestors(ctx, id)
	if err != nil {
		return "", err
	}

	path := category.Name
	for _, a := range ancestors {
		path = a.Name + " > " + path
	}
	return path, nil
}

// Create validates hierarchy invariants and persists a new category.
// Level is derived from the parent; callers must not set it.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - category: category to persist; Level is overwritten.
// Returns:
//   - error: validation error (ErrSelfParent, ErrCategoryCycle,
//     ErrMaxDepthExceeded) or the write error.
func (r *CategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	if err := r.resolveLevel(ctx, category); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(category).Error
}

// Update validates hierarchy invariants and saves changes to a category.
func (r *CategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	if err := r.resolveLevel(ctx, category); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(category).Error
}

// resolveLevel walks the proposed ancestor chain, rejecting self-parents,
// cycles, and excessive depth, and derives the category's level.
func (r *CategoryRepository) resolveLevel(ctx context.Context, category *domain.Category) error {
	if category.ParentID == nil {
		category.Level = 0
		return nil
	}
	if category.ID != 0 && *category.ParentID == category.ID {
		return domain.ErrSelfParent
	}

	parent, err := r.GetByID(ctx, *category.ParentID)
	if err != nil {
		return err
	}

	// Walk up from the proposed parent; hitting the category itself means the
	// assignment would close a cycle.
	current := parent
	for depth := 1; ; depth++ {
		if depth > domain.MaxCategoryDepth {
			return domain.ErrMaxDepthExceeded
		}
		if category.ID != 0 && current.ID == category.ID {
			return domain.ErrCategoryCycle
		}
		if current.ParentID == nil {
			break
		}
		current, err = r.GetByID(ctx, *current.ParentID)
		if err != nil {
			return err
		}
	}

	category.Level = parent.Level + 1
	if category.Level >= domain.MaxCategoryDepth {
		return domain.ErrMaxDepthExceeded
	}
	return nil
}

// Count returns the total number of categories.
func (r *CategoryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Category{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
