package domain

import "time"

// MaxCategoryDepth bounds every ancestor walk so traversal terminates even if
// a cycle were to slip past write-time validation.
const MaxCategoryDepth = 10

// Category is a node in the hierarchical category taxonomy.
// Level is derived: 0 for roots, parent.Level+1 otherwise. The hierarchy is a
// tree; cycles are rejected at write time by walking the ancestor chain.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	ParentID    *uint     `gorm:"index:idx_categories_parent" json:"parent_id,omitempty"`
	Level       int       `gorm:"default:0;index:idx_categories_level" json:"level"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string {
	return "categories"
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}
