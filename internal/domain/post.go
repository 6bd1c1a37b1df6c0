package domain

import "time"

// Post represents a content post in the platform.
// A post belongs to exactly one primary category and zero or more additional
// categories assigned manually or by auto-categorization.
type Post struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	Title                string     `gorm:"type:text;not null" json:"title"`
	Content              string     `gorm:"type:text" json:"content"`
	AuthorID             uint       `gorm:"not null;index:idx_posts_author" json:"author_id"`
	PrimaryCategoryID    *uint      `gorm:"index:idx_posts_primary_category" json:"primary_category_id,omitempty"`
	PrimaryCategory      *Category  `gorm:"foreignKey:PrimaryCategoryID" json:"primary_category,omitempty"`
	AdditionalCategories []Category `gorm:"many2many:post_additional_categories" json:"additional_categories,omitempty"`
	Tags                 []Tag      `gorm:"many2many:post_tags" json:"tags,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string {
	return "posts"
}

// TagNames returns the names of the post's tags in declaration order.
func (p *Post) TagNames() []string {
	names := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		names[i] = t.Name
	}
	return names
}

// CategoryIDs returns the primary category id followed by all additional
// category ids, without duplicates.
func (p *Post) CategoryIDs() []uint {
	seen := make(map[uint]struct{}, len(p.AdditionalCategories)+1)
	ids := make([]uint, 0, len(p.AdditionalCategories)+1)
	if p.PrimaryCategoryID != nil {
		seen[*p.PrimaryCategoryID] = struct{}{}
		ids = append(ids, *p.PrimaryCategoryID)
	}
	for _, c := range p.AdditionalCategories {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		ids = append(ids, c.ID)
	}
	return ids
}

// Tag represents a free-form label attached to posts.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:text;not null;uniqueIndex:idx_tags_name" json:"name"`
}

// TableName returns the database table name for Tag.
func (Tag) TableName() string {
	return "tags"
}
