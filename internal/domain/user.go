package domain

import "time"

// UserProfile holds the per-user data the similarity engine consumes: explicit
// favorite categories plus recently authored posts (read through PostRepository).
type UserProfile struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	Username           string     `gorm:"type:text;not null;uniqueIndex:idx_user_profiles_username" json:"username"`
	FavoriteCategories []Category `gorm:"many2many:user_favorite_categories" json:"favorite_categories,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string {
	return "user_profiles"
}

// FavoriteCategoryNames returns the names of the user's favorite categories.
func (u *UserProfile) FavoriteCategoryNames() []string {
	names := make([]string, len(u.FavoriteCategories))
	for i, c := range u.FavoriteCategories {
		names[i] = c.Name
	}
	return names
}
