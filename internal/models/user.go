// Package models contains data structures for the application's domain models.
package models

import "time"

// UserProfile holds the gallery-local profile for an externally
// authenticated user. Rows are created lazily on the first nickname
// update; identity itself lives with the external provider.
type UserProfile struct {
	UserID      string    `gorm:"primaryKey;size:128" json:"user_id"`
	Nickname    string    `gorm:"size:60" json:"nickname"`
	DisplayName string    `gorm:"size:120" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (UserProfile) TableName() string {
	return "users"
}

// Name returns the nickname when set, otherwise the display name.
func (u *UserProfile) Name() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.DisplayName
}
