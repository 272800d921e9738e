// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment represents a comment on a content item.
type Comment struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	ItemID string `gorm:"size:64;not null;index" json:"item_id"`
	Text   string `gorm:"type:text;not null" json:"text"`
	// Author is the display name at the time the comment was written.
	Author    string         `gorm:"size:120" json:"author"`
	UserID    string         `gorm:"size:128;not null;index" json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM.
func (Comment) TableName() string {
	return "comments"
}
