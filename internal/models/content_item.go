// Package models contains data structures for the application's domain models.
package models

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

// Collection identifies one of the gallery's logical content collections.
type Collection string

const (
	// CollectionGames holds interactive math games.
	CollectionGames Collection = "games"
	// CollectionSimulations holds visual math simulations.
	CollectionSimulations Collection = "simulations"
	// CollectionWebtoons holds narrative/webtoon content.
	CollectionWebtoons Collection = "webtoons"
	// CollectionTools holds classroom tools.
	CollectionTools Collection = "tools"
)

// Collections lists every valid collection, in display order.
var Collections = []Collection{
	CollectionGames,
	CollectionSimulations,
	CollectionWebtoons,
	CollectionTools,
}

// ParseCollection validates a route segment against the known collections.
func ParseCollection(s string) (Collection, bool) {
	for _, c := range Collections {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ContentItem represents a single gallery entry: a game, simulation,
// webtoon or classroom tool. Dynamic items carry UUID ids; seed items
// carry decimal integer ids (see IsSeedID).
type ContentItem struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	Collection  Collection `gorm:"type:varchar(20);not null;index" json:"collection"`
	Title       string     `gorm:"size:300;not null" json:"title"`
	Grade       string     `gorm:"size:40" json:"grade"`
	Category    string     `gorm:"size:100" json:"category"`
	Difficulty  string     `gorm:"size:40" json:"difficulty"`
	Description string     `gorm:"type:text" json:"description"`
	// URL is the external link for link-inserted items.
	URL string `gorm:"size:500" json:"url,omitempty"`
	// HTMLPath references the stored HTML payload in object storage.
	// The payload itself is never persisted on this record.
	HTMLPath  string `gorm:"size:500" json:"html_url,omitempty"`
	Thumbnail string `gorm:"size:500" json:"thumbnail,omitempty"`
	// UploadedBy is the display name shown on the card.
	UploadedBy string `gorm:"size:120" json:"uploaded_by"`
	// UserID is the owning user's external identity id.
	UserID string `gorm:"size:128;not null;index" json:"user_id"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->" json:"likes"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->" json:"comments"`
	// Liked indicates whether the current requesting user liked this item (computed)
	Liked     bool           `gorm:"->" json:"liked"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM.
func (ContentItem) TableName() string {
	return "content_items"
}

// IsSeed reports whether the item is one of the built-in seed items.
func (i *ContentItem) IsSeed() bool {
	return IsSeedID(i.ID)
}

// IsSeedID reports whether id is a seed-item id (plain decimal integer).
// Dynamically created items always use UUIDs, which never parse as integers.
func IsSeedID(id string) bool {
	_, err := strconv.Atoi(id)
	return err == nil
}

// Like represents a user's like on a content item.
// The combination of UserID and ItemID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:128;not null;uniqueIndex:idx_user_item" json:"user_id"`
	ItemID    string    `gorm:"size:64;not null;uniqueIndex:idx_user_item" json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Like) TableName() string {
	return "likes"
}
