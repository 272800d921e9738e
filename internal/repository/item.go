// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"mathgenie/internal/cache"
	"mathgenie/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemRepository defines the interface for content item data operations
type ItemRepository interface {
	Create(ctx context.Context, item *models.ContentItem) error
	GetByID(ctx context.Context, id string, currentUserID string) (*models.ContentItem, error)
	List(ctx context.Context, collection models.Collection, limit, offset int, currentUserID string) ([]*models.ContentItem, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int, currentUserID string) ([]*models.ContentItem, error)
	Update(ctx context.Context, item *models.ContentItem) error
	Delete(ctx context.Context, id string) error
	IsLiked(ctx context.Context, userID, itemID string) (bool, error)
	GetLikedItemIDs(ctx context.Context, userID string, itemIDs []string) ([]string, error)
	Like(ctx context.Context, userID, itemID string) error
	Unlike(ctx context.Context, userID, itemID string) error
	LikeCount(ctx context.Context, itemID string) (int64, error)
}

// itemRepository implements ItemRepository
type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new content item repository
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *models.ContentItem) error {
	err := r.db.WithContext(ctx).Create(item).Error
	if err == nil {
		cache.Invalidate(ctx, cache.ItemListKey(string(item.Collection)))
	}
	return err
}

func (r *itemRepository) GetByID(ctx context.Context, id string, currentUserID string) (*models.ContentItem, error) {
	var item models.ContentItem
	key := cache.ItemKey(id)

	var err error
	if currentUserID == "" {
		// Anonymous reads share one cache entry; per-user liked state
		// forces a direct query.
		err = cache.CacheAside(ctx, key, &item, cache.ItemTTL, func() error {
			return r.applyItemDetails(r.db.WithContext(ctx), "").
				Where("content_items.id = ?", id).
				First(&item).Error
		})
	} else {
		err = r.applyItemDetails(r.db.WithContext(ctx), currentUserID).
			Where("content_items.id = ?", id).
			First(&item).Error
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context, collection models.Collection, limit, offset int, currentUserID string) ([]*models.ContentItem, error) {
	var items []*models.ContentItem
	err := r.applyItemDetails(r.db.WithContext(ctx), currentUserID).
		Where("collection = ?", collection).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) GetByUserID(ctx context.Context, userID string, limit, offset int, currentUserID string) ([]*models.ContentItem, error) {
	var items []*models.ContentItem
	err := r.applyItemDetails(r.db.WithContext(ctx), currentUserID).
		Where("content_items.user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// applyItemDetails adds subqueries to fetch counts and liked status in a single query.
func (r *itemRepository) applyItemDetails(db *gorm.DB, currentUserID string) *gorm.DB {
	selectQuery := "content_items.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.item_id = content_items.id AND comments.deleted_at IS NULL) as comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.item_id = content_items.id) as likes_count"

	if currentUserID != "" {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.item_id = content_items.id AND likes.user_id = ?) as liked", currentUserID)
	}

	return db.Select(selectQuery + ", false as liked")
}

func (r *itemRepository) Update(ctx context.Context, item *models.ContentItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return err
	}
	cache.InvalidateItem(ctx, item.ID, string(item.Collection))
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, id string) error {
	var item models.ContentItem
	if err := r.db.WithContext(ctx).Select("id", "collection").First(&item, "id = ?", id).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&models.ContentItem{}, "id = ?", id).Error; err != nil {
		return err
	}
	cache.InvalidateItem(ctx, id, string(item.Collection))
	return nil
}

func (r *itemRepository) IsLiked(ctx context.Context, userID, itemID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *itemRepository) GetLikedItemIDs(ctx context.Context, userID string, itemIDs []string) ([]string, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var likedItemIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND item_id IN ?", userID, itemIDs).
		Pluck("item_id", &likedItemIDs).Error
	return likedItemIDs, err
}

func (r *itemRepository) Like(ctx context.Context, userID, itemID string) error {
	// ON CONFLICT DO NOTHING keeps the toggle atomic under concurrent
	// requests and is portable across PostgreSQL and SQLite.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
			DoNothing: true,
		}).
		Create(&models.Like{UserID: userID, ItemID: itemID}).Error
	if err == nil {
		cache.Invalidate(ctx, cache.ItemKey(itemID))
	}
	return err
}

func (r *itemRepository) Unlike(ctx context.Context, userID, itemID string) error {
	// Hard delete the like record (not soft delete)
	err := r.db.WithContext(ctx).Unscoped().Where("user_id = ? AND item_id = ?", userID, itemID).Delete(&models.Like{}).Error
	if err == nil {
		cache.Invalidate(ctx, cache.ItemKey(itemID))
	}
	return err
}

func (r *itemRepository) LikeCount(ctx context.Context, itemID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("item_id = ?", itemID).
		Count(&count).Error
	return count, err
}
