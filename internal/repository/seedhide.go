package repository

import (
	"context"

	"mathgenie/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedHideRepository tracks which built-in seed items a user has removed
// from their own view. It is always backed by the local store.
type SeedHideRepository interface {
	Hide(ctx context.Context, userID, seedID string) error
	HiddenIDs(ctx context.Context, userID string) ([]string, error)
	IsHidden(ctx context.Context, userID, seedID string) (bool, error)
}

type seedHideRepository struct {
	db *gorm.DB
}

// NewSeedHideRepository creates a new SeedHideRepository.
func NewSeedHideRepository(db *gorm.DB) SeedHideRepository {
	return &seedHideRepository{db: db}
}

func (r *seedHideRepository) Hide(ctx context.Context, userID, seedID string) error {
	// Hiding twice is a no-op.
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "seed_id"}},
			DoNothing: true,
		}).
		Create(&models.SeedHide{UserID: userID, SeedID: seedID}).Error
}

func (r *seedHideRepository) HiddenIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.SeedHide{}).
		Where("user_id = ?", userID).
		Pluck("seed_id", &ids).Error
	return ids, err
}

func (r *seedHideRepository) IsHidden(ctx context.Context, userID, seedID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SeedHide{}).
		Where("user_id = ? AND seed_id = ?", userID, seedID).
		Count(&count).Error
	return count > 0, err
}
