package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mathgenie/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.ContentItem{},
		&models.Like{},
		&models.Comment{},
		&models.UserProfile{},
	))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestDemoData(t *testing.T) {
	db := setupDB(t)

	err := DemoData(db, Options{
		NumUsers:        3,
		ItemsPerUser:    2,
		CommentsPerItem: 1,
		LikeProbability: 1.0,
	})
	require.NoError(t, err)

	var users, items, likes, comments int64
	require.NoError(t, db.Model(&models.UserProfile{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.ContentItem{}).Count(&items).Error)
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)

	assert.EqualValues(t, 3, users)
	assert.EqualValues(t, 6, items)
	assert.EqualValues(t, 18, likes, "every user likes every item at probability 1.0")
	assert.EqualValues(t, 6, comments)

	// Demo items never collide with the built-in seed id range.
	var seedLike int64
	require.NoError(t, db.Model(&models.ContentItem{}).
		Where("id IN ?", []string{"1", "2", "3", "4", "5"}).
		Count(&seedLike).Error)
	assert.Zero(t, seedLike)
}

func TestDemoDataClean(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, DemoData(db, Options{NumUsers: 2, ItemsPerUser: 1}))
	require.NoError(t, DemoData(db, Options{NumUsers: 2, ItemsPerUser: 1, ShouldClean: true}))

	var items int64
	require.NoError(t, db.Model(&models.ContentItem{}).Count(&items).Error)
	assert.EqualValues(t, 2, items, "clean run replaces earlier demo rows")
}

func TestCreateLikeIsIdempotent(t *testing.T) {
	db := setupDB(t)
	f := NewFactory(db)

	user, err := f.CreateProfile()
	require.NoError(t, err)
	item := f.BuildItem(models.CollectionGames, user)
	require.NoError(t, f.CreateItemsBatch([]*models.ContentItem{item}))

	require.NoError(t, f.CreateLike(item, user))
	require.NoError(t, f.CreateLike(item, user))

	var likes int64
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.EqualValues(t, 1, likes)
}
