package store

import (
	"context"
	"errors"
	"testing"

	"mathgenie/internal/models"
	"mathgenie/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupLocalDB(t *testing.T) *gorm.DB {
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
		&models.SeedHide{},
	))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

var errPrimaryDown = errors.New("dial tcp: connection refused")

// failingItemRepo simulates an unreachable primary database.
type failingItemRepo struct{}

func (failingItemRepo) Create(context.Context, *models.ContentItem) error { return errPrimaryDown }
func (failingItemRepo) GetByID(context.Context, string, string) (*models.ContentItem, error) {
	return nil, errPrimaryDown
}
func (failingItemRepo) List(context.Context, models.Collection, int, int, string) ([]*models.ContentItem, error) {
	return nil, errPrimaryDown
}
func (failingItemRepo) GetByUserID(context.Context, string, int, int, string) ([]*models.ContentItem, error) {
	return nil, errPrimaryDown
}
func (failingItemRepo) Update(context.Context, *models.ContentItem) error { return errPrimaryDown }
func (failingItemRepo) Delete(context.Context, string) error              { return errPrimaryDown }
func (failingItemRepo) IsLiked(context.Context, string, string) (bool, error) {
	return false, errPrimaryDown
}
func (failingItemRepo) GetLikedItemIDs(context.Context, string, []string) ([]string, error) {
	return nil, errPrimaryDown
}
func (failingItemRepo) Like(context.Context, string, string) error   { return errPrimaryDown }
func (failingItemRepo) Unlike(context.Context, string, string) error { return errPrimaryDown }
func (failingItemRepo) LikeCount(context.Context, string) (int64, error) {
	return 0, errPrimaryDown
}

func newLocalFacade(t *testing.T) (*Facade, *gorm.DB) {
	db := setupLocalDB(t)
	local := NewRepos(db)
	return NewFacade(nil, local, repository.NewSeedHideRepository(db)), db
}

func TestFacade_FallsBackToLocalOnPrimaryFailure(t *testing.T) {
	db := setupLocalDB(t)
	local := NewRepos(db)
	primary := &Repos{
		Items:    failingItemRepo{},
		Comments: local.Comments,
		Users:    local.Users,
	}
	f := NewFacade(primary, local, repository.NewSeedHideRepository(db))
	ctx := context.Background()

	item := &models.ContentItem{
		ID:         uuid.NewString(),
		Collection: models.CollectionGames,
		Title:      "Offline Game",
		UserID:     "user-1",
	}

	storage, err := f.CreateItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, StorageLocal, storage)

	// The item is readable through the facade even with the primary down.
	got, err := f.GetItem(ctx, item.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Offline Game", got.Title)

	_, storage, err = f.ListItems(ctx, models.CollectionGames, 50, 0, "")
	require.NoError(t, err)
	assert.Equal(t, StorageLocal, storage)
}

func TestFacade_ValidationErrorsDoNotFallBack(t *testing.T) {
	f, _ := newLocalFacade(t)

	_, err := f.UpdateItem(context.Background(), &models.ContentItem{ID: "1"})
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestFacade_SeedDeleteHidesPerUser(t *testing.T) {
	f, _ := newLocalFacade(t)
	ctx := context.Background()

	items, _, err := f.ListItems(ctx, models.CollectionGames, 50, 0, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 4)

	storage, err := f.DeleteItem(ctx, "1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StorageLocal, storage)

	// Hidden for the deleting user.
	items, _, err = f.ListItems(ctx, models.CollectionGames, 50, 0, "user-1")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, err = f.GetItem(ctx, "1", "user-1")
	require.Error(t, err)

	// Still visible for everyone else.
	items, _, err = f.ListItems(ctx, models.CollectionGames, 50, 0, "user-2")
	require.NoError(t, err)
	assert.Len(t, items, 4)

	got, err := f.GetItem(ctx, "1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "Equation Archery", got.Title)
}

func TestFacade_SeedEngagement(t *testing.T) {
	f, _ := newLocalFacade(t)
	ctx := context.Background()

	// Seed items accept likes and comments like any other item.
	storage, err := f.Like(ctx, "user-1", "4")
	require.NoError(t, err)
	assert.Equal(t, StorageLocal, storage)

	_, err = f.CreateComment(ctx, &models.Comment{
		ItemID: "4",
		Text:   "My students love this",
		UserID: "user-2",
	})
	require.NoError(t, err)

	got, err := f.GetItem(ctx, "4", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)
	assert.Equal(t, 1, got.CommentsCount)
	assert.True(t, got.Liked)

	got, err = f.GetItem(ctx, "4", "user-2")
	require.NoError(t, err)
	assert.False(t, got.Liked)

	// The liked flag survives the batched lookup used by listings.
	items, _, err := f.ListItems(ctx, models.CollectionSimulations, 50, 0, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "4", items[0].ID)
	assert.True(t, items[0].Liked)
	assert.Equal(t, 1, items[0].LikesCount)

	items, _, err = f.ListItems(ctx, models.CollectionSimulations, 50, 0, "user-2")
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.False(t, items[0].Liked)

	// Likes toggle off cleanly.
	_, err = f.Unlike(ctx, "user-1", "4")
	require.NoError(t, err)

	count, liked, err := f.LikeState(ctx, "user-1", "4")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.False(t, liked)
}

func TestFacade_ListMergesSeedsAndStored(t *testing.T) {
	f, _ := newLocalFacade(t)
	ctx := context.Background()

	created := &models.ContentItem{
		ID:         uuid.NewString(),
		Collection: models.CollectionSimulations,
		Title:      "Vector Field Sim",
		UserID:     "user-1",
	}
	_, err := f.CreateItem(ctx, created)
	require.NoError(t, err)

	items, _, err := f.ListItems(ctx, models.CollectionSimulations, 50, 0, "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Seeds lead the list, stored items follow.
	assert.Equal(t, "4", items[0].ID)
	assert.Equal(t, created.ID, items[1].ID)
}

func TestFacade_ListByUser(t *testing.T) {
	f, _ := newLocalFacade(t)
	ctx := context.Background()

	for _, item := range []*models.ContentItem{
		{ID: uuid.NewString(), Collection: models.CollectionGames, Title: "My Game", UserID: "user-1"},
		{ID: uuid.NewString(), Collection: models.CollectionSimulations, Title: "My Sim", UserID: "user-1"},
		{ID: uuid.NewString(), Collection: models.CollectionGames, Title: "Other Game", UserID: "user-2"},
	} {
		_, err := f.CreateItem(ctx, item)
		require.NoError(t, err)
	}

	items, storage, err := f.ListByUser(ctx, "user-1", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, StorageLocal, storage)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, "user-1", item.UserID)
	}

	// Built-in seeds belong to nobody.
	items, _, err = f.ListByUser(ctx, "user-3", 50, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}
