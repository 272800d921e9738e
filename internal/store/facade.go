package store

import (
	"context"
	"errors"
	"log/slog"

	"mathgenie/internal/middleware"
	"mathgenie/internal/models"
	"mathgenie/internal/observability"
	"mathgenie/internal/repository"

	"gorm.io/gorm"
)

// Storage backends reported to clients on every mutating response so
// the frontend can surface degraded-mode notices.
const (
	StoragePrimary = "primary"
	StorageLocal   = "local"
)

// Repos bundles the repositories backed by one database.
type Repos struct {
	Items    repository.ItemRepository
	Comments repository.CommentRepository
	Users    repository.UserRepository
}

// NewRepos builds the repository set for a database handle.
func NewRepos(db *gorm.DB) *Repos {
	return &Repos{
		Items:    repository.NewItemRepository(db),
		Comments: repository.NewCommentRepository(db),
		Users:    repository.NewUserRepository(db),
	}
}

// Facade routes persistence operations to the primary database and
// falls back to the always-available local store when the primary is
// down. Seed items never live in either database; the facade overlays
// them onto reads and converts seed deletions into per-user hides.
type Facade struct {
	primary   *Repos // nil when the primary database was unreachable at boot
	local     *Repos
	seedHides repository.SeedHideRepository
}

// NewFacade creates the persistence facade. primary may be nil.
func NewFacade(primary, local *Repos, seedHides repository.SeedHideRepository) *Facade {
	return &Facade{primary: primary, local: local, seedHides: seedHides}
}

// Degraded reports whether the facade is running without a primary database.
func (f *Facade) Degraded() bool {
	return f.primary == nil
}

// fallback logs the primary failure and records the fallback metric.
func (f *Facade) fallback(ctx context.Context, op string, err error) {
	observability.StorageFallbacks.WithLabelValues(op).Inc()
	middleware.Logger.WarnContext(ctx, "primary store unavailable, using local store",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// retriable reports whether a primary-store error justifies the local
// fallback. Not-found and validation errors are real answers, not outages.
func retriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code != "INTERNAL_ERROR" {
		return false
	}
	return true
}

// CreateItem persists a new item, returning which backend stored it.
func (f *Facade) CreateItem(ctx context.Context, item *models.ContentItem) (string, error) {
	if f.primary != nil {
		err := f.primary.Items.Create(ctx, item)
		if err == nil {
			return StoragePrimary, nil
		}
		if !retriable(err) {
			return "", err
		}
		f.fallback(ctx, "create_item", err)
	}
	if err := f.local.Items.Create(ctx, item); err != nil {
		return "", err
	}
	return StorageLocal, nil
}

// GetItem fetches one item by id, overlaying seed items and honoring
// the caller's seed hides.
func (f *Facade) GetItem(ctx context.Context, id, currentUserID string) (*models.ContentItem, error) {
	if models.IsSeedID(id) {
		return f.getSeedItem(ctx, id, currentUserID)
	}

	if f.primary != nil {
		item, err := f.primary.Items.GetByID(ctx, id, currentUserID)
		if err == nil {
			return item, nil
		}
		if !retriable(err) && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if retriable(err) {
			f.fallback(ctx, "get_item", err)
		}
		// Not found on primary: the item may live in the local store.
	}
	item, err := f.local.Items.GetByID(ctx, id, currentUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Item", id)
		}
		return nil, err
	}
	return item, nil
}

func (f *Facade) getSeedItem(ctx context.Context, id, currentUserID string) (*models.ContentItem, error) {
	seed, ok := models.FindSeedItem(id)
	if !ok {
		return nil, models.NewNotFoundError("Item", id)
	}
	if currentUserID != "" {
		hidden, err := f.seedHides.IsHidden(ctx, currentUserID, id)
		if err != nil {
			return nil, err
		}
		if hidden {
			return nil, models.NewNotFoundError("Item", id)
		}
	}
	if err := f.annotateSeed(ctx, seed, currentUserID); err != nil {
		return nil, err
	}
	return seed, nil
}

// seedCounts fills engagement counts for a seed item. Seed items have
// no database row, so counts come from the likes/comments tables directly.
func (f *Facade) seedCounts(ctx context.Context, item *models.ContentItem) error {
	repos := f.engagementRepos()

	likes, err := repos.Items.LikeCount(ctx, item.ID)
	if err != nil {
		return err
	}
	comments, err := repos.Comments.CountByItem(ctx, item.ID)
	if err != nil {
		return err
	}
	item.LikesCount = int(likes)
	item.CommentsCount = int(comments)
	return nil
}

func (f *Facade) annotateSeed(ctx context.Context, item *models.ContentItem, currentUserID string) error {
	if err := f.seedCounts(ctx, item); err != nil {
		return err
	}
	if currentUserID != "" {
		liked, err := f.engagementRepos().Items.IsLiked(ctx, currentUserID, item.ID)
		if err != nil {
			return err
		}
		item.Liked = liked
	}
	return nil
}

// engagementRepos returns the repository set holding likes and comments.
func (f *Facade) engagementRepos() *Repos {
	if f.primary != nil {
		return f.primary
	}
	return f.local
}

// ListItems returns a collection's items: seeds first (minus the
// caller's hides), then stored items newest-first. The storage tag
// reports which backend served the stored part.
func (f *Facade) ListItems(ctx context.Context, collection models.Collection, limit, offset int, currentUserID string) ([]*models.ContentItem, string, error) {
	storage := StoragePrimary
	var stored []*models.ContentItem
	var err error

	if f.primary != nil {
		stored, err = f.primary.Items.List(ctx, collection, limit, offset, currentUserID)
		if err != nil {
			if !retriable(err) {
				return nil, "", err
			}
			f.fallback(ctx, "list_items", err)
			stored = nil
		}
	}
	if f.primary == nil || err != nil {
		storage = StorageLocal
		stored, err = f.local.Items.List(ctx, collection, limit, offset, currentUserID)
		if err != nil {
			return nil, "", err
		}
	} else {
		// Items written during past outages live only in the local store.
		localItems, localErr := f.local.Items.List(ctx, collection, limit, offset, currentUserID)
		if localErr == nil && len(localItems) > 0 {
			stored = mergeItems(stored, localItems)
		}
	}

	seeds, err := f.visibleSeeds(ctx, collection, currentUserID)
	if err != nil {
		return nil, "", err
	}

	return append(seeds, stored...), storage, nil
}

func (f *Facade) visibleSeeds(ctx context.Context, collection models.Collection, currentUserID string) ([]*models.ContentItem, error) {
	seeds := models.SeedItems(collection)
	if len(seeds) == 0 {
		return nil, nil
	}

	hidden := map[string]struct{}{}
	if currentUserID != "" {
		ids, err := f.seedHides.HiddenIDs(ctx, currentUserID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			hidden[id] = struct{}{}
		}
	}

	out := make([]*models.ContentItem, 0, len(seeds))
	ids := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if _, ok := hidden[seed.ID]; ok {
			continue
		}
		out = append(out, seed)
		ids = append(ids, seed.ID)
	}

	// One liked-state query for the whole overlay instead of one per seed.
	liked := map[string]struct{}{}
	if currentUserID != "" && len(ids) > 0 {
		likedIDs, err := f.engagementRepos().Items.GetLikedItemIDs(ctx, currentUserID, ids)
		if err != nil {
			return nil, err
		}
		for _, id := range likedIDs {
			liked[id] = struct{}{}
		}
	}

	for _, seed := range out {
		if err := f.seedCounts(ctx, seed); err != nil {
			return nil, err
		}
		_, seed.Liked = liked[seed.ID]
	}
	return out, nil
}

// ListByUser returns the caller's own stored items across collections,
// newest first. Seed items are built in, not owned, so none appear here.
func (f *Facade) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.ContentItem, string, error) {
	storage := StoragePrimary
	var items []*models.ContentItem
	var err error

	if f.primary != nil {
		items, err = f.primary.Items.GetByUserID(ctx, userID, limit, offset, userID)
		if err != nil {
			if !retriable(err) {
				return nil, "", err
			}
			f.fallback(ctx, "list_user_items", err)
		}
	}
	if f.primary == nil || err != nil {
		storage = StorageLocal
		items, err = f.local.Items.GetByUserID(ctx, userID, limit, offset, userID)
		if err != nil {
			return nil, "", err
		}
	} else {
		localItems, localErr := f.local.Items.GetByUserID(ctx, userID, limit, offset, userID)
		if localErr == nil && len(localItems) > 0 {
			items = mergeItems(items, localItems)
		}
	}
	return items, storage, nil
}

// mergeItems combines two result sets, dropping duplicate ids and
// keeping newest-first order.
func mergeItems(a, b []*models.ContentItem) []*models.ContentItem {
	seen := make(map[string]struct{}, len(a))
	out := make([]*models.ContentItem, 0, len(a)+len(b))
	for _, item := range a {
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	for _, item := range b {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		out = append(out, item)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.After(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// UpdateItem saves changes to the backend the item lives in.
func (f *Facade) UpdateItem(ctx context.Context, item *models.ContentItem) (string, error) {
	if models.IsSeedID(item.ID) {
		return "", models.NewValidationError("Built-in items cannot be edited")
	}

	if f.primary != nil {
		err := f.primary.Items.Update(ctx, item)
		if err == nil {
			return StoragePrimary, nil
		}
		if !retriable(err) {
			return "", err
		}
		f.fallback(ctx, "update_item", err)
	}
	if err := f.local.Items.Update(ctx, item); err != nil {
		return "", err
	}
	return StorageLocal, nil
}

// DeleteItem removes an item. Deleting a seed item records a per-user
// hide instead; the seed stays visible to everyone else.
func (f *Facade) DeleteItem(ctx context.Context, id, userID string) (string, error) {
	if models.IsSeedID(id) {
		if _, ok := models.FindSeedItem(id); !ok {
			return "", models.NewNotFoundError("Item", id)
		}
		if err := f.seedHides.Hide(ctx, userID, id); err != nil {
			return "", err
		}
		return StorageLocal, nil
	}

	if f.primary != nil {
		err := f.primary.Items.Delete(ctx, id)
		if err == nil {
			return StoragePrimary, nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// May live in the local store only.
		} else if !retriable(err) {
			return "", err
		} else {
			f.fallback(ctx, "delete_item", err)
		}
	}
	if err := f.local.Items.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", models.NewNotFoundError("Item", id)
		}
		return "", err
	}
	return StorageLocal, nil
}

// Like records userID's like on an item; repeated likes are no-ops.
func (f *Facade) Like(ctx context.Context, userID, itemID string) (string, error) {
	if f.primary != nil {
		err := f.primary.Items.Like(ctx, userID, itemID)
		if err == nil {
			return StoragePrimary, nil
		}
		if !retriable(err) {
			return "", err
		}
		f.fallback(ctx, "like", err)
	}
	if err := f.local.Items.Like(ctx, userID, itemID); err != nil {
		return "", err
	}
	return StorageLocal, nil
}

// Unlike removes userID's like on an item.
func (f *Facade) Unlike(ctx context.Context, userID, itemID string) (string, error) {
	if f.primary != nil {
		err := f.primary.Items.Unlike(ctx, userID, itemID)
		if err == nil {
			return StoragePrimary, nil
		}
		if !retriable(err) {
			return "", err
		}
		f.fallback(ctx, "unlike", err)
	}
	if err := f.local.Items.Unlike(ctx, userID, itemID); err != nil {
		return "", err
	}
	return StorageLocal, nil
}

// LikeState returns the item's like count and whether userID liked it.
func (f *Facade) LikeState(ctx context.Context, userID, itemID string) (int64, bool, error) {
	repos := f.engagementRepos()
	count, err := repos.Items.LikeCount(ctx, itemID)
	if err != nil {
		return 0, false, err
	}
	liked := false
	if userID != "" {
		liked, err = repos.Items.IsLiked(ctx, userID, itemID)
		if err != nil {
			return 0, false, err
		}
	}
	return count, liked, nil
}

// CreateComment stores a comment on an item.
func (f *Facade) CreateComment(ctx context.Context, comment *models.Comment) (string, error) {
	if f.primary != nil {
		err := f.primary.Comments.Create(ctx, comment)
		if err == nil {
			return StoragePrimary, nil
		}
		if !retriable(err) {
			return "", err
		}
		f.fallback(ctx, "create_comment", err)
	}
	if err := f.local.Comments.Create(ctx, comment); err != nil {
		return "", err
	}
	return StorageLocal, nil
}

// ListComments returns an item's comments, newest first.
func (f *Facade) ListComments(ctx context.Context, itemID string) ([]*models.Comment, error) {
	if f.primary != nil {
		comments, err := f.primary.Comments.ListByItem(ctx, itemID)
		if err == nil {
			return comments, nil
		}
		if !retriable(err) {
			return nil, err
		}
		f.fallback(ctx, "list_comments", err)
	}
	return f.local.Comments.ListByItem(ctx, itemID)
}

// GetComment fetches one comment by id.
func (f *Facade) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	repos := f.engagementRepos()
	comment, err := repos.Comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment by id.
func (f *Facade) DeleteComment(ctx context.Context, id uint) error {
	repos := f.engagementRepos()
	return repos.Comments.Delete(ctx, id)
}

// GetProfile returns the gallery profile for a user id.
func (f *Facade) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	repos := f.engagementRepos()
	return repos.Users.GetByID(ctx, userID)
}

// SaveProfile upserts the gallery profile for a user id.
func (f *Facade) SaveProfile(ctx context.Context, profile *models.UserProfile) (string, error) {
	if f.primary != nil {
		err := f.primary.Users.Upsert(ctx, profile)
		if err == nil {
			return StoragePrimary, nil
		}
		if !retriable(err) {
			return "", err
		}
		f.fallback(ctx, "save_profile", err)
	}
	if err := f.local.Users.Upsert(ctx, profile); err != nil {
		return "", err
	}
	return StorageLocal, nil
}
