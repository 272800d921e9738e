package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ItemKeyPrefix     = "item:%s"
	ItemListKeyPrefix = "items:%s"
	ProfileKeyPrefix  = "profile:%s"
)

const (
	ItemTTL     = 10 * time.Minute
	ItemListTTL = 1 * time.Minute
	ProfileTTL  = 5 * time.Minute
)

func ItemKey(itemID string) string {
	return fmt.Sprintf(ItemKeyPrefix, itemID)
}

func ItemListKey(collection string) string {
	return fmt.Sprintf(ItemListKeyPrefix, collection)
}

func ProfileKey(userID string) string {
	return fmt.Sprintf(ProfileKeyPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateItem(ctx context.Context, itemID, collection string) {
	Invalidate(ctx, ItemKey(itemID))
	Invalidate(ctx, ItemListKey(collection))
}

func InvalidateProfile(ctx context.Context, userID string) {
	Invalidate(ctx, ProfileKey(userID))
}
