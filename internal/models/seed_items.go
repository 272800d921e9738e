package models

// SeedHide records that a user removed a seed item from their own view.
// Seed items ship with the binary, so "deleting" one only hides it for
// the deleting user; other users keep seeing it. Rows live in the local
// fallback store, never in the primary document store.
type SeedHide struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"size:128;not null;uniqueIndex:idx_seed_hide" json:"user_id"`
	SeedID string `gorm:"size:64;not null;uniqueIndex:idx_seed_hide" json:"seed_id"`
}

// TableName specifies the table name for GORM.
func (SeedHide) TableName() string {
	return "seed_hides"
}

// SeedItems returns the built-in items for a collection. Each call
// returns fresh copies so callers can annotate them (Liked, counts)
// without touching shared state.
func SeedItems(collection Collection) []*ContentItem {
	var src []ContentItem
	switch collection {
	case CollectionGames:
		src = seedGames
	case CollectionSimulations:
		src = seedSimulations
	default:
		return nil
	}
	out := make([]*ContentItem, len(src))
	for i := range src {
		item := src[i]
		out[i] = &item
	}
	return out
}

// FindSeedItem looks up a seed item by id across all collections.
func FindSeedItem(id string) (*ContentItem, bool) {
	for _, c := range Collections {
		for _, item := range SeedItems(c) {
			if item.ID == id {
				return item, true
			}
		}
	}
	return nil, false
}

var seedGames = []ContentItem{
	{
		ID:          "1",
		Collection:  CollectionGames,
		Title:       "Equation Archery",
		Thumbnail:   "/thumbnails/game1-archery.png",
		URL:         "https://yang-fbb84.web.app/",
		Grade:       "Grade 4",
		Category:    "Numbers and Operations",
		Description: "Shoot arrows by matching equations",
	},
	{
		ID:          "2",
		Collection:  CollectionGames,
		Title:       "Merlin's Math",
		Thumbnail:   "/thumbnails/game2-merlin.png",
		URL:         "https://shrek7979.github.io/merlin_game/",
		Grade:       "Grade 3",
		Category:    "Numbers and Operations",
		Description: "Math adventures with Merlin the wizard",
	},
	{
		ID:          "3",
		Collection:  CollectionGames,
		Title:       "Times Table Trainer",
		Thumbnail:   "/thumbnails/game3-times.png",
		URL:         "https://gugudan-376f6.web.app/",
		Grade:       "Grade 3",
		Category:    "Numbers and Operations",
		Description: "Learn multiplication tables the fun way",
	},
	{
		ID:          "5",
		Collection:  CollectionGames,
		Title:       "Proof Ordering",
		Thumbnail:   "/thumbnails/game5-proof.png",
		URL:         "https://proof-c1a40.web.app/",
		Grade:       "Middle school",
		Category:    "Geometry",
		Description: "Arrange the steps of a proof in order (for teachers)",
	},
}

var seedSimulations = []ContentItem{
	{
		ID:          "4",
		Collection:  CollectionSimulations,
		Title:       "Probability Lab",
		Thumbnail:   "/thumbnails/sim1-probability.png",
		URL:         "https://shrek7979.github.io/e_Tester/",
		Grade:       "Grade 3",
		Category:    "Data and Chance",
		Description: "Run visual probability experiments",
	},
}
