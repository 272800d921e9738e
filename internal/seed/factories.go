// Package seed provides helpers to create demo data for the gallery
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"mathgenie/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	grades = []string{
		"1학년", "2학년", "3학년", "4학년", "5학년", "6학년", "중학교",
	}
	categories = []string{
		"수와 연산", "도형", "측정", "규칙성", "자료와 가능성",
	}
	difficulties = []string{"쉬움", "보통", "어려움"}

	gameNouns = []string{
		"달리기", "퀴즈", "카드 짝맞추기", "미로 탈출", "타워 디펜스", "퍼즐", "낚시",
	}
	topics = []string{
		"분수", "소수", "곱셈구구", "나눗셈", "도형의 둘레", "각도", "확률", "약수와 배수",
	}
)

// Factory builds gallery entities and persists them to the database.
type Factory struct {
	db *gorm.DB
	r  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	return &Factory{db: db, r: rand.New(rand.NewSource(seed))}
}

func (f *Factory) pick(list []string) string {
	return list[f.r.Intn(len(list))]
}

// CreateProfile persists a demo user profile with a generated nickname.
func (f *Factory) CreateProfile(overrides ...func(*models.UserProfile)) (*models.UserProfile, error) {
	profile := &models.UserProfile{
		UserID:      "demo-" + uuid.NewString()[:8],
		Nickname:    gofakeit.Username(),
		DisplayName: gofakeit.Name(),
	}
	for _, override := range overrides {
		override(profile)
	}
	if err := f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// BuildItem constructs a demo content item without persisting it.
func (f *Factory) BuildItem(collection models.Collection, owner *models.UserProfile, overrides ...func(*models.ContentItem)) *models.ContentItem {
	topic := f.pick(topics)
	item := &models.ContentItem{
		ID:          uuid.NewString(),
		Collection:  collection,
		Title:       fmt.Sprintf("%s %s", topic, f.pick(gameNouns)),
		Grade:       f.pick(grades),
		Category:    f.pick(categories),
		Difficulty:  f.pick(difficulties),
		Description: gofakeit.Sentence(8),
		URL:         gofakeit.URL(),
		Thumbnail:   fmt.Sprintf("https://picsum.photos/seed/%s/640/360", uuid.NewString()[:8]),
		UploadedBy:  owner.Name(),
		UserID:      owner.UserID,
	}

	// Spread creation times over the past quarter so lists look lived-in.
	daysBack := f.r.Intn(90)
	item.CreatedAt = time.Now().
		Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(f.r.Intn(24))*time.Hour)
	item.UpdatedAt = item.CreatedAt

	for _, override := range overrides {
		override(item)
	}
	return item
}

// CreateItemsBatch persists multiple items in a single DB call.
func (f *Factory) CreateItemsBatch(items []*models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	return f.db.Create(&items).Error
}

// CreateComment persists a demo comment on an item.
func (f *Factory) CreateComment(item *models.ContentItem, author *models.UserProfile) (*models.Comment, error) {
	comment := &models.Comment{
		ItemID: item.ID,
		Text:   gofakeit.Sentence(6),
		Author: author.Name(),
		UserID: author.UserID,
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike records a like; duplicate user/item pairs are absorbed by
// the unique index.
func (f *Factory) CreateLike(item *models.ContentItem, user *models.UserProfile) error {
	like := &models.Like{UserID: user.UserID, ItemID: item.ID}
	return f.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
		DoNothing: true,
	}).Create(like).Error
}

// Options configure DemoData volume.
type Options struct {
	NumUsers        int
	ItemsPerUser    int
	CommentsPerItem int
	LikeProbability float64
	ShouldClean     bool
}

// DemoData populates the database with a small interlinked gallery:
// profiles, items across collections, likes and comments.
func DemoData(db *gorm.DB, opts Options) error {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 5
	}
	if opts.ItemsPerUser <= 0 {
		opts.ItemsPerUser = 4
	}
	if opts.LikeProbability <= 0 {
		opts.LikeProbability = 0.3
	}

	if opts.ShouldClean {
		if err := Clean(db); err != nil {
			return fmt.Errorf("failed to clean demo data: %w", err)
		}
	}

	f := NewFactory(db)

	users := make([]*models.UserProfile, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := f.CreateProfile()
		if err != nil {
			return fmt.Errorf("failed to create demo profile: %w", err)
		}
		users = append(users, user)
	}

	var items []*models.ContentItem
	for _, user := range users {
		for i := 0; i < opts.ItemsPerUser; i++ {
			collection := models.Collections[f.r.Intn(len(models.Collections))]
			items = append(items, f.BuildItem(collection, user))
		}
	}
	if err := f.CreateItemsBatch(items); err != nil {
		return fmt.Errorf("failed to create demo items: %w", err)
	}

	for _, item := range items {
		for _, user := range users {
			if f.r.Float64() < opts.LikeProbability {
				if err := f.CreateLike(item, user); err != nil {
					return fmt.Errorf("failed to create demo like: %w", err)
				}
			}
		}
		for i := 0; i < opts.CommentsPerItem; i++ {
			author := users[f.r.Intn(len(users))]
			if _, err := f.CreateComment(item, author); err != nil {
				return fmt.Errorf("failed to create demo comment: %w", err)
			}
		}
	}

	log.Printf("seeded %d profiles, %d items", len(users), len(items))
	return nil
}

// Clean removes all demo-writable rows. Seed hides are kept; they are
// real user state.
func Clean(db *gorm.DB) error {
	for _, model := range []any{
		&models.Comment{},
		&models.Like{},
		&models.ContentItem{},
		&models.UserProfile{},
	} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Unscoped().Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
