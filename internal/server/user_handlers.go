package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"mathgenie/internal/cache"
	"mathgenie/internal/models"
)

const maxNicknameLength = 30

// GetMyProfile handles GET /api/users/me
//
// Profiles are created lazily; a user who never set a nickname gets a
// synthesized profile carrying the token's display name.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)

	var profile models.UserProfile
	err := cache.CacheAside(ctx, cache.ProfileKey(userID), &profile, cache.ProfileTTL, func() error {
		got, err := s.store.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		profile = *got
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "NOT_FOUND" {
			return c.JSON(&models.UserProfile{
				UserID:      userID,
				DisplayName: currentUserName(c),
			})
		}
		return respondStoreError(c, err)
	}

	return c.JSON(&profile)
}

// ListMyItems handles GET /api/users/me/items
//
// Returns the caller's own uploads and generations across every
// collection, newest first.
func (s *Server) ListMyItems(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)
	page := parsePagination(c, 50)

	items, storage, err := s.store.ListByUser(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return respondStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"items":   items,
		"storage": storage,
	})
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)

	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Nickname is required"))
	}
	if len([]rune(req.Nickname)) > maxNicknameLength {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Nickname is too long"))
	}

	profile := &models.UserProfile{
		UserID:      userID,
		Nickname:    req.Nickname,
		DisplayName: currentUserName(c),
	}

	storage, err := s.store.SaveProfile(ctx, profile)
	if err != nil {
		return respondStoreError(c, err)
	}

	cache.InvalidateProfile(ctx, userID)

	return c.JSON(fiber.Map{
		"profile": profile,
		"storage": storage,
	})
}
