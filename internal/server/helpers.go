// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"mathgenie/internal/models"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const maxPaginationLimit = 100

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// currentUserID returns the authenticated caller's id, empty for
// anonymous requests.
func currentUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userID").(string); ok {
		return userID
	}
	return ""
}

// currentUserName returns the display name carried in the token, if any.
func currentUserName(c *fiber.Ctx) string {
	if name, ok := c.Locals("userName").(string); ok {
		return name
	}
	return ""
}

// CollectionRequired validates the :collection route segment before any
// item handler runs and stores the parsed value in locals.
func (s *Server) CollectionRequired(c *fiber.Ctx) error {
	collection, ok := models.ParseCollection(c.Params("collection"))
	if !ok {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Collection", c.Params("collection")))
	}
	c.Locals("collection", collection)
	return c.Next()
}

// routeCollection returns the collection validated by CollectionRequired.
func routeCollection(c *fiber.Ctx) models.Collection {
	collection, _ := c.Locals("collection").(models.Collection)
	return collection
}

// isAdmin checks the caller against the configured admin id list. Role
// checks happen here, server-side; clients never decide authorization.
func (s *Server) isAdmin(userID string) bool {
	_, ok := s.config.AdminIDs()[userID]
	return ok
}

// respondStoreError maps facade errors onto HTTP statuses.
func respondStoreError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case "NOT_FOUND":
			return models.RespondWithError(c, fiber.StatusNotFound, err)
		case "VALIDATION_ERROR":
			return models.RespondWithError(c, fiber.StatusBadRequest, err)
		case "UNAUTHORIZED":
			return models.RespondWithError(c, fiber.StatusForbidden, err)
		}
	}
	return models.RespondWithError(c, fiber.StatusInternalServerError, err)
}

// displayName picks the name shown next to user-generated content:
// stored nickname first, token name second, a fixed fallback last.
func (s *Server) displayName(c *fiber.Ctx, userID string) string {
	if profile, err := s.store.GetProfile(c.Context(), userID); err == nil {
		if name := profile.Name(); name != "" {
			return name
		}
	}
	if name := currentUserName(c); name != "" {
		return name
	}
	return "수학자"
}
