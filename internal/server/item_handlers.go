package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"mathgenie/internal/cache"
	"mathgenie/internal/models"
	"mathgenie/internal/notifications"
	"mathgenie/internal/resolver"
)

// itemRequest is the body for item create and update.
type itemRequest struct {
	Title       string `json:"title"`
	Grade       string `json:"grade"`
	Category    string `json:"category"`
	Difficulty  string `json:"difficulty"`
	Description string `json:"description"`
	// URL links an externally hosted page instead of an HTML payload.
	URL string `json:"url"`
	// HTML is the single-file document payload for uploaded or
	// AI-generated items. Stored in the blob store, never in the DB.
	HTML      string `json:"html"`
	Thumbnail string `json:"thumbnail"`
}

// cachedList is the cache shape for an anonymous first-page listing.
type cachedList struct {
	Items   []*models.ContentItem `json:"items"`
	Storage string                `json:"storage"`
}

// ListItems handles GET /api/:collection/items
func (s *Server) ListItems(c *fiber.Ctx) error {
	ctx := c.Context()
	collection := routeCollection(c)
	page := parsePagination(c, 50)
	userID := currentUserID(c)

	// Anonymous first-page listings are the hot path and carry no
	// per-user annotations, so they are safe to cache per collection.
	if userID == "" && page.Offset == 0 {
		var cached cachedList
		err := cache.CacheAside(ctx, cache.ItemListKey(string(collection)), &cached, cache.ItemListTTL, func() error {
			items, storage, err := s.store.ListItems(ctx, collection, page.Limit, page.Offset, "")
			if err != nil {
				return err
			}
			cached = cachedList{Items: items, Storage: storage}
			return nil
		})
		if err != nil {
			return respondStoreError(c, err)
		}
		return c.JSON(fiber.Map{
			"items":   cached.Items,
			"storage": cached.Storage,
		})
	}

	items, storage, err := s.store.ListItems(ctx, collection, page.Limit, page.Offset, userID)
	if err != nil {
		return respondStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"items":   items,
		"storage": storage,
	})
}

// GetItem handles GET /api/:collection/items/:id
func (s *Server) GetItem(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)
	itemID := c.Params("id")

	if userID == "" {
		var item models.ContentItem
		err := cache.CacheAside(ctx, cache.ItemKey(itemID), &item, cache.ItemTTL, func() error {
			got, err := s.store.GetItem(ctx, itemID, "")
			if err != nil {
				return err
			}
			item = *got
			return nil
		})
		if err != nil {
			return respondStoreError(c, err)
		}
		return c.JSON(&item)
	}

	item, err := s.store.GetItem(ctx, itemID, userID)
	if err != nil {
		return respondStoreError(c, err)
	}

	return c.JSON(item)
}

// CreateItem handles POST /api/:collection/items
func (s *Server) CreateItem(c *fiber.Ctx) error {
	ctx := c.Context()
	collection := routeCollection(c)
	userID := currentUserID(c)

	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Title) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Title is required"))
	}
	if req.HTML == "" && req.URL == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Either an HTML document or a URL is required"))
	}

	item := &models.ContentItem{
		ID:          uuid.NewString(),
		Collection:  collection,
		Title:       req.Title,
		Grade:       req.Grade,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		Description: req.Description,
		URL:         req.URL,
		Thumbnail:   req.Thumbnail,
		UploadedBy:  s.displayName(c, userID),
		UserID:      userID,
	}

	if req.HTML != "" {
		rel, err := s.blobs.SaveHTML(string(collection), userID, []byte(req.HTML))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		item.HTMLPath = rel
	}

	// Capture is bounded by the configured timeout and failure-tolerant;
	// items without a thumbnail are still created.
	if item.Thumbnail == "" {
		if req.HTML != "" {
			item.Thumbnail = s.thumbnails.CaptureStored(ctx, []byte(req.HTML))
		} else if req.URL != "" {
			item.Thumbnail = s.thumbnails.CaptureURL(ctx, req.URL)
		}
	}

	storage, err := s.store.CreateItem(ctx, item)
	if err != nil {
		return respondStoreError(c, err)
	}

	cache.InvalidateItem(ctx, item.ID, string(collection))
	s.bus.Publish(ctx, notifications.ItemCreated(item))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"item":    item,
		"storage": storage,
	})
}

// UpdateItem handles PUT /api/:collection/items/:id
func (s *Server) UpdateItem(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)
	itemID := c.Params("id")

	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	item, err := s.store.GetItem(ctx, itemID, userID)
	if err != nil {
		return respondStoreError(c, err)
	}
	if item.UserID != userID && !s.isAdmin(userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewUnauthorizedError("Only the owner can edit this item"))
	}

	if req.Title != "" {
		item.Title = req.Title
	}
	if req.Grade != "" {
		item.Grade = req.Grade
	}
	if req.Category != "" {
		item.Category = req.Category
	}
	if req.Difficulty != "" {
		item.Difficulty = req.Difficulty
	}
	if req.Description != "" {
		item.Description = req.Description
	}
	if req.URL != "" {
		item.URL = req.URL
	}
	if req.Thumbnail != "" {
		item.Thumbnail = req.Thumbnail
	}

	if req.HTML != "" {
		oldPath := item.HTMLPath
		rel, err := s.blobs.SaveHTML(string(item.Collection), userID, []byte(req.HTML))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		item.HTMLPath = rel
		if oldPath != "" && !strings.HasPrefix(oldPath, "http") {
			_ = s.blobs.Delete(oldPath)
		}
		if req.Thumbnail == "" {
			if thumb := s.thumbnails.CaptureStored(ctx, []byte(req.HTML)); thumb != "" {
				item.Thumbnail = thumb
			}
		}
	}

	storage, err := s.store.UpdateItem(ctx, item)
	if err != nil {
		return respondStoreError(c, err)
	}

	cache.InvalidateItem(ctx, item.ID, string(item.Collection))
	s.bus.Publish(ctx, notifications.ItemUpdated(item))

	return c.JSON(fiber.Map{
		"item":    item,
		"storage": storage,
	})
}

// DeleteItem handles DELETE /api/:collection/items/:id
//
// Seed items are admin-only and "deletion" only hides them for the
// deleting user. Dynamic items are removed for everyone by their owner
// or an admin.
func (s *Server) DeleteItem(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)
	itemID := c.Params("id")
	collection := routeCollection(c)

	if models.IsSeedID(itemID) {
		if !s.isAdmin(userID) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Built-in items can only be removed by an admin"))
		}
		storage, err := s.store.DeleteItem(ctx, itemID, userID)
		if err != nil {
			return respondStoreError(c, err)
		}
		return c.JSON(fiber.Map{
			"deleted": itemID,
			"storage": storage,
		})
	}

	item, err := s.store.GetItem(ctx, itemID, userID)
	if err != nil {
		return respondStoreError(c, err)
	}
	if item.UserID != userID && !s.isAdmin(userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewUnauthorizedError("Only the owner can delete this item"))
	}

	storage, err := s.store.DeleteItem(ctx, itemID, userID)
	if err != nil {
		return respondStoreError(c, err)
	}

	// Best-effort cleanup of stored objects.
	if item.HTMLPath != "" && !strings.HasPrefix(item.HTMLPath, "http") {
		_ = s.blobs.Delete(item.HTMLPath)
	}
	if rel, ok := s.blobs.Rel(item.Thumbnail); ok {
		_ = s.blobs.Delete(rel)
	}

	cache.InvalidateItem(ctx, itemID, string(collection))
	s.bus.Publish(ctx, notifications.ItemDeleted(string(collection), itemID))

	return c.JSON(fiber.Map{
		"deleted": itemID,
		"storage": storage,
	})
}

// ServeItemContent handles GET /api/:collection/items/:id/content
//
// Serves the item's HTML document directly, carrying the frame sandbox
// policy as a CSP header so the payload stays contained even when
// loaded outside the gallery frame. Link-only items redirect.
func (s *Server) ServeItemContent(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)

	item, err := s.store.GetItem(ctx, c.Params("id"), userID)
	if err != nil {
		return respondStoreError(c, err)
	}

	resolution, err := s.resolver.Resolve(ctx, item)
	if err != nil {
		return respondStoreError(c, err)
	}

	if resolution.Mode == resolver.ModeInline {
		c.Set(fiber.HeaderContentSecurityPolicy, "sandbox "+resolver.SandboxAttributes)
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(resolution.HTML)
	}
	return c.Redirect(resolution.URL, fiber.StatusFound)
}

// ResolveItem handles GET /api/:collection/items/:id/resolve
//
// The response tells the client how to display the item: inline HTML
// for sandboxed embedding, a frame navigation target, or an external
// link. The sandbox policy travels with every resolution.
func (s *Server) ResolveItem(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)

	item, err := s.store.GetItem(ctx, c.Params("id"), userID)
	if err != nil {
		return respondStoreError(c, err)
	}

	resolution, err := s.resolver.Resolve(ctx, item)
	if err != nil {
		return respondStoreError(c, err)
	}

	return c.JSON(resolution)
}
