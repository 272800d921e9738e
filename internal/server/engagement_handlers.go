package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"mathgenie/internal/cache"
	"mathgenie/internal/models"
	"mathgenie/internal/notifications"
)

const maxCommentLength = 2000

// ToggleLike handles POST /api/:collection/items/:id/like
//
// The toggle runs server-side: membership decides direction and the
// unique user/item index absorbs concurrent duplicates, so two rapid
// taps from the same user end in a consistent state.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)
	itemID := c.Params("id")
	collection := routeCollection(c)

	// Seeds exist without a database row; anything else must exist.
	if _, err := s.store.GetItem(ctx, itemID, userID); err != nil {
		return respondStoreError(c, err)
	}

	_, liked, err := s.store.LikeState(ctx, userID, itemID)
	if err != nil {
		return respondStoreError(c, err)
	}

	var storage string
	if liked {
		storage, err = s.store.Unlike(ctx, userID, itemID)
	} else {
		storage, err = s.store.Like(ctx, userID, itemID)
	}
	if err != nil {
		return respondStoreError(c, err)
	}

	likes, nowLiked, err := s.store.LikeState(ctx, userID, itemID)
	if err != nil {
		return respondStoreError(c, err)
	}

	// Like counts appear in cached anonymous reads.
	cache.InvalidateItem(ctx, itemID, string(collection))
	s.bus.Publish(ctx, notifications.ReactionUpdated(string(collection), itemID, likes))

	return c.JSON(fiber.Map{
		"liked":   nowLiked,
		"likes":   likes,
		"storage": storage,
	})
}

// ListComments handles GET /api/:collection/items/:id/comments
func (s *Server) ListComments(c *fiber.Ctx) error {
	ctx := c.Context()

	comments, err := s.store.ListComments(ctx, c.Params("id"))
	if err != nil {
		return respondStoreError(c, err)
	}

	return c.JSON(fiber.Map{
		"comments": comments,
	})
}

// CreateComment handles POST /api/:collection/items/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)
	itemID := c.Params("id")
	collection := routeCollection(c)

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Comment text is required"))
	}
	if len(req.Text) > maxCommentLength {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Comment is too long"))
	}

	if _, err := s.store.GetItem(ctx, itemID, userID); err != nil {
		return respondStoreError(c, err)
	}

	comment := &models.Comment{
		ItemID: itemID,
		Text:   req.Text,
		Author: s.displayName(c, userID),
		UserID: userID,
	}

	storage, err := s.store.CreateComment(ctx, comment)
	if err != nil {
		return respondStoreError(c, err)
	}

	cache.InvalidateItem(ctx, itemID, string(collection))
	s.bus.Publish(ctx, notifications.CommentCreated(string(collection), comment))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"comment": comment,
		"storage": storage,
	})
}

// DeleteComment handles DELETE /api/:collection/items/:id/comments/:commentId
//
// Comments are removed only by their author. The stored comment count
// is derived from live rows, so deletion decrements it implicitly.
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := currentUserID(c)
	itemID := c.Params("id")
	collection := routeCollection(c)

	commentID, err := c.ParamsInt("commentId")
	if err != nil || commentID <= 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid comment ID"))
	}

	comment, err := s.store.GetComment(ctx, uint(commentID))
	if err != nil {
		return respondStoreError(c, err)
	}
	if comment.ItemID != itemID {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Comment", commentID))
	}
	if comment.UserID != userID {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewUnauthorizedError("Only the author can delete this comment"))
	}

	if err := s.store.DeleteComment(ctx, uint(commentID)); err != nil {
		return respondStoreError(c, err)
	}

	cache.InvalidateItem(ctx, itemID, string(collection))
	s.bus.Publish(ctx, notifications.CommentDeleted(string(collection), itemID, uint(commentID)))

	return c.JSON(fiber.Map{
		"deleted": commentID,
	})
}
