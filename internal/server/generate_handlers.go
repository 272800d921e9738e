package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v2"

	"mathgenie/internal/generate"
	"mathgenie/internal/models"
)

// GenerateContent handles POST /api/generate
//
// Proxies a validated generation request to the AI provider and returns
// the post-processed HTML document. Validation failures never reach the
// provider; quota rejections surface as 402 so the client can tell them
// apart from transient failures.
func (s *Server) GenerateContent(c *fiber.Ctx) error {
	if s.generator == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewValidationError("AI generation is not configured"))
	}

	var req struct {
		generate.Request
		// Modification turns the call into a regeneration of an earlier
		// result with the requested change.
		Modification string `json:"modification"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	var result *generate.Result
	var err error
	if req.Modification != "" {
		result, err = s.generator.Regenerate(c.Context(), req.Request, req.Modification)
	} else {
		result, err = s.generator.Generate(c.Context(), req.Request)
	}
	if err != nil {
		switch {
		case models.IsQuotaError(err):
			return models.RespondWithError(c, fiber.StatusPaymentRequired, err)
		case isValidationError(err):
			return models.RespondWithError(c, fiber.StatusBadRequest, err)
		case errors.Is(err, context.DeadlineExceeded):
			return models.RespondWithError(c, fiber.StatusGatewayTimeout,
				models.NewInternalError(err))
		default:
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"html":     result.HTML,
		"title":    result.Title,
		"metadata": result.Metadata,
	})
}

// RenderThumbnail handles POST /api/thumbnail
//
// Renders the posted HTML document headlessly and returns the viewport
// capture as a data URL, matching what gallery clients embed directly.
// The body is the document itself (text/html); a JSON {"html": ...}
// envelope is also accepted.
func (s *Server) RenderThumbnail(c *fiber.Ctx) error {
	if !s.thumbnails.Available() {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewValidationError("Thumbnail rendering is not available"))
	}

	html := c.Body()
	if c.Is("json") {
		var req struct {
			HTML string `json:"html"`
		}
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		html = []byte(req.HTML)
	}
	if len(bytes.TrimSpace(html)) == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("HTML content is required"))
	}

	data, err := s.thumbnails.CapturePNG(c.Context(), html)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.RespondWithError(c, fiber.StatusGatewayTimeout,
				models.NewInternalError(err))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"thumbnail": "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
	})
}

func isValidationError(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR"
}
