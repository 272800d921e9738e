package generate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mathgenie/internal/models"
	"mathgenie/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Request is the generation input as received from the client.
type Request struct {
	Type     ContentType `json:"type"`
	Metadata Metadata    `json:"metadata"`
}

// Result is a finished generation.
type Result struct {
	HTML     string            `json:"html"`
	Title    string            `json:"title"`
	Metadata map[string]string `json:"metadata"`
}

// Service validates requests, drives the model and post-processes output.
type Service struct {
	model   Model
	timeout time.Duration
}

// NewService creates a generation service with the given hard timeout
// for the upstream call.
func NewService(model Model, timeout time.Duration) *Service {
	return &Service{model: model, timeout: timeout}
}

// Provider names the backing model provider.
func (s *Service) Provider() string {
	return s.model.Provider()
}

// Validate checks the per-type required metadata. Webtoons need only
// grade and unit; games and simulations need all four fields. It runs
// before any model call so invalid requests never cost quota.
func (r *Request) Validate() error {
	switch r.Type {
	case TypeGame, TypeSimulation, TypeWebtoon, "":
	default:
		return models.NewValidationError(fmt.Sprintf("Unknown content type %q", r.Type))
	}

	m := r.Metadata
	if strings.TrimSpace(m.Grade) == "" || strings.TrimSpace(m.Unit) == "" {
		return models.NewValidationError("Grade and unit are required")
	}
	if r.Type == TypeWebtoon {
		return nil
	}
	if strings.TrimSpace(m.GameType) == "" || strings.TrimSpace(m.Difficulty) == "" {
		return models.NewValidationError("Grade, unit, format and difficulty are all required")
	}
	return nil
}

// Generate produces a complete HTML document for the request.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	span, ctx := observability.NewSpan(ctx, "generate.Generate",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.AddAttributes(attribute.String("content_type", string(req.Type)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.model.GenerateContent(ctx, BuildPrompt(req.Type, req.Metadata))
	observability.GenerationLatency.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetError(err)
		observability.GenerationRequests.WithLabelValues(string(req.Type), outcomeFor(err)).Inc()
		return nil, err
	}
	observability.GenerationRequests.WithLabelValues(string(req.Type), "success").Inc()

	html := EnsureDoctype(StripFences(text))

	return &Result{
		HTML:  html,
		Title: titleFor(req),
		Metadata: map[string]string{
			"grade":      req.Metadata.Grade,
			"unit":       req.Metadata.Unit,
			"category":   req.Metadata.GameType,
			"difficulty": req.Metadata.Difficulty,
		},
	}, nil
}

// Regenerate re-issues the request with the prior notes augmented by a
// modification request, replacing the previous draft.
func (s *Service) Regenerate(ctx context.Context, req Request, modification string) (*Result, error) {
	modification = strings.TrimSpace(modification)
	if modification != "" {
		if req.Metadata.Description != "" {
			req.Metadata.Description += "\n"
		}
		req.Metadata.Description += "수정 요청: " + modification
	}
	return s.Generate(ctx, req)
}

func titleFor(req Request) string {
	if req.Type == TypeWebtoon {
		return req.Metadata.Unit + " 웹툰"
	}
	return req.Metadata.Unit + " - " + req.Metadata.GameType
}

func outcomeFor(err error) string {
	if models.IsQuotaError(err) {
		return "quota"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

var fenceRe = regexp.MustCompile("(?s)^```(?:html)?\\s*\\n(.*?)\\n?```\\s*$")

// StripFences removes one enclosing markdown code fence, if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// EnsureDoctype prepends the document type declaration when the model
// omitted it.
func EnsureDoctype(html string) string {
	if strings.Contains(strings.ToLower(html), "<!doctype html>") {
		return html
	}
	return "<!DOCTYPE html>\n" + html
}
