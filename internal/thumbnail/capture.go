package thumbnail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mathgenie/internal/middleware"
	"mathgenie/internal/observability"
	"mathgenie/internal/store"
)

// Service orchestrates thumbnail production: preview extraction for
// linked pages, headless rendering for HTML payloads, encode, upload.
type Service struct {
	raster  Rasterizer
	blobs   *store.BlobStore
	client  *http.Client
	timeout time.Duration
}

// NewService wires the capture pipeline. raster may be nil when no
// headless browser is available; captures then degrade to "no thumbnail".
func NewService(raster Rasterizer, blobs *store.BlobStore, timeout time.Duration) *Service {
	return &Service{
		raster:  raster,
		blobs:   blobs,
		client:  &http.Client{Timeout: 10 * time.Second},
		timeout: timeout,
	}
}

// Available reports whether headless capture can run.
func (s *Service) Available() bool {
	return s.raster != nil
}

// CapturePNG renders an HTML payload and returns the viewport PNG.
// Used by the raw thumbnail endpoint, which returns the pixels inline.
func (s *Service) CapturePNG(ctx context.Context, html []byte) ([]byte, error) {
	if s.raster == nil {
		return nil, errors.New("no headless browser available")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target, cleanup, err := WriteTempHTML(html)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	data, err := s.raster.Rasterize(ctx, target)
	if err != nil {
		observability.ThumbnailCaptures.WithLabelValues(outcome(err)).Inc()
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}
	observability.ThumbnailCaptures.WithLabelValues("success").Inc()
	return data, nil
}

// CaptureStored runs the full pipeline for an item's HTML payload:
// render, encode, upload. It never fails item creation; on any error,
// including the capture timeout, it returns an empty path.
func (s *Service) CaptureStored(ctx context.Context, html []byte) string {
	data, err := s.CapturePNG(ctx, html)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "thumbnail capture skipped",
			slog.String("error", err.Error()),
		)
		return ""
	}
	return s.encodeAndStore(ctx, data)
}

// CaptureURL produces a thumbnail reference for a linked page. The
// page's own social preview image wins and is re-hosted locally;
// otherwise the page is rendered.
func (s *Service) CaptureURL(ctx context.Context, pageURL string) string {
	if preview := FetchPreviewImage(ctx, s.client, pageURL); preview != "" {
		if rehosted := s.rehostPreview(ctx, preview); rehosted != "" {
			return rehosted
		}
		// The remote reference still beats rendering the whole page.
		return preview
	}
	if s.raster == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.raster.Rasterize(ctx, pageURL)
	if err != nil {
		observability.ThumbnailCaptures.WithLabelValues(outcome(err)).Inc()
		observability.RecordErrorInContext(ctx, err)
		middleware.Logger.WarnContext(ctx, "thumbnail capture skipped",
			slog.String("url", pageURL),
			slog.String("error", err.Error()),
		)
		return ""
	}
	observability.ThumbnailCaptures.WithLabelValues("success").Inc()
	return s.encodeAndStore(ctx, data)
}

// maxPreviewDownloadBytes bounds preview image downloads.
const maxPreviewDownloadBytes = 10 << 20

// rehostPreview downloads a page's preview image and stores it as a
// local thumbnail. Returns "" when the image cannot be fetched or
// decoded.
func (s *Service) rehostPreview(ctx context.Context, imgURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return ""
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPreviewDownloadBytes))
	if err != nil {
		return ""
	}
	encoded, ext, err := EncodeFetchedImage(data)
	if err != nil {
		return ""
	}
	rel, err := s.blobs.SaveThumbnail(encoded, ext)
	if err != nil {
		return ""
	}
	return s.blobs.URL(rel)
}

func (s *Service) encodeAndStore(ctx context.Context, pngData []byte) string {
	encoded, ext, err := EncodeThumbnail(pngData)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "thumbnail encode failed",
			slog.String("error", err.Error()),
		)
		return ""
	}
	rel, err := s.blobs.SaveThumbnail(encoded, ext)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "thumbnail upload failed",
			slog.String("error", err.Error()),
		)
		return ""
	}
	return s.blobs.URL(rel)
}

func outcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}
