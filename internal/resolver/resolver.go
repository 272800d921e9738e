// Package resolver decides how a content item should be presented:
// inline HTML in a sandboxed frame, direct frame navigation, or an
// external link opened in a new browsing context.
package resolver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mathgenie/internal/middleware"
	"mathgenie/internal/models"
	"mathgenie/internal/observability"
	"mathgenie/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

// Mode tells the client how to render the resolved content.
type Mode string

const (
	// ModeInline delivers the HTML payload itself for sandboxed embedding.
	ModeInline Mode = "inline"
	// ModeNavigate points the embedded frame directly at a URL.
	ModeNavigate Mode = "navigate"
	// ModeExternal opens the URL in a new browsing context.
	ModeExternal Mode = "external"
)

// SandboxAttributes is the iframe sandbox policy clients must apply to
// inline and navigated content.
const SandboxAttributes = "allow-scripts allow-same-origin allow-forms allow-popups allow-modals allow-top-navigation-by-user-activation"

// Resolution is the outcome of resolving one item.
type Resolution struct {
	Mode    Mode   `json:"mode"`
	HTML    string `json:"html,omitempty"`
	URL     string `json:"url,omitempty"`
	Sandbox string `json:"sandbox"`
}

const (
	maxFetchBytes = 4 << 20
	fetchTimeout  = 10 * time.Second
)

// Resolver applies the resolution order to items.
type Resolver struct {
	blobs        *store.BlobStore
	storageHosts map[string]struct{}
	client       *http.Client
}

// New creates a Resolver. storageHosts lists hostnames whose URLs may
// be loaded into a frame directly instead of fetched and injected.
func New(blobs *store.BlobStore, storageHosts map[string]struct{}) *Resolver {
	return &Resolver{
		blobs:        blobs,
		storageHosts: storageHosts,
		client:       &http.Client{Timeout: fetchTimeout},
	}
}

// Resolve walks the resolution order, first match wins:
// stored HTML payload, hosted HTML reference, plain external link.
// Items with none of the three produce a validation error and no
// navigation target.
func (r *Resolver) Resolve(ctx context.Context, item *models.ContentItem) (*Resolution, error) {
	span, ctx := observability.NewSpan(ctx, "resolver.Resolve")
	span.AddAttributes(attribute.String("item_id", item.ID))
	defer span.End()

	if item.HTMLPath != "" {
		if isHTTPURL(item.HTMLPath) {
			return r.resolveRemoteHTML(ctx, item.HTMLPath), nil
		}
		html, err := r.blobs.Read(item.HTMLPath)
		if err != nil {
			span.SetError(err)
			return nil, models.NewInternalError(fmt.Errorf("stored content unavailable: %w", err))
		}
		return &Resolution{Mode: ModeInline, HTML: string(html), Sandbox: SandboxAttributes}, nil
	}

	if isHTTPURL(item.URL) {
		return &Resolution{Mode: ModeExternal, URL: item.URL, Sandbox: SandboxAttributes}, nil
	}

	return nil, models.NewValidationError("Item has no content to display")
}

// resolveRemoteHTML handles hosted HTML references. Our own object
// storage origins are frame-navigable without CORS trouble, so those
// load directly. Anything else is fetched and injected, with direct
// navigation as the fallback when the fetch fails.
func (r *Resolver) resolveRemoteHTML(ctx context.Context, rawURL string) *Resolution {
	if r.isStorageOrigin(rawURL) {
		return &Resolution{Mode: ModeNavigate, URL: rawURL, Sandbox: SandboxAttributes}
	}

	html, err := r.fetch(ctx, rawURL)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "content fetch failed, falling back to direct navigation",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return &Resolution{Mode: ModeNavigate, URL: rawURL, Sandbox: SandboxAttributes}
	}
	return &Resolution{Mode: ModeInline, HTML: html, Sandbox: SandboxAttributes}
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (r *Resolver) isStorageOrigin(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := r.storageHosts[strings.ToLower(u.Hostname())]
	return ok
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
