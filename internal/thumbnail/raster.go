// Package thumbnail produces representative raster images for content
// items: page-preview extraction for linked items, headless rendering
// for HTML payloads.
package thumbnail

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Viewport used for every capture.
const (
	ViewportWidth  = 1280
	ViewportHeight = 720
)

// Rasterizer renders a navigable target off-screen and returns a PNG
// snapshot of the viewport.
type Rasterizer interface {
	Rasterize(ctx context.Context, target string) ([]byte, error)
}

// ChromeRasterizer shells out to a headless Chromium build. Each
// capture gets its own browser process and scratch directory; nothing
// is pooled.
type ChromeRasterizer struct {
	binary string
	settle time.Duration
}

var chromeCandidates = []string{
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
}

// NewChromeRasterizer locates the browser binary. An explicit path wins;
// otherwise well-known names are tried on PATH.
func NewChromeRasterizer(path string, settle time.Duration) (*ChromeRasterizer, error) {
	if path != "" {
		if _, err := exec.LookPath(path); err != nil {
			return nil, fmt.Errorf("configured browser binary not found: %w", err)
		}
		return &ChromeRasterizer{binary: path, settle: settle}, nil
	}
	for _, name := range chromeCandidates {
		if found, err := exec.LookPath(name); err == nil {
			return &ChromeRasterizer{binary: found, settle: settle}, nil
		}
	}
	return nil, fmt.Errorf("no headless browser binary found on PATH")
}

// Rasterize loads the target and captures a fixed-viewport screenshot.
// The settle budget gives dynamic content time to draw before capture.
func (r *ChromeRasterizer) Rasterize(ctx context.Context, target string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "mathgenie-capture-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	out := filepath.Join(dir, "shot.png")
	cmd := exec.CommandContext(ctx, r.binary,
		"--headless=new",
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-gpu",
		"--hide-scrollbars",
		fmt.Sprintf("--window-size=%d,%d", ViewportWidth, ViewportHeight),
		fmt.Sprintf("--virtual-time-budget=%d", r.settle.Milliseconds()),
		fmt.Sprintf("--screenshot=%s", out),
		fmt.Sprintf("--user-data-dir=%s", filepath.Join(dir, "profile")),
		target,
	)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("headless capture failed: %w", err)
	}

	return os.ReadFile(out)
}

// WriteTempHTML stores an HTML payload in a scratch file and returns a
// file:// target plus a cleanup func. Loading via file URL avoids the
// length limits data URLs hit on large generated documents.
func WriteTempHTML(html []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "mathgenie-page-*.html")
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(html); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	return "file://" + f.Name(), cleanup, nil
}
