package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathgenie/internal/store"
)

// stubRasterizer returns fixed data, or blocks until the context is
// cancelled when block is set.
type stubRasterizer struct {
	data   []byte
	err    error
	block  bool
	target string
}

func (r *stubRasterizer) Rasterize(ctx context.Context, target string) ([]byte, error) {
	r.target = target
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.data, nil
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testBlobStore(t *testing.T) *store.BlobStore {
	t.Helper()
	blobs, err := store.NewBlobStore(t.TempDir(), "/media")
	require.NoError(t, err)
	return blobs
}

func TestCaptureStored(t *testing.T) {
	t.Run("Returns stored thumbnail URL on success", func(t *testing.T) {
		raster := &stubRasterizer{data: testPNG(t, ViewportWidth, ViewportHeight)}
		svc := NewService(raster, testBlobStore(t), 5*time.Second)

		got := svc.CaptureStored(context.Background(), []byte("<html><body>hi</body></html>"))

		assert.True(t, strings.HasPrefix(got, "/media/thumbnails/"), "got %q", got)
		assert.True(t, strings.HasSuffix(got, ".webp"), "got %q", got)
		assert.True(t, strings.HasPrefix(raster.target, "file://"), "got %q", raster.target)
	})

	t.Run("Slow capture resolves to no thumbnail", func(t *testing.T) {
		raster := &stubRasterizer{block: true}
		svc := NewService(raster, testBlobStore(t), 50*time.Millisecond)

		start := time.Now()
		got := svc.CaptureStored(context.Background(), []byte("<html></html>"))

		assert.Empty(t, got)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("Render failures resolve to no thumbnail", func(t *testing.T) {
		raster := &stubRasterizer{err: assert.AnError}
		svc := NewService(raster, testBlobStore(t), time.Second)

		assert.Empty(t, svc.CaptureStored(context.Background(), []byte("<html></html>")))
	})

	t.Run("No browser resolves to no thumbnail", func(t *testing.T) {
		svc := NewService(nil, testBlobStore(t), time.Second)

		assert.False(t, svc.Available())
		assert.Empty(t, svc.CaptureStored(context.Background(), []byte("<html></html>")))
	})
}

func TestCapturePNG(t *testing.T) {
	want := testPNG(t, 8, 8)
	raster := &stubRasterizer{data: want}
	svc := NewService(raster, testBlobStore(t), time.Second)

	got, err := svc.CapturePNG(context.Background(), []byte("<html></html>"))

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCaptureURL(t *testing.T) {
	t.Run("Rehosts the page's own preview image", func(t *testing.T) {
		var srv *httptest.Server
		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/cover.png" {
				w.Header().Set("Content-Type", "image/png")
				w.Write(testPNG(t, 8, 8))
				return
			}
			w.Write([]byte(`<html><head><meta property="og:image" content="` + srv.URL + `/cover.png"></head></html>`))
		}))
		defer srv.Close()

		raster := &stubRasterizer{data: testPNG(t, 8, 8)}
		svc := NewService(raster, testBlobStore(t), time.Second)

		got := svc.CaptureURL(context.Background(), srv.URL)

		assert.True(t, strings.HasPrefix(got, "/media/thumbnails/"), "got %q", got)
		assert.Empty(t, raster.target, "should not render when a preview image exists")
	})

	t.Run("Falls back to the remote reference when the preview cannot be fetched", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><head><meta property="og:image" content="http://127.0.0.1:1/cover.png"></head></html>`))
		}))
		defer srv.Close()

		raster := &stubRasterizer{data: testPNG(t, 8, 8)}
		svc := NewService(raster, testBlobStore(t), time.Second)

		got := svc.CaptureURL(context.Background(), srv.URL)

		assert.Equal(t, "http://127.0.0.1:1/cover.png", got)
		assert.Empty(t, raster.target)
	})

	t.Run("Renders the page when no preview image exists", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><head><title>plain</title></head></html>`))
		}))
		defer srv.Close()

		raster := &stubRasterizer{data: testPNG(t, ViewportWidth, ViewportHeight)}
		svc := NewService(raster, testBlobStore(t), 5*time.Second)

		got := svc.CaptureURL(context.Background(), srv.URL)

		assert.True(t, strings.HasPrefix(got, "/media/thumbnails/"), "got %q", got)
		assert.Equal(t, srv.URL, raster.target)
	})
}

func TestExtractPreviewImage(t *testing.T) {
	base, _ := url.Parse("https://example.com/games/42")

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "og:image",
			html: `<html><head><meta property="og:image" content="https://cdn.example.com/a.png"></head></html>`,
			want: "https://cdn.example.com/a.png",
		},
		{
			name: "twitter fallback",
			html: `<html><head><meta name="twitter:image" content="https://cdn.example.com/t.png"></head></html>`,
			want: "https://cdn.example.com/t.png",
		},
		{
			name: "og wins over twitter",
			html: `<html><head><meta name="twitter:image" content="https://cdn.example.com/t.png"><meta property="og:image" content="https://cdn.example.com/a.png"></head></html>`,
			want: "https://cdn.example.com/a.png",
		},
		{
			name: "relative URL resolves against the page",
			html: `<html><head><meta property="og:image" content="/img/cover.png"></head></html>`,
			want: "https://example.com/img/cover.png",
		},
		{
			name: "non-http scheme rejected",
			html: `<html><head><meta property="og:image" content="javascript:alert(1)"></head></html>`,
			want: "",
		},
		{
			name: "no preview",
			html: `<html><head><title>x</title></head></html>`,
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractPreviewImage(strings.NewReader(tc.html), base)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncodeThumbnail(t *testing.T) {
	t.Run("Downscales and encodes", func(t *testing.T) {
		data, ext, err := EncodeThumbnail(testPNG(t, ViewportWidth, ViewportHeight))

		require.NoError(t, err)
		assert.Equal(t, "webp", ext)
		assert.NotEmpty(t, data)
		assert.Less(t, len(data), ViewportWidth*ViewportHeight)
	})

	t.Run("Rejects garbage input", func(t *testing.T) {
		_, _, err := EncodeThumbnail([]byte("not a png"))
		assert.Error(t, err)
	})
}
