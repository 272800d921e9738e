package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"mathgenie/internal/models"
	"mathgenie/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, storageHosts ...string) (*Resolver, *store.BlobStore) {
	blobs, err := store.NewBlobStore(t.TempDir(), "/media")
	require.NoError(t, err)

	hosts := make(map[string]struct{}, len(storageHosts))
	for _, h := range storageHosts {
		hosts[h] = struct{}{}
	}
	return New(blobs, hosts), blobs
}

func TestResolve_StoredHTMLWinsFirst(t *testing.T) {
	r, blobs := newTestResolver(t)

	rel, err := blobs.SaveHTML("games", "user-1", []byte("<!DOCTYPE html><p>hi</p>"))
	require.NoError(t, err)

	res, err := r.Resolve(context.Background(), &models.ContentItem{
		HTMLPath: rel,
		URL:      "https://example.com/should-not-be-used",
	})
	require.NoError(t, err)
	assert.Equal(t, ModeInline, res.Mode)
	assert.Contains(t, res.HTML, "<p>hi</p>")
	assert.Equal(t, SandboxAttributes, res.Sandbox)
}

func TestResolve_StorageOriginNavigatesDirectly(t *testing.T) {
	r, _ := newTestResolver(t, "storage.googleapis.com")

	res, err := r.Resolve(context.Background(), &models.ContentItem{
		HTMLPath: "https://storage.googleapis.com/bucket/games/u/1.html",
	})
	require.NoError(t, err)
	assert.Equal(t, ModeNavigate, res.Mode)
	assert.Equal(t, "https://storage.googleapis.com/bucket/games/u/1.html", res.URL)
}

func TestResolve_ForeignHostFetchesAndInjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<!DOCTYPE html><h1>fetched</h1>"))
	}))
	defer srv.Close()

	r, _ := newTestResolver(t)

	res, err := r.Resolve(context.Background(), &models.ContentItem{HTMLPath: srv.URL + "/game.html"})
	require.NoError(t, err)
	assert.Equal(t, ModeInline, res.Mode)
	assert.Contains(t, res.HTML, "fetched")
}

func TestResolve_FetchFailureFallsBackToNavigation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	r, _ := newTestResolver(t)

	target := srv.URL + "/game.html"
	res, err := r.Resolve(context.Background(), &models.ContentItem{HTMLPath: target})
	require.NoError(t, err)
	assert.Equal(t, ModeNavigate, res.Mode)
	assert.Equal(t, target, res.URL)
}

func TestResolve_ExternalLinkOpensNewContext(t *testing.T) {
	r, _ := newTestResolver(t)

	res, err := r.Resolve(context.Background(), &models.ContentItem{URL: "https://example.com/game"})
	require.NoError(t, err)
	assert.Equal(t, ModeExternal, res.Mode)
	assert.Equal(t, "https://example.com/game", res.URL)
}

func TestResolve_NoSourceIsAnError(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), &models.ContentItem{URL: "not-a-url"})
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestIsStorageOrigin_IgnoresPortAndCase(t *testing.T) {
	r, _ := newTestResolver(t, "files.mathgenie.io")

	u, _ := url.Parse("https://Files.MathGenie.io:8443/x.html")
	assert.True(t, r.isStorageOrigin(u.String()))
	assert.False(t, r.isStorageOrigin("https://evil.example.com/x.html"))
}

func TestResolve_SandboxAlwaysSet(t *testing.T) {
	r, blobs := newTestResolver(t)
	rel, err := blobs.SaveHTML("tools", "u", []byte("<p>t</p>"))
	require.NoError(t, err)

	for _, item := range []*models.ContentItem{
		{HTMLPath: rel},
		{URL: "http://example.com"},
	} {
		res, err := r.Resolve(context.Background(), item)
		require.NoError(t, err)
		assert.True(t, strings.Contains(res.Sandbox, "allow-scripts"))
	}
}
