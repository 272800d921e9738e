package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	preflight := func(t *testing.T, app *fiber.App, origin string) *http.Response {
		t.Helper()
		req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("Reflects any origin by default", func(t *testing.T) {
		h := newHarness(t)
		app := fiber.New()
		h.server.SetupMiddleware(app)
		h.server.SetupRoutes(app)

		resp := preflight(t, app, "https://teacher-site.example")

		assert.Equal(t, "https://teacher-site.example", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	})

	t.Run("Configured allow-list narrows the default", func(t *testing.T) {
		h := newHarness(t)
		h.server.config.AllowedOrigins = "https://allowed.example"
		app := fiber.New()
		h.server.SetupMiddleware(app)
		h.server.SetupRoutes(app)

		resp := preflight(t, app, "https://allowed.example")
		assert.Equal(t, "https://allowed.example", resp.Header.Get("Access-Control-Allow-Origin"))

		resp = preflight(t, app, "https://other.example")
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}
