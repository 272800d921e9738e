package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemIDs(t *testing.T, resp map[string]any) []string {
	t.Helper()
	raw, ok := resp["items"].([]any)
	require.True(t, ok, "response has no items array: %v", resp)
	ids := make([]string, 0, len(raw))
	for _, entry := range raw {
		item, ok := entry.(map[string]any)
		require.True(t, ok)
		ids = append(ids, item["id"].(string))
	}
	return ids
}

func TestCreateItem(t *testing.T) {
	h := newHarness(t)
	token := testToken(t, "user-1", "민수")

	t.Run("Stores an uploaded HTML item", func(t *testing.T) {
		status, resp := h.request(t, http.MethodPost, "/api/games/items", token, map[string]any{
			"title": "분수 달리기",
			"grade": "3학년",
			"html":  "<!DOCTYPE html><html><body>game</body></html>",
		})

		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "local", resp["storage"])
		item := resp["item"].(map[string]any)
		assert.Equal(t, "분수 달리기", item["title"])
		assert.Equal(t, "games", item["collection"])
		assert.Equal(t, "user-1", item["user_id"])
		assert.NotEmpty(t, item["html_url"])
	})

	t.Run("Stores a linked item", func(t *testing.T) {
		status, resp := h.request(t, http.MethodPost, "/api/tools/items", token, map[string]any{
			"title":     "각도기",
			"url":       "https://example.com/protractor",
			"thumbnail": "https://example.com/protractor.png",
		})

		require.Equal(t, http.StatusCreated, status)
		item := resp["item"].(map[string]any)
		assert.Equal(t, "https://example.com/protractor", item["url"])
	})

	t.Run("Rejects missing title", func(t *testing.T) {
		status, _ := h.request(t, http.MethodPost, "/api/games/items", token, map[string]any{
			"html": "<html></html>",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("Rejects item with no content", func(t *testing.T) {
		status, _ := h.request(t, http.MethodPost, "/api/games/items", token, map[string]any{
			"title": "내용 없음",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("Requires authentication", func(t *testing.T) {
		status, _ := h.request(t, http.MethodPost, "/api/games/items", "", map[string]any{
			"title": "익명",
			"html":  "<html></html>",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("Rejects unknown collection", func(t *testing.T) {
		status, _ := h.request(t, http.MethodPost, "/api/recipes/items", token, map[string]any{
			"title": "x",
			"html":  "<html></html>",
		})
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestListItems(t *testing.T) {
	h := newHarness(t)
	token := testToken(t, "user-1", "민수")

	id := h.createItem(t, token, "games", map[string]any{
		"title": "새 게임",
		"html":  "<html></html>",
	})

	t.Run("Seeds come first, stored items after", func(t *testing.T) {
		status, resp := h.request(t, http.MethodGet, "/api/games/items", "", nil)

		require.Equal(t, http.StatusOK, status)
		ids := itemIDs(t, resp)
		// Four seed games precede the stored item.
		require.Len(t, ids, 5)
		assert.Equal(t, []string{"1", "2", "3", "5"}, ids[:4])
		assert.Equal(t, id, ids[4])
	})

	t.Run("Simulations only contain the simulation seed", func(t *testing.T) {
		status, resp := h.request(t, http.MethodGet, "/api/simulations/items", "", nil)

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, []string{"4"}, itemIDs(t, resp))
	})
}

func TestGetItem(t *testing.T) {
	h := newHarness(t)
	token := testToken(t, "user-1", "민수")

	t.Run("Returns a seed item with engagement counts", func(t *testing.T) {
		status, resp := h.request(t, http.MethodGet, "/api/games/items/1", "", nil)

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "1", resp["id"])
		assert.Equal(t, float64(0), resp["likes"])
	})

	t.Run("Returns a stored item", func(t *testing.T) {
		id := h.createItem(t, token, "games", map[string]any{
			"title": "저장된 게임",
			"html":  "<html></html>",
		})

		status, resp := h.request(t, http.MethodGet, "/api/games/items/"+id, "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "저장된 게임", resp["title"])
	})

	t.Run("Unknown id is 404", func(t *testing.T) {
		status, _ := h.request(t, http.MethodGet, "/api/games/items/does-not-exist", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestUpdateItem(t *testing.T) {
	h := newHarness(t)
	owner := testToken(t, "user-1", "민수")
	other := testToken(t, "user-2", "영희")
	admin := testToken(t, "admin-1", "관리자")

	id := h.createItem(t, owner, "games", map[string]any{
		"title": "수정 전",
		"html":  "<html></html>",
	})

	t.Run("Owner can edit", func(t *testing.T) {
		status, resp := h.request(t, http.MethodPut, "/api/games/items/"+id, owner, map[string]any{
			"title": "수정 후",
		})

		require.Equal(t, http.StatusOK, status)
		item := resp["item"].(map[string]any)
		assert.Equal(t, "수정 후", item["title"])
	})

	t.Run("Non-owner is rejected", func(t *testing.T) {
		status, _ := h.request(t, http.MethodPut, "/api/games/items/"+id, other, map[string]any{
			"title": "남의 것",
		})
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("Admin can edit any item", func(t *testing.T) {
		status, _ := h.request(t, http.MethodPut, "/api/games/items/"+id, admin, map[string]any{
			"description": "관리자 수정",
		})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("Seed items cannot be edited", func(t *testing.T) {
		status, _ := h.request(t, http.MethodPut, "/api/games/items/1", admin, map[string]any{
			"title": "시드 수정",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestDeleteItem(t *testing.T) {
	h := newHarness(t)
	owner := testToken(t, "user-1", "민수")
	other := testToken(t, "user-2", "영희")
	admin := testToken(t, "admin-1", "관리자")

	t.Run("Owner deletes a stored item", func(t *testing.T) {
		id := h.createItem(t, owner, "games", map[string]any{
			"title": "곧 삭제",
			"html":  "<html></html>",
		})

		status, _ := h.request(t, http.MethodDelete, "/api/games/items/"+id, owner, nil)
		require.Equal(t, http.StatusOK, status)

		status, _ = h.request(t, http.MethodGet, "/api/games/items/"+id, "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("Non-owner cannot delete", func(t *testing.T) {
		id := h.createItem(t, owner, "games", map[string]any{
			"title": "남의 게임",
			"html":  "<html></html>",
		})

		status, _ := h.request(t, http.MethodDelete, "/api/games/items/"+id, other, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("Seed deletion requires admin", func(t *testing.T) {
		status, _ := h.request(t, http.MethodDelete, "/api/games/items/1", owner, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("Admin seed deletion hides the seed for that admin only", func(t *testing.T) {
		status, _ := h.request(t, http.MethodDelete, "/api/games/items/2", admin, nil)
		require.Equal(t, http.StatusOK, status)

		// Gone for the deleting admin.
		status, resp := h.request(t, http.MethodGet, "/api/games/items", admin, nil)
		require.Equal(t, http.StatusOK, status)
		assert.NotContains(t, itemIDs(t, resp), "2")

		// Still there for everyone else.
		status, resp = h.request(t, http.MethodGet, "/api/games/items", other, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, itemIDs(t, resp), "2")
	})
}

func TestResolveItem(t *testing.T) {
	h := newHarness(t)
	token := testToken(t, "user-1", "민수")

	t.Run("Stored HTML resolves inline with sandbox", func(t *testing.T) {
		id := h.createItem(t, token, "games", map[string]any{
			"title": "인라인",
			"html":  "<!DOCTYPE html><html><body>play</body></html>",
		})

		status, resp := h.request(t, http.MethodGet, "/api/games/items/"+id+"/resolve", "", nil)

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "inline", resp["mode"])
		assert.Contains(t, resp["html"], "play")
		assert.NotEmpty(t, resp["sandbox"])
	})

	t.Run("Plain link resolves external", func(t *testing.T) {
		id := h.createItem(t, token, "tools", map[string]any{
			"title":     "외부 링크",
			"url":       "https://example.com/tool",
			"thumbnail": "https://example.com/tool.png",
		})

		status, resp := h.request(t, http.MethodGet, "/api/tools/items/"+id+"/resolve", "", nil)

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "external", resp["mode"])
		assert.Equal(t, "https://example.com/tool", resp["url"])
	})
}

func TestServeItemContent(t *testing.T) {
	h := newHarness(t)
	token := testToken(t, "user-1", "앨리스")

	t.Run("Serves stored HTML with a sandbox policy", func(t *testing.T) {
		id := h.createItem(t, token, "games", map[string]any{
			"title": "콘텐츠 게임",
			"html":  "<!DOCTYPE html><html><body>content</body></html>",
		})

		req := httptest.NewRequest(http.MethodGet, "/api/games/items/"+id+"/content", nil)
		resp, err := h.app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "sandbox")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "content")
	})

	t.Run("Redirects link-only items", func(t *testing.T) {
		id := h.createItem(t, token, "tools", map[string]any{
			"title":     "링크 도구",
			"url":       "https://example.com/linked-tool",
			"thumbnail": "https://example.com/linked-tool.png",
		})

		req := httptest.NewRequest(http.MethodGet, "/api/tools/items/"+id+"/content", nil)
		resp, err := h.app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://example.com/linked-tool", resp.Header.Get("Location"))
	})
}
