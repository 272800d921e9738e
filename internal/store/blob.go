// Package store implements object storage for HTML payloads and
// thumbnails, and the persistence facade that falls back to the local
// database when the primary one is unreachable.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore persists opaque payloads under a root directory and hands
// back relative paths suitable for serving under the media route.
type BlobStore struct {
	root    string
	baseURL string
}

// NewBlobStore creates the blob root if needed and returns the store.
func NewBlobStore(root, baseURL string) (*BlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &BlobStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the filesystem root the store writes under.
func (s *BlobStore) Root() string {
	return s.root
}

// SaveHTML stores a generated or uploaded HTML document and returns its
// relative object path: {collection}/{userID}/{unix-ms}.html.
func (s *BlobStore) SaveHTML(collection, userID string, html []byte) (string, error) {
	rel := filepath.Join(collection, sanitizeSegment(userID), fmt.Sprintf("%d.html", time.Now().UnixMilli()))
	if err := s.write(rel, html); err != nil {
		return "", err
	}
	return rel, nil
}

// SaveThumbnail stores an encoded thumbnail image and returns its
// relative object path: thumbnails/{unix-ms}_{rand}.{ext}.
func (s *BlobStore) SaveThumbnail(data []byte, ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "webp"
	}
	rel := filepath.Join("thumbnails", fmt.Sprintf("%d_%s.%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext))
	if err := s.write(rel, data); err != nil {
		return "", err
	}
	return rel, nil
}

// Read returns the payload stored at the given relative path.
func (s *BlobStore) Read(rel string) ([]byte, error) {
	abs, err := s.abs(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

// Delete removes the payload at the given relative path. Deleting a
// missing object is not an error.
func (s *BlobStore) Delete(rel string) error {
	abs, err := s.abs(rel)
	if err != nil {
		return err
	}
	err = os.Remove(abs)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// URL returns the client-facing URL for a stored object path.
func (s *BlobStore) URL(rel string) string {
	return s.baseURL + "/" + filepath.ToSlash(rel)
}

// Rel inverts URL: it maps a client-facing URL back to the stored
// object path. Returns false for URLs this store did not produce.
func (s *BlobStore) Rel(url string) (string, bool) {
	if s.baseURL == "" || !strings.HasPrefix(url, s.baseURL+"/") {
		return "", false
	}
	return strings.TrimPrefix(url, s.baseURL+"/"), true
}

func (s *BlobStore) write(rel string, data []byte) error {
	abs, err := s.abs(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	// Write to a temp file then rename so readers never see partial objects.
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), abs)
}

// abs resolves rel under the root and rejects traversal outside it.
func (s *BlobStore) abs(rel string) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(abs, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object path %q", rel)
	}
	return abs, nil
}

func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, string(os.PathSeparator), "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" {
		return "anonymous"
	}
	return s
}
