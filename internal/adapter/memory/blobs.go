package memory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"portfolio/internal/domain"
)

var _ domain.BlobStore = (*Blobs)(nil)

type blob struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Blobs is an in-memory BlobStore that also serves its contents over HTTP.
// URLs are baseURL + "/" + path, so the handler must be mounted at baseURL.
type Blobs struct {
	mu      sync.RWMutex
	baseURL string
	blobs   map[string]blob
}

// NewBlobs creates an empty blob store whose URLs start with baseURL.
func NewBlobs(baseURL string) *Blobs {
	return &Blobs{
		baseURL: strings.TrimRight(baseURL, "/"),
		blobs:   make(map[string]blob),
	}
}

// Upload stores the contents of r at path.
func (b *Blobs) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (domain.BlobHandle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.BlobHandle{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[path] = blob{data: data, contentType: contentType, modified: time.Now()}
	return domain.BlobHandle{Path: path}, nil
}

// URL returns the address the blob is served at.
func (b *Blobs) URL(ctx context.Context, h domain.BlobHandle) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.blobs[h.Path]; !ok {
		return "", domain.ErrNotFound
	}
	return b.baseURL + "/" + h.Path, nil
}

// Delete removes the blob at path.
func (b *Blobs) Delete(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.blobs[path]; !ok {
		return domain.ErrNotFound
	}
	delete(b.blobs, path)
	return nil
}

// Exists reports whether a blob is stored at path.
func (b *Blobs) Exists(path string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blobs[path]
	return ok
}

// ServeHTTP serves the blob named by the request path relative to baseURL.
func (b *Blobs) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, b.baseURL), "/")

	b.mu.RLock()
	bl, ok := b.blobs[p]
	b.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if bl.contentType != "" {
		w.Header().Set("Content-Type", bl.contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, p, bl.modified, bytes.NewReader(bl.data))
}
