package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path"
	"strings"
	"time"

	"portfolio/internal/domain"
)

var (
	// ErrUploadFailed wraps a failed image upload; nothing was written.
	ErrUploadFailed = errors.New("failed to upload image")
	// ErrWriteFailed wraps a failed document write; a new image, if any,
	// was removed again.
	ErrWriteFailed = errors.New("failed to save document")
	// ErrDeleteFailed wraps a failed document delete.
	ErrDeleteFailed = errors.New("failed to delete document")
)

// Upload is an image submitted alongside a form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Editor creates, replaces and deletes content documents together with
// their images.
type Editor struct {
	docs   domain.DocumentStore
	blobs  domain.BlobStore
	logger *slog.Logger
	now    func() time.Time
}

// NewEditor creates an editor over docs and blobs.
func NewEditor(docs domain.DocumentStore, blobs domain.BlobStore, logger *slog.Logger) *Editor {
	return &Editor{docs: docs, blobs: blobs, logger: logger, now: time.Now}
}

// Submit validates f and writes it as a new document, or over existingID
// when set. A new image is uploaded before the document is written and the
// previous image is only removed once the write succeeded, so a failed
// upload or write leaves the stores as they were.
func (e *Editor) Submit(ctx context.Context, kind domain.Kind, f Form, image *Upload, existingID string) (domain.Item, error) {
	if err := Validate(kind, f, image); err != nil {
		return domain.Item{}, err
	}
	item := f.item(kind)
	coll := kind.Collection()

	var (
		existing *domain.RawDocument
		previous domain.Item
	)
	if existingID != "" {
		doc, err := e.docs.Get(ctx, coll, existingID)
		if err != nil {
			return domain.Item{}, fmt.Errorf("load %s %s: %w", kind, existingID, err)
		}
		existing = &doc
		previous = domain.ItemFromDocument(kind, doc)
		// A post keeps its URL when the form leaves the slug empty.
		if kind == domain.KindBlog && f.Slug == "" && previous.Slug != "" {
			item.Slug = previous.Slug
		}
	}

	if kind == domain.KindBlog && item.Slug != "" {
		if err := e.checkSlug(ctx, item.Slug, existingID); err != nil {
			return domain.Item{}, err
		}
	}

	now := e.now()
	item.LastModified = now
	item.CreatedAt = now
	if existing != nil {
		item.ID = existing.ID
		item.Image, item.ImagePath = previous.Image, previous.ImagePath
		if !previous.CreatedAt.IsZero() {
			item.CreatedAt = previous.CreatedAt
		}
	}

	var uploaded string
	if image != nil {
		p := imagePath(kind, now, image.Filename)
		h, err := e.blobs.Upload(ctx, p, image.Body, image.Size, image.ContentType)
		if err != nil {
			return domain.Item{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		url, err := e.blobs.URL(ctx, h)
		if err != nil {
			e.discardUpload(ctx, h.Path)
			return domain.Item{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		item.Image, item.ImagePath = url, h.Path
		uploaded = h.Path
	}

	fields := item.Fields()
	if existing != nil {
		// Fields the form does not own survive the replace.
		merged := make(map[string]any, len(existing.Fields)+len(fields))
		maps.Copy(merged, existing.Fields)
		maps.Copy(merged, fields)
		fields = merged
		if err := e.docs.Replace(ctx, coll, existing.ID, fields); err != nil {
			e.discardUpload(ctx, uploaded)
			return domain.Item{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	} else {
		id, err := e.docs.Create(ctx, coll, fields)
		if err != nil {
			e.discardUpload(ctx, uploaded)
			return domain.Item{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
		item.ID = id
	}

	// The old image goes only after the write, so a failed submit still
	// points at a blob that exists.
	if uploaded != "" && previous.ImagePath != "" && previous.ImagePath != uploaded {
		e.deleteBlob(ctx, previous.ImagePath, "old image cleanup failed")
	}

	e.logger.Info("content saved", "kind", kind, "id", item.ID, "replaced", existing != nil, "image", uploaded != "")
	return domain.ItemFromDocument(kind, domain.RawDocument{ID: item.ID, Fields: fields}), nil
}

// Delete removes the document and, best-effort, its image.
func (e *Editor) Delete(ctx context.Context, kind domain.Kind, id string) error {
	doc, err := e.docs.Get(ctx, kind.Collection(), id)
	if err != nil {
		return fmt.Errorf("load %s %s: %w", kind, id, err)
	}

	if p := domain.ItemFromDocument(kind, doc).ImagePath; p != "" {
		e.deleteBlob(ctx, p, "image delete failed")
	}

	if err := e.docs.Delete(ctx, kind.Collection(), id); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	e.logger.Info("content deleted", "kind", kind, "id", id)
	return nil
}

func (e *Editor) checkSlug(ctx context.Context, slug, existingID string) error {
	docs, err := e.docs.ListOrdered(ctx, domain.KindBlog.Collection(), domain.OrderField, domain.Descending)
	if err != nil {
		return fmt.Errorf("check slug: %w", err)
	}
	for _, d := range docs {
		if d.ID != existingID && domain.ItemFromDocument(domain.KindBlog, d).Slug == slug {
			return &ValidationError{Fields: map[string]string{"slug": "Slug is already used by another post."}}
		}
	}
	return nil
}

func (e *Editor) deleteBlob(ctx context.Context, p, msg string) {
	if err := e.blobs.Delete(ctx, p); err != nil && !errors.Is(err, domain.ErrNotFound) {
		e.logger.Warn(msg, "path", p, "error", err)
	}
}

// discardUpload removes a blob uploaded for a write that did not happen.
func (e *Editor) discardUpload(ctx context.Context, p string) {
	if p == "" {
		return
	}
	if err := e.blobs.Delete(ctx, p); err != nil && !errors.Is(err, domain.ErrNotFound) {
		e.logger.Warn("orphaned upload needs manual cleanup", "path", p, "error", err)
	}
}

// imagePath is <prefix>/<unix ms>_<file name>.
func imagePath(kind domain.Kind, now time.Time, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		if r == ' ' || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	return fmt.Sprintf("%s/%d_%s", kind.ImagePrefix(), now.UnixMilli(), name)
}
