package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"portfolio/internal/domain"
)

// recordingDocs is a map-backed DocumentStore counting writes.
type recordingDocs struct {
	docs       map[string]domain.RawDocument
	writes     int
	createErr  error
	replaceErr error
}

func newRecordingDocs(docs ...domain.RawDocument) *recordingDocs {
	r := &recordingDocs{docs: make(map[string]domain.RawDocument)}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *recordingDocs) ListOrdered(ctx context.Context, collection, field string, dir domain.Direction) ([]domain.RawDocument, error) {
	out := make([]domain.RawDocument, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d)
	}
	return out, nil
}

func (r *recordingDocs) Get(ctx context.Context, collection, id string) (domain.RawDocument, error) {
	d, ok := r.docs[id]
	if !ok {
		return domain.RawDocument{}, domain.ErrNotFound
	}
	return d, nil
}

func (r *recordingDocs) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	r.writes++
	if r.createErr != nil {
		return "", r.createErr
	}
	id := "doc" + string(rune('0'+len(r.docs)))
	r.docs[id] = domain.RawDocument{ID: id, Fields: fields}
	return id, nil
}

func (r *recordingDocs) Replace(ctx context.Context, collection, id string, fields map[string]any) error {
	r.writes++
	if r.replaceErr != nil {
		return r.replaceErr
	}
	if _, ok := r.docs[id]; !ok {
		return domain.ErrNotFound
	}
	r.docs[id] = domain.RawDocument{ID: id, Fields: fields}
	return nil
}

func (r *recordingDocs) Delete(ctx context.Context, collection, id string) error {
	r.writes++
	delete(r.docs, id)
	return nil
}

// recordingBlobs is a BlobStore logging every call in order.
type recordingBlobs struct {
	blobs     map[string]string
	calls     []string
	uploadErr error
	deleteErr error
}

func newRecordingBlobs(paths ...string) *recordingBlobs {
	b := &recordingBlobs{blobs: make(map[string]string)}
	for _, p := range paths {
		b.blobs[p] = "old"
	}
	return b
}

func (b *recordingBlobs) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (domain.BlobHandle, error) {
	b.calls = append(b.calls, "upload "+path)
	if b.uploadErr != nil {
		return domain.BlobHandle{}, b.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.BlobHandle{}, err
	}
	b.blobs[path] = string(data)
	return domain.BlobHandle{Path: path}, nil
}

func (b *recordingBlobs) URL(ctx context.Context, h domain.BlobHandle) (string, error) {
	return "https://cdn.example.com/" + h.Path, nil
}

func (b *recordingBlobs) Delete(ctx context.Context, path string) error {
	b.calls = append(b.calls, "delete "+path)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if _, ok := b.blobs[path]; !ok {
		return domain.ErrNotFound
	}
	delete(b.blobs, path)
	return nil
}

var editorNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestEditor(docs domain.DocumentStore, blobs domain.BlobStore) *Editor {
	e := NewEditor(docs, blobs, discardLogger())
	e.now = func() time.Time { return editorNow }
	return e
}

func validNewsForm() Form {
	return Form{
		Title:    "Award won",
		Summary:  "We won an award",
		Body:     "Full story",
		Category: "Awards",
		Author:   "Press team",
		Date:     "2026-03-01",
	}
}

func validBlogForm() Form {
	return Form{
		Title:   "Hello World",
		Summary: "First post",
		Body:    "Body",
		Tags:    []string{"go", " go ", ""},
		Date:    "2026-03-01T10:00",
	}
}

func pngUpload(name string) *Upload {
	return &Upload{Filename: name, ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")}
}

func TestEditor_SubmitTitleTooLongTouchesNothing(t *testing.T) {
	docs := newRecordingDocs()
	blobs := newRecordingBlobs()
	e := newTestEditor(docs, blobs)

	f := validNewsForm()
	f.Title = strings.Repeat("x", 101)
	_, err := e.Submit(context.Background(), domain.KindNews, f, pngUpload("a.png"), "")

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["title"] == "" {
		t.Fatalf("expected a title validation error, got %v", err)
	}
	if docs.writes != 0 || len(blobs.calls) != 0 {
		t.Fatalf("validation failure reached the stores: writes=%d blobs=%v", docs.writes, blobs.calls)
	}

	f.Title = strings.Repeat("x", 100)
	if _, err := e.Submit(context.Background(), domain.KindNews, f, nil, ""); err != nil {
		t.Fatalf("100 character title should be accepted: %v", err)
	}
}

func TestEditor_SubmitCreatesNews(t *testing.T) {
	docs := newRecordingDocs()
	blobs := newRecordingBlobs()
	e := newTestEditor(docs, blobs)

	item, err := e.Submit(context.Background(), domain.KindNews, validNewsForm(), pngUpload("my photo.png"), "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	wantPath := "newsImages/1772600767000_my_photo.png"
	if item.ImagePath != wantPath {
		t.Errorf("imagePath = %q; want %q", item.ImagePath, wantPath)
	}
	if item.Image != "https://cdn.example.com/"+wantPath {
		t.Errorf("image = %q", item.Image)
	}
	if item.Status != domain.StatusPublished || !item.CreatedAt.Equal(editorNow) {
		t.Errorf("unexpected defaults: %+v", item)
	}

	stored := docs.docs[item.ID].Fields
	if stored["content"] != "Full story" || stored["summary"] != "We won an award" || stored["category"] != "Awards" {
		t.Errorf("unexpected stored fields: %v", stored)
	}
	if _, ok := blobs.blobs[wantPath]; !ok {
		t.Error("image not uploaded")
	}
}

func TestEditor_SubmitBlogSlug(t *testing.T) {
	docs := newRecordingDocs(domain.RawDocument{ID: "p1", Fields: map[string]any{"slug": "taken"}})
	e := newTestEditor(docs, newRecordingBlobs())
	ctx := context.Background()

	item, err := e.Submit(ctx, domain.KindBlog, validBlogForm(), nil, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if item.Slug != "hello-world" {
		t.Errorf("expected slug from title, got %q", item.Slug)
	}
	if len(item.Tags) != 1 || item.Tags[0] != "go" {
		t.Errorf("tags not cleaned: %v", item.Tags)
	}
	if docs.docs[item.ID].Fields["excerpt"] != "First post" {
		t.Errorf("blog summary not stored as excerpt: %v", docs.docs[item.ID].Fields)
	}

	f := validBlogForm()
	f.Slug = "taken"
	var verr *ValidationError
	if _, err := e.Submit(ctx, domain.KindBlog, f, nil, ""); !errors.As(err, &verr) || verr.Fields["slug"] == "" {
		t.Fatalf("expected slug clash, got %v", err)
	}
	// The post owning the slug may keep it.
	if _, err := e.Submit(ctx, domain.KindBlog, f, nil, "p1"); err != nil {
		t.Fatalf("expected own slug to be allowed, got %v", err)
	}
}

func TestEditor_ReplaceBlogKeepsSlugAndClearsAuthor(t *testing.T) {
	existing := domain.RawDocument{ID: "p1", Fields: map[string]any{
		"title": "Hello World", "slug": "hello-world", "author": "Ada",
	}}
	docs := newRecordingDocs(existing)
	e := newTestEditor(docs, newRecordingBlobs())

	f := validBlogForm()
	f.Title = "Hello again"
	item, err := e.Submit(context.Background(), domain.KindBlog, f, nil, "p1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if item.Slug != "hello-world" {
		t.Errorf("slug = %q; want the existing slug kept", item.Slug)
	}
	if item.Author != "" {
		t.Errorf("author = %q; want it cleared", item.Author)
	}
	if got := docs.docs["p1"].Fields["author"]; got != "" {
		t.Errorf("stored author = %v; want empty", got)
	}

	f.Slug = "renamed"
	if item, err := e.Submit(context.Background(), domain.KindBlog, f, nil, "p1"); err != nil || item.Slug != "renamed" {
		t.Fatalf("expected an explicit slug to replace the old one, got %q %v", item.Slug, err)
	}
}

func TestEditor_UploadFailureLeavesStoresUntouched(t *testing.T) {
	existing := domain.RawDocument{ID: "n1", Fields: map[string]any{
		"title": "Old", "imagePath": "newsImages/old.png", "image": "https://cdn.example.com/newsImages/old.png",
	}}
	docs := newRecordingDocs(existing)
	blobs := newRecordingBlobs("newsImages/old.png")
	blobs.uploadErr = errors.New("quota exceeded")
	e := newTestEditor(docs, blobs)

	_, err := e.Submit(context.Background(), domain.KindNews, validNewsForm(), pngUpload("new.png"), "n1")
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if docs.writes != 0 {
		t.Fatalf("document written despite failed upload")
	}
	if docs.docs["n1"].Fields["title"] != "Old" {
		t.Fatal("existing document changed")
	}
	if _, ok := blobs.blobs["newsImages/old.png"]; !ok {
		t.Fatal("existing image deleted despite failed upload")
	}
}

func TestEditor_WriteFailureRemovesNewUpload(t *testing.T) {
	docs := newRecordingDocs()
	docs.createErr = errors.New("permission denied")
	blobs := newRecordingBlobs()
	e := newTestEditor(docs, blobs)

	_, err := e.Submit(context.Background(), domain.KindNews, validNewsForm(), pngUpload("a.png"), "")
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if len(blobs.blobs) != 0 {
		t.Fatalf("orphaned upload left behind: %v", blobs.blobs)
	}
}

func TestEditor_ReplaceKeepsCreatedAtAndSwapsImage(t *testing.T) {
	created := "2025-01-01T00:00:00.000Z"
	existing := domain.RawDocument{ID: "n1", Fields: map[string]any{
		"title":     "Old",
		"createdAt": created,
		"imagePath": "newsImages/old.png",
		"image":     "https://cdn.example.com/newsImages/old.png",
		"views":     42,
	}}
	docs := newRecordingDocs(existing)
	blobs := newRecordingBlobs("newsImages/old.png")
	e := newTestEditor(docs, blobs)

	item, err := e.Submit(context.Background(), domain.KindNews, validNewsForm(), pngUpload("new.png"), "n1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if item.ID != "n1" || item.Title != "Award won" {
		t.Errorf("unexpected item %+v", item)
	}
	if got := item.CreatedAt.Format(time.RFC3339); got != "2025-01-01T00:00:00Z" {
		t.Errorf("createdAt not preserved: %s", got)
	}
	if !item.LastModified.Equal(editorNow) {
		t.Errorf("lastModified = %v", item.LastModified)
	}
	if docs.docs["n1"].Fields["views"] != 42 {
		t.Error("unowned field dropped on replace")
	}

	want := []string{"upload newsImages/1772600767000_new.png", "delete newsImages/old.png"}
	if strings.Join(blobs.calls, ",") != strings.Join(want, ",") {
		t.Errorf("blob calls = %v; want %v", blobs.calls, want)
	}
}

func TestEditor_ReplaceWithoutImageKeepsOldImage(t *testing.T) {
	existing := domain.RawDocument{ID: "n1", Fields: map[string]any{
		"imagePath": "newsImages/old.png", "image": "https://cdn.example.com/newsImages/old.png",
	}}
	docs := newRecordingDocs(existing)
	blobs := newRecordingBlobs("newsImages/old.png")
	e := newTestEditor(docs, blobs)

	item, err := e.Submit(context.Background(), domain.KindNews, validNewsForm(), nil, "n1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if item.ImagePath != "newsImages/old.png" || len(blobs.calls) != 0 {
		t.Errorf("image changed without an upload: %q %v", item.ImagePath, blobs.calls)
	}
}

func TestEditor_ReplaceMissingDocument(t *testing.T) {
	e := newTestEditor(newRecordingDocs(), newRecordingBlobs())
	_, err := e.Submit(context.Background(), domain.KindNews, validNewsForm(), nil, "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEditor_Delete(t *testing.T) {
	existing := domain.RawDocument{ID: "n1", Fields: map[string]any{"imagePath": "newsImages/old.png"}}
	docs := newRecordingDocs(existing)
	blobs := newRecordingBlobs("newsImages/old.png")
	e := newTestEditor(docs, blobs)
	ctx := context.Background()

	if err := e.Delete(ctx, domain.KindNews, "n1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := docs.docs["n1"]; ok {
		t.Error("document not deleted")
	}
	if len(blobs.blobs) != 0 {
		t.Error("image not deleted")
	}
	if err := e.Delete(ctx, domain.KindNews, "n1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a second delete, got %v", err)
	}
}

func TestEditor_DeleteToleratesBlobFailure(t *testing.T) {
	docs := newRecordingDocs(domain.RawDocument{ID: "n1", Fields: map[string]any{"imagePath": "newsImages/x.png"}})
	blobs := newRecordingBlobs()
	blobs.deleteErr = errors.New("unavailable")
	e := newTestEditor(docs, blobs)

	if err := e.Delete(context.Background(), domain.KindNews, "n1"); err != nil {
		t.Fatalf("blob failure must not block the delete: %v", err)
	}
	if _, ok := docs.docs["n1"]; ok {
		t.Error("document not deleted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		kind   domain.Kind
		mutate func(*Form)
		image  *Upload
		field  string
	}{
		{"missing title", domain.KindNews, func(f *Form) { f.Title = " " }, nil, "title"},
		{"missing body", domain.KindNews, func(f *Form) { f.Body = "" }, nil, "body"},
		{"summary too long", domain.KindNews, func(f *Form) { f.Summary = strings.Repeat("s", 301) }, nil, "summary"},
		{"missing category", domain.KindNews, func(f *Form) { f.Category = "" }, nil, "category"},
		{"missing author", domain.KindNews, func(f *Form) { f.Author = "" }, nil, "author"},
		{"meta too long", domain.KindNews, func(f *Form) { f.MetaDescription = strings.Repeat("m", 161) }, nil, "metaDescription"},
		{"bad date", domain.KindNews, func(f *Form) { f.Date = "someday" }, nil, "date"},
		{"missing date", domain.KindNews, func(f *Form) { f.Date = "" }, nil, "date"},
		{"bad status", domain.KindNews, func(f *Form) { f.Status = "hidden" }, nil, "status"},
		{"not an image", domain.KindNews, func(f *Form) {}, &Upload{ContentType: "application/pdf", Size: 1}, "image"},
		{"image too large", domain.KindNews, func(f *Form) {}, &Upload{ContentType: "image/jpeg", Size: 11 << 20}, "image"},
		{"blog without tags", domain.KindBlog, func(f *Form) { f.Tags = []string{" "} }, nil, "tags"},
		{"blog bad slug", domain.KindBlog, func(f *Form) { f.Slug = "Not A Slug" }, nil, "slug"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := validNewsForm()
			if tc.kind == domain.KindBlog {
				f = validBlogForm()
			}
			tc.mutate(&f)
			var verr *ValidationError
			if err := Validate(tc.kind, f, tc.image); !errors.As(err, &verr) || verr.Fields[tc.field] == "" {
				t.Fatalf("expected error on %q, got %v", tc.field, err)
			}
		})
	}

	if err := Validate(domain.KindNews, validNewsForm(), pngUpload("a.png")); err != nil {
		t.Fatalf("valid news rejected: %v", err)
	}
	if err := Validate(domain.KindBlog, validBlogForm(), nil); err != nil {
		t.Fatalf("valid blog rejected: %v", err)
	}
}

func TestImagePathAndSlugify(t *testing.T) {
	tests := []struct {
		kind domain.Kind
		name string
		want string
	}{
		{domain.KindNews, "photo.jpg", "newsImages/1772600767000_photo.jpg"},
		{domain.KindBlog, `C:\Users\me\cover art.png`, "blogImages/1772600767000_cover_art.png"},
		{domain.KindBlog, "../../etc/passwd", "blogImages/1772600767000_passwd"},
		{domain.KindNews, "", "newsImages/1772600767000_image"},
	}
	for _, tc := range tests {
		if got := imagePath(tc.kind, editorNow, tc.name); got != tc.want {
			t.Errorf("imagePath(%q) = %q; want %q", tc.name, got, tc.want)
		}
	}

	if got := Slugify("  Hello, World: Go 1.25! "); got != "hello-world-go-1-25" {
		t.Errorf("Slugify = %q", got)
	}
}
