package domain

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"
)

// Kind selects one of the two content collections.
type Kind string

const (
	KindNews Kind = "news"
	KindBlog Kind = "blog"
)

// Item statuses.
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
	StatusArchived  = "archived"
)

// ParseKind maps a URL segment to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNews:
		return KindNews, nil
	case KindBlog:
		return KindBlog, nil
	}
	return "", fmt.Errorf("unknown content kind %q", s)
}

// Collection is the document store collection backing the kind.
func (k Kind) Collection() string {
	if k == KindBlog {
		return "blogPosts"
	}
	return "news"
}

// ImagePrefix is the blob path prefix for images attached to the kind.
func (k Kind) ImagePrefix() string {
	if k == KindBlog {
		return "blogImages"
	}
	return "newsImages"
}

// OrderField is the field collections are ordered by.
const OrderField = "date"

// Direction is a sort direction for ListOrdered.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// RawDocument is a document as exchanged with a DocumentStore.
type RawDocument struct {
	ID     string
	Fields map[string]any
}

// DocumentStore is the port to the remote document database.
type DocumentStore interface {
	ListOrdered(ctx context.Context, collection, field string, dir Direction) ([]RawDocument, error)
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (RawDocument, error)
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Replace returns ErrNotFound when the document does not exist.
	Replace(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

// BlobHandle identifies an uploaded blob.
type BlobHandle struct {
	Path string
}

// BlobStore is the port to the binary asset store.
type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) (BlobHandle, error)
	URL(ctx context.Context, h BlobHandle) (string, error)
	// Delete may return ErrNotFound, which callers treat as success.
	Delete(ctx context.Context, path string) error
}

// Item is a news item or blog post. News and blog posts share the base
// fields; the remaining fields are only set for one kind.
type Item struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Body         string    `json:"body"`
	Category     string    `json:"category,omitempty"`
	Tags         []string  `json:"tags"`
	Date         time.Time `json:"date"`
	Image        string    `json:"image,omitempty"`
	ImagePath    string    `json:"imagePath,omitempty"`
	Author       string    `json:"author,omitempty"`
	ReadTime     string    `json:"readTime,omitempty"`
	Featured     bool      `json:"featured"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	LastModified time.Time `json:"lastModified,omitzero"`

	// News only.
	MetaDescription string `json:"metaDescription,omitempty"`
	Source          string `json:"source,omitempty"`
	Location        string `json:"location,omitempty"`

	// Blog only.
	Slug string `json:"slug,omitempty"`
}

// Published reports whether the item is visible on the public site. Items
// stored before statuses existed have none and count as published.
func (it Item) Published() bool {
	return it.Status == "" || it.Status == StatusPublished
}

// FacetValues returns the values the item is grouped by: its category for
// news, its tags for blog posts.
func (it Item) FacetValues() []string {
	if it.Kind == KindBlog {
		return it.Tags
	}
	if it.Category == "" {
		return nil
	}
	return []string{it.Category}
}

// HasFacet reports whether v is one of the item's facet values.
func (it Item) HasFacet(v string) bool {
	return slices.Contains(it.FacetValues(), v)
}

// Stored field names. News bodies live under "content", blog summaries
// under "excerpt".
const (
	fieldTitle           = "title"
	fieldSummary         = "summary"
	fieldExcerpt         = "excerpt"
	fieldContent         = "content"
	fieldCategory        = "category"
	fieldTags            = "tags"
	fieldDate            = "date"
	fieldImage           = "image"
	fieldImagePath       = "imagePath"
	fieldAuthor          = "author"
	fieldReadTime        = "readTime"
	fieldFeatured        = "featured"
	fieldStatus          = "status"
	fieldCreatedAt       = "createdAt"
	fieldLastModified    = "lastModified"
	fieldMetaDescription = "metaDescription"
	fieldSource          = "source"
	fieldLocation        = "location"
	fieldSlug            = "slug"
)

func summaryField(k Kind) string {
	if k == KindBlog {
		return fieldExcerpt
	}
	return fieldSummary
}

// Fields renders the item into stored document fields. The id is not part
// of the fields.
func (it Item) Fields() map[string]any {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	f := map[string]any{
		fieldTitle:     it.Title,
		fieldContent:   it.Body,
		fieldTags:      tags,
		fieldDate:      FormatTimestamp(it.Date),
		fieldImage:     it.Image,
		fieldImagePath: it.ImagePath,
		fieldReadTime:  it.ReadTime,
		fieldStatus:    it.Status,
		fieldFeatured:  it.Featured,
	}
	f[summaryField(it.Kind)] = it.Summary
	if !it.CreatedAt.IsZero() {
		f[fieldCreatedAt] = FormatTimestamp(it.CreatedAt)
	}
	if !it.LastModified.IsZero() {
		f[fieldLastModified] = FormatTimestamp(it.LastModified)
	}
	f[fieldAuthor] = it.Author
	switch it.Kind {
	case KindNews:
		f[fieldCategory] = it.Category
		f[fieldMetaDescription] = it.MetaDescription
		f[fieldSource] = it.Source
		f[fieldLocation] = it.Location
	case KindBlog:
		f[fieldSlug] = it.Slug
	}
	return f
}

// ItemFromDocument decodes a stored document. Unknown fields are ignored and
// timestamps are normalized with NormalizeTime.
func ItemFromDocument(k Kind, doc RawDocument) Item {
	f := doc.Fields
	it := Item{
		ID:        doc.ID,
		Kind:      k,
		Title:     stringField(f, fieldTitle),
		Summary:   stringField(f, summaryField(k)),
		Body:      stringField(f, fieldContent),
		Category:  stringField(f, fieldCategory),
		Tags:      stringsField(f, fieldTags),
		Image:     stringField(f, fieldImage),
		ImagePath: stringField(f, fieldImagePath),
		Author:    stringField(f, fieldAuthor),
		ReadTime:  stringField(f, fieldReadTime),
		Status:    stringField(f, fieldStatus),
	}
	if b, ok := f[fieldFeatured].(bool); ok {
		it.Featured = b
	}
	it.Date, _ = NormalizeTime(f[fieldDate])
	it.CreatedAt, _ = NormalizeTime(f[fieldCreatedAt])
	it.LastModified, _ = NormalizeTime(f[fieldLastModified])

	switch k {
	case KindNews:
		it.MetaDescription = stringField(f, fieldMetaDescription)
		it.Source = stringField(f, fieldSource)
		it.Location = stringField(f, fieldLocation)
	case KindBlog:
		it.Slug = stringField(f, fieldSlug)
	}
	return it
}

func stringField(f map[string]any, key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func stringsField(f map[string]any, key string) []string {
	switch v := f[key].(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
