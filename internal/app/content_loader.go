package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"portfolio/internal/domain"
)

// AllFacet is the facet value that matches every item.
const AllFacet = "All"

// ErrLoadFailed is carried by a Listing whose collection could not be fetched.
var ErrLoadFailed = errors.New("failed to load")

// Listing is the result of ContentLoader.Load. On failure Items is empty and
// Err is set.
type Listing struct {
	Kind  domain.Kind
	Items []domain.Item
	Err   error
}

// Query narrows a listing. An empty or AllFacet Category and an empty Search
// match everything.
type Query struct {
	Category string
	Search   string
	// IncludeBody extends the search to item bodies, as detail views do.
	IncludeBody bool
}

// ContentLoader fetches and normalizes content collections.
type ContentLoader struct {
	docs   domain.DocumentStore
	logger *slog.Logger
}

// NewContentLoader creates a loader reading from docs.
func NewContentLoader(docs domain.DocumentStore, logger *slog.Logger) *ContentLoader {
	return &ContentLoader{docs: docs, logger: logger}
}

// Load fetches every item of kind, newest first. It never returns an error;
// failures are logged and reported through Listing.Err.
func (l *ContentLoader) Load(ctx context.Context, kind domain.Kind) Listing {
	docs, err := l.docs.ListOrdered(ctx, kind.Collection(), domain.OrderField, domain.Descending)
	if err != nil {
		l.logger.Warn("load content failed", "collection", kind.Collection(), "error", err)
		return Listing{Kind: kind, Items: []domain.Item{}, Err: fmt.Errorf("%w %s", ErrLoadFailed, kind)}
	}

	items := make([]domain.Item, 0, len(docs))
	for _, d := range docs {
		items = append(items, domain.ItemFromDocument(kind, d))
	}
	return Listing{Kind: kind, Items: items}
}

// Find returns the item addressed by key: an id for news, a slug or id for
// blog posts. It returns domain.ErrNotFound when nothing matches.
func (l *ContentLoader) Find(ctx context.Context, kind domain.Kind, key string) (domain.Item, error) {
	if key == "" {
		return domain.Item{}, domain.ErrNotFound
	}
	if kind == domain.KindBlog {
		listing := l.Load(ctx, kind)
		if listing.Err != nil {
			return domain.Item{}, listing.Err
		}
		for _, it := range listing.Items {
			if it.Slug == key {
				return it, nil
			}
		}
	}

	doc, err := l.docs.Get(ctx, kind.Collection(), key)
	if err != nil {
		return domain.Item{}, err
	}
	return domain.ItemFromDocument(kind, doc), nil
}

// Filter returns the items matching q, preserving order. It never modifies
// items.
func Filter(items []domain.Item, q Query) []domain.Item {
	category := strings.TrimSpace(q.Category)
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if category != "" && category != AllFacet && !it.HasFacet(category) {
			continue
		}
		if term != "" && !matches(it, term, q.IncludeBody) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func matches(it domain.Item, term string, body bool) bool {
	if strings.Contains(strings.ToLower(it.Title), term) ||
		strings.Contains(strings.ToLower(it.Summary), term) {
		return true
	}
	return body && strings.Contains(strings.ToLower(it.Body), term)
}

// Facets returns AllFacet followed by the distinct facet values of items in
// first-seen order.
func Facets(items []domain.Item) []string {
	seen := make(map[string]struct{})
	out := []string{AllFacet}
	for _, it := range items {
		for _, v := range it.FacetValues() {
			if v == "" || v == AllFacet {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Published drops items that are not visible on the public site.
func Published(items []domain.Item) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if it.Published() {
			out = append(out, it)
		}
	}
	return out
}

// Related returns up to n items other than id, in listing order.
func Related(items []domain.Item, id string, n int) []domain.Item {
	out := make([]domain.Item, 0, n)
	for _, it := range items {
		if len(out) == n {
			break
		}
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
