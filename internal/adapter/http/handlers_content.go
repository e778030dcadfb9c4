package adapthttp

import (
	"errors"
	"net/http"

	"portfolio/internal/app"
	"portfolio/internal/domain"
)

const relatedCount = 3

// handleList serves the public listing of kind. facetParam names the query
// parameter that selects a facet.
func (s *Server) handleList(kind domain.Kind, facetParam string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing := s.loader.Load(r.Context(), kind)
		items := app.Published(listing.Items)

		resp := map[string]any{
			"facets": app.Facets(items),
			"items": summaries(app.Filter(items, app.Query{
				Category: r.URL.Query().Get(facetParam),
				Search:   r.URL.Query().Get("q"),
			})),
		}
		if listing.Err != nil {
			resp["error"] = listing.Err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleDetail serves one published item with a few related ones.
func (s *Server) handleDetail(kind domain.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := s.loader.Find(r.Context(), kind, r.PathValue("key"))
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		if !item.Published() {
			writeError(w, http.StatusNotFound, errors.New("not found"))
			return
		}

		listing := s.loader.Load(r.Context(), kind)
		related := app.Related(app.Published(listing.Items), item.ID, relatedCount)
		writeJSON(w, http.StatusOK, map[string]any{
			"item":    item,
			"related": summaries(related),
		})
	}
}

// summaries drops bodies from listing payloads.
func summaries(items []domain.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	for i, it := range items {
		it.Body = ""
		out[i] = it
	}
	return out
}
