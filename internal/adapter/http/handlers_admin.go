package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"portfolio/internal/app"
	"portfolio/internal/domain"
)

// maxFormSize bounds multipart bodies: the image limit plus the JSON part.
const maxFormSize = 11 << 20

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	d := decisionFrom(r.Context())
	writeJSON(w, http.StatusOK, sessionStatus(d))
}

func sessionStatus(d app.Decision) map[string]any {
	resp := map[string]any{
		"state":       d.State.String(),
		"remaining":   app.FormatRemaining(d.Remaining),
		"remainingMs": d.Remaining.Milliseconds(),
	}
	if d.Session != nil {
		resp["email"] = d.Session.Email
		resp["expiresAt"] = d.Session.ExpiresAt
	}
	return resp
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	refreshed, err := s.guard.Activity(r.Context(), token)
	if err != nil {
		s.logger.Warn("activity refresh failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"refreshed": refreshed,
		"remaining": app.FormatRemaining(s.sessions.TimeRemaining(r.Context(), token)),
	})
}

// handleAdminList lists every item of kind whatever its status.
func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	listing := s.loader.Load(r.Context(), kind)
	if listing.Err != nil {
		s.writeAppError(w, r, listing.Err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": listing.Items})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, "")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, r.PathValue("id"))
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, id string) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}

	form, upload, err := parseForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if upload != nil {
		defer func() {
			if c, ok := upload.Body.(interface{ Close() error }); ok {
				_ = c.Close()
			}
		}()
	}

	item, err := s.editor.Submit(r.Context(), kind, form, upload, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"item": item})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}
	if err := s.editor.Delete(r.Context(), kind, r.PathValue("id")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathKind(w http.ResponseWriter, r *http.Request) (domain.Kind, bool) {
	kind, err := domain.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return "", false
	}
	return kind, true
}

// parseForm reads a JSON body, or a multipart body with the JSON in the
// "data" part and an optional "image" file.
func parseForm(w http.ResponseWriter, r *http.Request) (app.Form, *app.Upload, error) {
	var f app.Form
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := parseJSON(r, &f)
		return f, nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		return f, nil, fmt.Errorf("invalid form: %w", err)
	}
	data := r.FormValue("data")
	if data == "" {
		return f, nil, errors.New("missing data part")
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return f, nil, fmt.Errorf("invalid json: %w", err)
	}

	file, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return f, nil, nil
	}
	if err != nil {
		return f, nil, fmt.Errorf("invalid image: %w", err)
	}
	return f, &app.Upload{
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
		Body:        file,
	}, nil
}
