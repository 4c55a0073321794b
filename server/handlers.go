package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/rootsecops/folio"
	"github.com/rootsecops/folio/content"
	"github.com/rootsecops/folio/telemetry"
)

func (s *Server) handleBlogs(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "list")
	posts := s.domains.Blog.ListAll(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) handleBlog(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "detail")
	post, err := s.domains.Blog.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeNotFound(w, r, err, "Post not found")
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "list")
	projects := s.domains.Projects.ListAll(r.Context())
	writeJSON(w, r, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "detail")
	project, err := s.domains.Projects.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeNotFound(w, r, err, "Project not found")
		return
	}
	writeJSON(w, r, http.StatusOK, project)
}

// browseHandler serves a browsable repository. A non-empty query searches,
// action=getContent returns a single document, anything else lists path.
func (s *Server) browseHandler(domain string, b Browser, field string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry.SetDomain(r, domain)
		q := r.URL.Query()
		p := decodePath(q.Get("path"))

		var entries []folio.Entry
		switch {
		case q.Get("query") != "":
			telemetry.SetEndpoint(r, "search")
			entries = b.Search(r.Context(), q.Get("query"))
		case q.Get("action") == "getContent":
			telemetry.SetEndpoint(r, "content")
			doc, err := b.GetContent(r.Context(), p)
			if err != nil {
				writeNotFound(w, r, err, "Note content not found")
				return
			}
			writeJSON(w, r, http.StatusOK, doc)
			return
		default:
			telemetry.SetEndpoint(r, "list")
			entries = b.ListDirectory(r.Context(), p)
		}

		if entries == nil {
			entries = []folio.Entry{}
		}
		writeJSON(w, r, http.StatusOK, map[string]any{field: entries})
	})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	telemetry.SetEndpoint(r, "purge")
	n := 0
	if s.store != nil {
		n = s.store.Purge()
	}
	s.logger.Info("cache purged", "entries", n)
	writeJSON(w, r, http.StatusOK, map[string]any{"purged": n})
}

// decodePath undoes the double encoding clients apply to nested paths.
// Values that fail to decode are used as is.
func decodePath(p string) string {
	for range 2 {
		d, err := url.PathUnescape(p)
		if err != nil {
			break
		}
		p = d
	}
	return p
}

func writeNotFound(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := http.StatusNotFound
	if !errors.Is(err, content.ErrNotFound) {
		status = http.StatusInternalServerError
		msg = "Internal server error"
	}
	writeJSON(w, r, status, map[string]string{"message": msg})
}

// writeJSON encodes v with a weak ETag derived from the body and answers
// conditional requests with 304.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		http.Error(w, `{"message":"Internal server error"}`, http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")

	if status == http.StatusOK {
		etag := folio.HashBytes(buf.Bytes()).ETag()
		h.Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
