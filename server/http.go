// Package server provides the JSON HTTP API over the content domains.
package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rootsecops/folio"
	"github.com/rootsecops/folio/cache"
	"github.com/rootsecops/folio/content"
	"github.com/rootsecops/folio/telemetry"
)

// Config holds server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// AdminToken guards the /admin endpoints. When empty they are not
	// registered.
	AdminToken string

	// Logger for the server
	Logger *slog.Logger
}

// Blog is the blog domain as seen by the API.
type Blog interface {
	ListAll(ctx context.Context) []content.Post
	GetBySlug(ctx context.Context, slug string) (*content.Post, error)
}

// Projects is the projects domain as seen by the API.
type Projects interface {
	ListAll(ctx context.Context) []content.Project
	GetBySlug(ctx context.Context, slug string) (*content.Project, error)
}

// Browser is a browsable repository as seen by the API.
type Browser interface {
	ListDirectory(ctx context.Context, dir string) []folio.Entry
	Search(ctx context.Context, query string) []folio.Entry
	GetContent(ctx context.Context, file string) (*folio.Document, error)
}

// Store is the shared content cache as seen by the admin and health
// endpoints.
type Store interface {
	Len() int
	Purge() int
}

// Domains groups the content sources served by the API.
type Domains struct {
	Blog     Blog
	Projects Projects
	Programs Browser
	Codes    Browser
	Notes    Browser
}

// Server is the HTTP server for the content API.
type Server struct {
	config     Config
	httpServer *http.Server
	logger     *slog.Logger

	domains Domains
	store   Store
	janitor *cache.Janitor
}

// Option configures a Server.
type Option func(*Server)

// WithJanitor runs j for the lifetime of the server.
func WithJanitor(j *cache.Janitor) Option {
	return func(s *Server) {
		s.janitor = j
	}
}

// New creates a new server with the given configuration.
func New(cfg Config, domains Domains, store Store, opts ...Option) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}

	s := &Server{
		config:  cfg,
		logger:  cfg.Logger,
		domains: domains,
		store:   store,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the full middleware chain and routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s.loggingMiddleware(securityHeaders(gzhttp.GzipHandler(mux)))
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	// Prometheus metrics endpoint (returns 404 if not enabled)
	mux.Handle("GET /metrics", telemetry.PrometheusHandler())

	mux.HandleFunc("GET /api/blogs", s.handleBlogs)
	mux.HandleFunc("GET /api/blogs/{slug}", s.handleBlog)
	mux.HandleFunc("GET /api/projects", s.handleProjects)
	mux.HandleFunc("GET /api/projects/{slug}", s.handleProject)
	mux.Handle("GET /api/programs", s.browseHandler("programs", s.domains.Programs, "programs"))
	mux.Handle("GET /api/codes", s.browseHandler("codes", s.domains.Codes, "programs"))
	mux.Handle("GET /api/notes", s.browseHandler("notes", s.domains.Notes, "notes"))
	mux.Handle("GET /api/academics", s.browseHandler("notes", s.domains.Notes, "notes"))

	if s.config.AdminToken != "" {
		mux.Handle("POST /admin/cache/purge", s.authMiddleware(http.HandlerFunc(s.handlePurge)))
	}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	telemetry.SetDomain(r, "internal")
	entries := 0
	if s.store != nil {
		entries = s.store.Len()
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "ok", "cache_entries": entries})
}

// loggingMiddleware logs HTTP requests with structured fields for analysis.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		// Inject request tags so handlers can set domain, cache_result, etc.
		r = telemetry.InjectTags(r)
		tags := telemetry.GetTags(r)
		tags.Domain = deriveDomain(r.URL.Path)

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"domain", tags.Domain,

			"status", wrapped.status,
			"status_class", telemetry.StatusClass(wrapped.status),
			"bytes_sent", wrapped.bytesWritten,

			"duration_ms", duration.Milliseconds(),
			"duration", duration.String(),

			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
			"http_version", fmt.Sprintf("%d.%d", r.ProtoMajor, r.ProtoMinor),
		}
		if tags.Endpoint != "" {
			attrs = append(attrs, "endpoint", tags.Endpoint)
		}
		if tags.CacheResult != "" {
			attrs = append(attrs, "cache_result", string(tags.CacheResult))
		}

		s.logger.Info("http request", attrs...)

		telemetry.RecordHTTP(r.Context(), r, wrapped.status, wrapped.bytesWritten, duration)
	})
}

// securityHeaders sets the response headers the site has always sent.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start starts the server.
func (s *Server) Start() error {
	if s.janitor != nil {
		s.janitor.Start(context.Background())
	}

	s.logger.Info("starting server", "address", s.config.Address)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.janitor != nil {
		s.janitor.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}

// Address returns the server's listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// responseWriter wraps http.ResponseWriter to capture the status code and bytes written.
// It preserves http.Flusher and http.Hijacker interfaces for streaming support.
type responseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher for streaming responses.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker for connection upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("hijacking not supported")
}

// Unwrap returns the underlying ResponseWriter.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// deriveDomain extracts the content domain from the request path.
func deriveDomain(path string) string {
	switch {
	case path == "/health" || path == "/metrics":
		return "internal"
	case strings.HasPrefix(path, "/admin/"):
		return "admin"
	case strings.HasPrefix(path, "/api/"):
		name, _, _ := strings.Cut(strings.TrimPrefix(path, "/api/"), "/")
		switch name {
		case "blogs", "projects", "programs", "codes", "notes":
			return name
		case "academics":
			return "notes"
		}
	}
	return "unknown"
}
