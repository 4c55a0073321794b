// Package content assembles the site's content domains from GitHub: blog
// posts, projects, and the browsable coursework and notes repositories.
//
// Every accessor degrades to an empty or absent result on failure. Errors are
// logged, never returned to the page layer, except ErrNotFound for lookups.
package content

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rootsecops/folio"
	"github.com/rootsecops/folio/cache"
	"github.com/rootsecops/folio/download"
	"github.com/rootsecops/folio/github"
	"github.com/rootsecops/folio/render"
	"github.com/rootsecops/folio/telemetry"
)

// ErrNotFound is returned by single-item lookups when nothing matches, or
// when the item could not be loaded.
var ErrNotFound = errors.New("content not found")

// DefaultFanout bounds concurrent per-file fetches during a listing.
const DefaultFanout = 8

// isoLayout matches JavaScript's Date.prototype.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Upstream is the subset of the GitHub client used by the domains.
type Upstream interface {
	ListDirectory(ctx context.Context, repo github.Repo, path string) ([]github.RawEntry, error)
	GetFileRaw(ctx context.Context, downloadURL string) (string, error)
	GetFile(ctx context.Context, repo github.Repo, path string) (*github.FileContent, error)
	GetReadme(ctx context.Context, owner, name string) (string, error)
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
	Search(ctx context.Context, repo github.Repo, prefix, query string) ([]folio.Entry, error)
	RawFileURL(repo github.Repo, path string) string
}

var _ Upstream = (*github.Client)(nil)

// Source locates a domain's content: a repository branch, the directory
// inside it, and the site route prefix prepended to entry paths.
type Source struct {
	github.Repo `yaml:",inline"`
	Path        string `yaml:"path"`
	Prefix      string `yaml:"prefix"`
}

// Option configures a content domain.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	now      func() time.Time
	fanout   int
	markdown *render.Markdown
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock used for missing dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithFanout bounds concurrent per-file fetches. Values below one are ignored.
func WithFanout(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.fanout = n
		}
	}
}

// WithMarkdown sets the renderer used to fill HTML fields.
func WithMarkdown(m *render.Markdown) Option {
	return func(o *options) {
		o.markdown = m
	}
}

func buildOptions(domain string, opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
		fanout: DefaultFanout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.markdown == nil {
		o.markdown = render.New()
	}
	o.logger = o.logger.With("component", "content", "domain", domain)
	return o
}

// cached returns the value under key, running fetch on a miss. Concurrent
// misses share one fetch and only successful results are stored.
func cached[T any](ctx context.Context, c cache.Cache, dl *download.Downloader[T], domain, key string, fetch download.Func[T]) (T, error) {
	if v, ok := cache.Lookup[T](c, key); ok {
		telemetry.MarkCache(ctx, domain, telemetry.CacheHit)
		return v, nil
	}
	telemetry.MarkCache(ctx, domain, telemetry.CacheMiss)

	v, _, err := dl.Do(ctx, key, func(ctx context.Context) (T, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})
	return v, err
}

// renderHTML renders body, logging and dropping failures.
func (o options) renderHTML(name, body string) string {
	out, err := o.markdown.HTML(body)
	if err != nil {
		o.logger.Warn("rendering markdown failed", "name", name, "error", err)
		return ""
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// parseDate reads a front-matter date. Values without a zone are UTC.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// resolveDate returns the ISO form of raw, or of now when raw is missing or
// unreadable.
func (o options) resolveDate(name, raw string) (string, time.Time) {
	if raw == "" {
		t := o.now().UTC()
		return t.Format(isoLayout), t
	}
	t, ok := parseDate(raw)
	if !ok {
		o.logger.Warn("unreadable date, using current time", "name", name, "date", raw)
		t = o.now().UTC()
	}
	return t.Format(isoLayout), t
}

// markdownFiles keeps the .md files from a listing.
func markdownFiles(raw []github.RawEntry) []github.RawEntry {
	var files []github.RawEntry
	for _, e := range raw {
		if e.Type == "file" && strings.HasSuffix(e.Name, ".md") && e.DownloadURL != nil {
			files = append(files, e)
		}
	}
	return files
}

// slugOf strips the .md suffix from a file name.
func slugOf(name string) string {
	return strings.TrimSuffix(name, ".md")
}
