package content

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/rootsecops/folio/cache"
	"github.com/rootsecops/folio/github"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeGitHub serves the contents, raw, branch, tree, readme and repository
// endpoints from in-memory fixtures and counts requests per path.
type fakeGitHub struct {
	t   *testing.T
	srv *httptest.Server

	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	hits   map[string]int
}

type mdFile struct {
	name string
	text string
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{
		t:      t,
		routes: map[string]http.HandlerFunc{},
		hits:   map[string]int{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		h, ok := f.routes[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGitHub) handle(p string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[p] = h
}

func (f *fakeGitHub) body(p, body string) {
	f.handle(p, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	})
}

func (f *fakeGitHub) status(p string, code int) {
	f.handle(p, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", code)
	})
}

func (f *fakeGitHub) count(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[p]
}

func (f *fakeGitHub) totalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.hits {
		n += c
	}
	return n
}

func contentsPath(src Source, p string) string {
	if p == "" {
		return path.Join("/repos", src.Owner, src.Name, "contents") + "/"
	}
	return path.Join("/repos", src.Owner, src.Name, "contents", p)
}

// markdownDir registers a directory listing of files, in order, and a raw
// endpoint for each.
func (f *fakeGitHub) markdownDir(src Source, files ...mdFile) {
	entries := make([]github.RawEntry, 0, len(files))
	for _, file := range files {
		repoPath := path.Join(src.Path, file.name)
		rawPath := path.Join("/raw", src.Owner, src.Name, src.Branch, repoPath)
		dl := f.srv.URL + rawPath
		entries = append(entries, github.RawEntry{
			Name:        file.name,
			Path:        repoPath,
			Type:        "file",
			HTMLURL:     "https://github.com/" + src.Owner + "/" + src.Name + "/blob/main/" + repoPath,
			DownloadURL: &dl,
		})
		f.body(rawPath, file.text)
	}
	f.listing(src, src.Path, entries...)
}

func (f *fakeGitHub) listing(src Source, dir string, entries ...github.RawEntry) {
	if entries == nil {
		entries = []github.RawEntry{}
	}
	b, err := json.Marshal(entries)
	require.NoError(f.t, err)
	f.body(contentsPath(src, dir), string(b))
}

// file registers a contents API file response with base64 content.
func (f *fakeGitHub) file(src Source, p, text string) {
	b, err := json.Marshal(map[string]any{
		"name":     path.Base(p),
		"path":     p,
		"type":     "file",
		"html_url": "https://github.com/" + src.Owner + "/" + src.Name + "/blob/main/" + p,
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(text)),
	})
	require.NoError(f.t, err)
	f.body(contentsPath(src, p), string(b))
}

func (f *fakeGitHub) client() *github.Client {
	return github.NewClient(
		github.WithAPIURL(f.srv.URL),
		github.WithRawURL(f.srv.URL+"/raw"),
		github.WithRateLimitWait(time.Millisecond, 5*time.Millisecond),
		github.WithLogger(discardLogger()),
	)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() []Option {
	return []Option{
		WithLogger(discardLogger()),
		WithClock(func() time.Time { return fixedNow }),
	}
}

func newTestCache() *cache.TTL {
	return cache.New(cache.WithClock(func() time.Time { return fixedNow }))
}

func newTestCacheWithClock(now func() time.Time) *cache.TTL {
	return cache.New(cache.WithClock(now))
}
