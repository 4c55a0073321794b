package content

import (
	"context"
	"errors"
	"strings"

	"github.com/rootsecops/folio"
	"github.com/rootsecops/folio/cache"
	"github.com/rootsecops/folio/download"
	"github.com/rootsecops/folio/github"
)

// Browser exposes a repository as a browsable tree: directory listings,
// full-tree search and single documents. Programs, Codes and Notes are all
// Browsers over different sources.
type Browser struct {
	domain  string
	client  Upstream
	cache   cache.Cache
	src     Source
	opts    options
	entries *download.Downloader[[]folio.Entry]
	docs    *download.Downloader[*folio.Document]
}

// NewBrowser creates a browsing domain named domain.
func NewBrowser(domain string, client Upstream, c cache.Cache, src Source, opts ...Option) *Browser {
	o := buildOptions(domain, opts)
	return &Browser{
		domain:  domain,
		client:  client,
		cache:   c,
		src:     src,
		opts:    o,
		entries: download.New[[]folio.Entry](download.WithLogger(o.logger)),
		docs:    download.New[*folio.Document](download.WithLogger(o.logger)),
	}
}

// ListDirectory lists dir, directories first. dir may carry the site prefix.
func (b *Browser) ListDirectory(ctx context.Context, dir string) []folio.Entry {
	rel := b.relative(dir)
	key := b.domain + ":dir:" + rel
	entries, err := cached(ctx, b.cache, b.entries, b.domain, key, func(ctx context.Context) ([]folio.Entry, error) {
		raw, err := b.client.ListDirectory(ctx, b.src.Repo, b.repoPath(rel))
		if err != nil {
			return nil, err
		}
		return github.Normalize(raw, b.src.Prefix), nil
	})
	if err != nil {
		b.opts.logger.Error("listing directory", "path", rel, "error", err)
		return []folio.Entry{}
	}
	return entries
}

// Search returns every path in the repository containing query, ignoring
// case. A blank query returns nothing without contacting GitHub.
func (b *Browser) Search(ctx context.Context, query string) []folio.Entry {
	if strings.TrimSpace(query) == "" {
		return []folio.Entry{}
	}
	q := strings.ToLower(query)
	key := b.domain + ":search:" + q
	hits, err := cached(ctx, b.cache, b.entries, b.domain, key, func(ctx context.Context) ([]folio.Entry, error) {
		hits, err := b.client.Search(ctx, b.src.Repo, b.src.Prefix, q)
		if err != nil {
			return nil, err
		}
		if hits == nil {
			hits = []folio.Entry{}
		}
		return hits, nil
	})
	if err != nil {
		b.opts.logger.Error("searching", "query", q, "error", err)
		return []folio.Entry{}
	}
	return hits
}

// GetContent fetches and parses a single file. file may carry the site
// prefix. It returns ErrNotFound for missing files and on any failure.
func (b *Browser) GetContent(ctx context.Context, file string) (*folio.Document, error) {
	rel := b.relative(file)
	if rel == "" {
		return nil, ErrNotFound
	}
	key := b.domain + ":file:" + rel
	doc, err := cached(ctx, b.cache, b.docs, b.domain, key, func(ctx context.Context) (*folio.Document, error) {
		return b.loadDocument(ctx, rel)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.opts.logger.Error("loading content", "path", rel, "error", err)
		}
		return nil, ErrNotFound
	}
	return doc, nil
}

func (b *Browser) loadDocument(ctx context.Context, rel string) (*folio.Document, error) {
	file, err := b.client.GetFile(ctx, b.src.Repo, b.repoPath(rel))
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			b.opts.logger.Warn("content not found", "path", rel)
			return nil, ErrNotFound
		}
		return nil, err
	}
	text, err := file.Text()
	if err != nil {
		return nil, err
	}
	sf := splitFile(file.RawEntry, text, b.opts.logger)
	return &folio.Document{
		Name:        file.Name,
		ViewURL:     file.HTMLURL,
		Body:        sf.body,
		FrontMatter: sf.matter,
		HTML:        b.opts.renderHTML(rel, sf.body),
	}, nil
}

// relative strips the site prefix and surrounding slashes from p.
func (b *Browser) relative(p string) string {
	p = strings.Trim(p, "/")
	if prefix := strings.Trim(b.src.Prefix, "/"); prefix != "" {
		if p == prefix {
			return ""
		}
		p = strings.TrimPrefix(p, prefix+"/")
	}
	return p
}

// repoPath maps a repository-relative path to the one to request. Entry
// paths are already repository-relative, so the source directory only
// applies to the root.
func (b *Browser) repoPath(rel string) string {
	if rel == "" {
		return strings.Trim(b.src.Path, "/")
	}
	return rel
}
