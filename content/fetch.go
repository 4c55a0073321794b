package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rootsecops/folio/frontmatter"
	"github.com/rootsecops/folio/github"
	"golang.org/x/sync/errgroup"
)

// sourceFile is one Markdown file of a domain directory, split into front
// matter and body.
type sourceFile struct {
	entry  github.RawEntry
	matter frontmatter.Matter
	body   string
}

// fetchMarkdown lists src and downloads every Markdown file in it, at most
// fanout at a time. Results keep listing order. Any failed download fails
// the whole listing so a partial result is never cached.
func fetchMarkdown(ctx context.Context, client Upstream, src Source, fanout int, logger *slog.Logger) ([]sourceFile, error) {
	raw, err := client.ListDirectory(ctx, src.Repo, src.Path)
	if err != nil {
		return nil, err
	}
	files := markdownFiles(raw)
	if len(files) == 0 {
		logger.Warn("no markdown files found", "repo", src.Repo.String(), "path", src.Path)
		return nil, nil
	}

	out := make([]sourceFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanout)
	for i, f := range files {
		g.Go(func() error {
			text, err := client.GetFileRaw(gctx, *f.DownloadURL)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", f.Path, err)
			}
			out[i] = splitFile(f, text, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func splitFile(entry github.RawEntry, text string, logger *slog.Logger) sourceFile {
	m, body, err := frontmatter.Parse(text)
	if err != nil {
		logger.Warn("ignoring front matter", "path", entry.Path, "error", err)
	}
	return sourceFile{entry: entry, matter: m, body: body}
}

// decodeMeta decodes front matter into v, warning about unknown keys and
// fields left at their defaults.
func decodeMeta(logger *slog.Logger, path string, m frontmatter.Matter, v any) {
	unknown, err := m.Decode(v)
	if len(unknown) > 0 {
		logger.Warn("unknown front matter keys", "path", path, "keys", unknown)
	}
	if err != nil {
		logger.Warn("front matter fields fell back to defaults", "path", path, "error", err)
	}
}

// lastWins drops earlier items whose slug repeats, keeping the position of the
// first occurrence and the value of the last.
func lastWins[T any](items []T, slug func(T) string, logger *slog.Logger) []T {
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		s := slug(it)
		if i, ok := index[s]; ok {
			logger.Warn("duplicate slug, keeping the later file", "slug", s)
			out[i] = it
			continue
		}
		index[s] = len(out)
		out = append(out, it)
	}
	return out
}
