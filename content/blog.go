package content

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/rootsecops/folio/cache"
	"github.com/rootsecops/folio/download"
	"github.com/rootsecops/folio/frontmatter"
)

// BlogCacheKey holds the full post list.
const BlogCacheKey = "all_blog_posts"

// Post is a blog post.
type Post struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Date    string   `json:"date"`
	Excerpt string   `json:"excerpt"`
	Tags    []string `json:"tags"`
	Content string   `json:"content"`
	HTML    string   `json:"html,omitempty"`

	published time.Time
}

// PostMeta is the front matter a post may declare.
type PostMeta struct {
	Title   string           `yaml:"title"`
	Date    string           `yaml:"date"`
	Excerpt string           `yaml:"excerpt"`
	Tags    frontmatter.Tags `yaml:"tags"`
}

// Blog serves posts from a directory of Markdown files.
type Blog struct {
	client Upstream
	cache  cache.Cache
	src    Source
	opts   options
	lists  *download.Downloader[[]Post]
}

// NewBlog creates the blog domain.
func NewBlog(client Upstream, c cache.Cache, src Source, opts ...Option) *Blog {
	o := buildOptions("blogs", opts)
	return &Blog{
		client: client,
		cache:  c,
		src:    src,
		opts:   o,
		lists:  download.New[[]Post](download.WithLogger(o.logger)),
	}
}

// ListAll returns every post, newest first. It returns an empty list when the
// posts cannot be loaded.
func (b *Blog) ListAll(ctx context.Context) []Post {
	posts, err := cached(ctx, b.cache, b.lists, "blogs", BlogCacheKey, b.load)
	if err != nil {
		b.opts.logger.Error("loading blog posts", "error", err)
		return []Post{}
	}
	return posts
}

// GetBySlug returns the post whose file name is slug.md.
func (b *Blog) GetBySlug(ctx context.Context, slug string) (*Post, error) {
	for _, p := range b.ListAll(ctx) {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (b *Blog) load(ctx context.Context) ([]Post, error) {
	files, err := fetchMarkdown(ctx, b.client, b.src, b.opts.fanout, b.opts.logger)
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(files))
	for _, f := range files {
		posts = append(posts, b.toPost(f))
	}
	posts = lastWins(posts, func(p Post) string { return p.Slug }, b.opts.logger)

	slices.SortStableFunc(posts, func(x, y Post) int {
		return cmp.Compare(y.published.UnixNano(), x.published.UnixNano())
	})
	return posts, nil
}

func (b *Blog) toPost(f sourceFile) Post {
	var meta PostMeta
	decodeMeta(b.opts.logger, f.entry.Path, f.matter, &meta)

	p := Post{
		Slug:    slugOf(f.entry.Name),
		Title:   meta.Title,
		Excerpt: meta.Excerpt,
		Tags:    []string(meta.Tags),
		Content: f.body,
		HTML:    b.opts.renderHTML(f.entry.Path, f.body),
	}
	if p.Title == "" {
		p.Title = "Untitled Post"
	}
	if p.Excerpt == "" {
		p.Excerpt = frontmatter.Excerpt(f.body)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Date, p.published = b.opts.resolveDate(f.entry.Path, meta.Date)
	return p
}
