package content

import (
	"cmp"
	"context"
	"errors"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rootsecops/folio/cache"
	"github.com/rootsecops/folio/download"
	"github.com/rootsecops/folio/frontmatter"
	"github.com/rootsecops/folio/github"
	"github.com/rootsecops/folio/render"
)

// ProjectsCacheKey holds the full project list. Detailed projects are cached
// under ProjectsCacheKey + ":" + slug.
const ProjectsCacheKey = "all_projects"

// DefaultImageHint describes a project image when the front matter does not.
const DefaultImageHint = "project image"

// Project is a portfolio project.
type Project struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	ImageHint   string   `json:"imageHint"`
	Tags        []string `json:"tags"`
	GithubLink  string   `json:"githubLink,omitempty"`
	DemoLink    string   `json:"demoLink,omitempty"`
	Date        string   `json:"date"`
	Content     string   `json:"content"`
	HTML        string   `json:"html,omitempty"`
	Stars       *int     `json:"stars,omitempty"`
	Forks       *int     `json:"forks,omitempty"`
	LastUpdated string   `json:"lastUpdated,omitempty"`

	published time.Time
}

// ProjectMeta is the front matter a project may declare.
type ProjectMeta struct {
	Title       string           `yaml:"title"`
	Description string           `yaml:"description"`
	Image       string           `yaml:"image"`
	ImageHint   string           `yaml:"imageHint"`
	Tags        frontmatter.Tags `yaml:"tags"`
	GithubLink  string           `yaml:"githubLink"`
	DemoLink    string           `yaml:"demoLink"`
	Date        string           `yaml:"date"`
}

// Projects serves project write-ups, enriched on the detail path with the
// linked repository's README and statistics.
type Projects struct {
	client  Upstream
	cache   cache.Cache
	src     Source
	opts    options
	lists   *download.Downloader[[]Project]
	details *download.Downloader[*Project]
}

// NewProjects creates the projects domain.
func NewProjects(client Upstream, c cache.Cache, src Source, opts ...Option) *Projects {
	o := buildOptions("projects", opts)
	return &Projects{
		client:  client,
		cache:   c,
		src:     src,
		opts:    o,
		lists:   download.New[[]Project](download.WithLogger(o.logger)),
		details: download.New[*Project](download.WithLogger(o.logger)),
	}
}

// ListAll returns every project, newest first.
func (p *Projects) ListAll(ctx context.Context) []Project {
	projects, err := cached(ctx, p.cache, p.lists, "projects", ProjectsCacheKey, p.load)
	if err != nil {
		p.opts.logger.Error("loading projects", "error", err)
		return []Project{}
	}
	return projects
}

// GetBySlug returns the project for slug with its repository README as
// content when one is linked and available.
func (p *Projects) GetBySlug(ctx context.Context, slug string) (*Project, error) {
	key := ProjectsCacheKey + ":" + slug
	proj, err := cached(ctx, p.cache, p.details, "projects", key, func(ctx context.Context) (*Project, error) {
		return p.loadOne(ctx, slug)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.opts.logger.Error("loading project", "slug", slug, "error", err)
		}
		return nil, ErrNotFound
	}
	return proj, nil
}

func (p *Projects) load(ctx context.Context) ([]Project, error) {
	files, err := fetchMarkdown(ctx, p.client, p.src, p.opts.fanout, p.opts.logger)
	if err != nil {
		return nil, err
	}

	projects := make([]Project, 0, len(files))
	for _, f := range files {
		projects = append(projects, p.toProject(f))
	}
	projects = lastWins(projects, func(pr Project) string { return pr.Slug }, p.opts.logger)

	slices.SortStableFunc(projects, func(x, y Project) int {
		return cmp.Compare(y.published.UnixNano(), x.published.UnixNano())
	})
	return projects, nil
}

// loadOne finds slug in the listing, falling back to fetching slug.md
// directly, then enriches it from the linked repository.
func (p *Projects) loadOne(ctx context.Context, slug string) (*Project, error) {
	var proj *Project
	for _, pr := range p.ListAll(ctx) {
		if pr.Slug == slug {
			proj = &pr
			break
		}
	}
	if proj == nil {
		direct, err := p.fetchDirect(ctx, slug)
		if err != nil {
			return nil, err
		}
		proj = direct
	}

	p.enrich(ctx, proj)
	return proj, nil
}

func (p *Projects) fetchDirect(ctx context.Context, slug string) (*Project, error) {
	if slug == "" || strings.ContainsAny(slug, "/\\") {
		return nil, ErrNotFound
	}
	file, err := p.client.GetFile(ctx, p.src.Repo, path.Join(p.src.Path, slug+".md"))
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	text, err := file.Text()
	if err != nil {
		return nil, err
	}
	pr := p.toProject(splitFile(file.RawEntry, text, p.opts.logger))
	return &pr, nil
}

// enrich replaces the intro with the linked README and adds repository
// statistics. Failures leave the project as it was.
func (p *Projects) enrich(ctx context.Context, proj *Project) {
	owner, name, ok := parseRepoLink(proj.GithubLink)
	if !ok {
		return
	}
	logger := p.opts.logger.With("slug", proj.Slug, "repo", owner+"/"+name)

	if repo, err := p.client.GetRepository(ctx, owner, name); err != nil {
		logger.Warn("repository statistics unavailable", "error", err)
	} else {
		proj.Stars = &repo.StargazersCount
		proj.Forks = &repo.ForksCount
		if !repo.PushedAt.IsZero() {
			proj.LastUpdated = repo.PushedAt.UTC().Format(isoLayout)
		}
	}

	readme, err := p.client.GetReadme(ctx, owner, name)
	if err != nil || strings.TrimSpace(readme) == "" {
		logger.Warn("readme unavailable, keeping intro text", "error", err)
		return
	}
	proj.Content = readme
	proj.HTML = p.opts.renderHTML(proj.Slug+" README", readme)

	if proj.Image == "" {
		if src := render.FirstImage(proj.HTML); src != "" {
			proj.Image = p.absoluteImage(owner, name, src)
		}
	}
}

// absoluteImage resolves a README-relative image against the repository's
// default branch.
func (p *Projects) absoluteImage(owner, name, src string) string {
	if u, err := url.Parse(src); err == nil && u.IsAbs() {
		return src
	}
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return p.client.RawFileURL(github.Repo{Owner: owner, Name: name, Branch: "HEAD"}, strings.TrimPrefix(src, "./"))
}

func (p *Projects) toProject(f sourceFile) Project {
	var meta ProjectMeta
	decodeMeta(p.opts.logger, f.entry.Path, f.matter, &meta)

	pr := Project{
		Slug:        slugOf(f.entry.Name),
		Title:       meta.Title,
		Description: meta.Description,
		Image:       meta.Image,
		ImageHint:   meta.ImageHint,
		Tags:        []string(meta.Tags),
		GithubLink:  meta.GithubLink,
		DemoLink:    meta.DemoLink,
		Content:     f.body,
		HTML:        p.opts.renderHTML(f.entry.Path, f.body),
	}
	if pr.Title == "" {
		pr.Title = "Untitled Project"
	}
	if pr.ImageHint == "" {
		pr.ImageHint = DefaultImageHint
	}
	if pr.Tags == nil {
		pr.Tags = []string{}
	}
	pr.Date, pr.published = p.opts.resolveDate(f.entry.Path, meta.Date)
	return pr
}

// parseRepoLink extracts owner and repository from a github.com URL.
func parseRepoLink(link string) (owner, name string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != "github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
