// Package github reads repository contents from the GitHub REST API and the
// raw content host.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rootsecops/folio/telemetry"
)

const (
	// DefaultAPIURL is the GitHub REST API root.
	DefaultAPIURL = "https://api.github.com"

	// DefaultRawURL serves file bodies by owner/repo/branch/path.
	DefaultRawURL = "https://raw.githubusercontent.com"

	// DefaultWebURL is used to build blob links for search results.
	DefaultWebURL = "https://github.com"

	// DefaultTimeout is the default timeout for a single request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is how many times a rate-limited request is retried.
	DefaultMaxRetries = 3

	// DefaultMaxWait caps a single rate-limit wait.
	DefaultMaxWait = 30 * time.Second

	defaultBaseWait = time.Second
	apiVersion      = "2022-11-28"
	acceptJSON      = "application/vnd.github.v3+json"
	acceptRaw       = "application/vnd.github.v3.raw"
)

// Client fetches repository contents. It is safe for concurrent use.
type Client struct {
	http       *resty.Client
	transport  http.RoundTripper
	apiURL     string
	rawURL     string
	webURL     string
	authHosts  []string
	token      string
	timeout    time.Duration
	maxRetries int
	baseWait   time.Duration
	maxWait    time.Duration
	userAgent  string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL sets the REST API root.
func WithAPIURL(u string) Option {
	return func(c *Client) {
		c.apiURL = strings.TrimSuffix(u, "/")
	}
}

// WithRawURL sets the raw content host.
func WithRawURL(u string) Option {
	return func(c *Client) {
		c.rawURL = strings.TrimSuffix(u, "/")
	}
}

// WithWebURL sets the web host used for blob links.
func WithWebURL(u string) Option {
	return func(c *Client) {
		c.webURL = strings.TrimSuffix(u, "/")
	}
}

// WithToken sets the access token. It is only sent to the API and raw hosts.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTransport sets the base transport under the metrics wrapper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimitRetries sets how many times a rate-limited request is retried
// before giving up with ErrRateLimited. Zero disables retries.
func WithRateLimitRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRateLimitWait sets the base and maximum wait between rate-limit retries.
func WithRateLimitWait(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseWait = base
		}
		if max > 0 {
			c.maxWait = max
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the clock used to interpret X-RateLimit-Reset.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a GitHub client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		apiURL:     DefaultAPIURL,
		rawURL:     DefaultRawURL,
		webURL:     DefaultWebURL,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		baseWait:   defaultBaseWait,
		maxWait:    DefaultMaxWait,
		userAgent:  "folio",
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "github")

	for _, u := range []string{c.apiURL, c.rawURL} {
		if parsed, err := url.Parse(u); err == nil && parsed.Host != "" {
			c.authHosts = append(c.authHosts, parsed.Host)
		}
	}

	c.http = resty.New().
		SetTransport(telemetry.NewInstrumentedTransport(c.transport, "github")).
		SetTimeout(c.timeout).
		SetLogger(restyLogger{c.logger}).
		SetHeader("User-Agent", c.userAgent).
		SetHeader("X-GitHub-Api-Version", apiVersion)

	return c
}

// shouldAttachAuth reports whether the token may be sent to targetURL.
func (c *Client) shouldAttachAuth(targetURL string) bool {
	if c.token == "" {
		return false
	}
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	for _, host := range c.authHosts {
		if strings.EqualFold(parsed.Host, host) {
			return true
		}
	}
	return false
}

// ListDirectory lists the immediate children of path. A missing path and a
// path naming a file both yield an empty listing.
func (c *Client) ListDirectory(ctx context.Context, repo Repo, path string) ([]RawEntry, error) {
	body, err := c.get(ctx, c.contentsURL(repo, path), acceptJSON)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s in %s: %w", path, repo, err)
	}
	entries, err := DecodeListing(body)
	if err != nil {
		return nil, fmt.Errorf("listing %s in %s: %w", path, repo, err)
	}
	return entries, nil
}

// GetFileRaw fetches a file body from a download URL.
func (c *Client) GetFileRaw(ctx context.Context, downloadURL string) (string, error) {
	body, err := c.get(ctx, downloadURL, acceptRaw)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetFile fetches a single file through the contents API. It returns
// ErrNotFound when the path does not exist or names a directory.
func (c *Client) GetFile(ctx context.Context, repo Repo, path string) (*FileContent, error) {
	body, err := c.get(ctx, c.contentsURL(repo, path), acceptJSON)
	if err != nil {
		return nil, err
	}
	if isJSONArray(body) {
		return nil, ErrNotFound
	}
	var file FileContent
	if err := json.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if file.Type != "file" {
		return nil, ErrNotFound
	}
	return &file, nil
}

// GetBranch resolves a branch to its head commit.
func (c *Client) GetBranch(ctx context.Context, repo Repo) (*Branch, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/branches/%s", c.apiURL,
		url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(repo.Branch))
	var branch Branch
	if err := c.getJSON(ctx, u, &branch); err != nil {
		return nil, err
	}
	return &branch, nil
}

// GetTree returns the full recursive tree of the branch head.
func (c *Client) GetTree(ctx context.Context, repo Repo) (*Tree, error) {
	branch, err := c.GetBranch(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("resolving branch %s: %w", repo, err)
	}
	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", c.apiURL,
		url.PathEscape(repo.Owner), url.PathEscape(repo.Name), url.PathEscape(branch.Commit.SHA))
	var tree Tree
	if err := c.getJSON(ctx, u, &tree); err != nil {
		return nil, fmt.Errorf("fetching tree %s: %w", repo, err)
	}
	return &tree, nil
}

// GetReadme fetches the repository README as raw Markdown.
func (c *Client) GetReadme(ctx context.Context, owner, name string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/readme", c.apiURL, url.PathEscape(owner), url.PathEscape(name))
	body, err := c.get(ctx, u, acceptRaw)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	u := fmt.Sprintf("%s/repos/%s/%s", c.apiURL, url.PathEscape(owner), url.PathEscape(name))
	var r Repository
	if err := c.getJSON(ctx, u, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// BlobURL returns the web link for a file on a branch.
func (c *Client) BlobURL(repo Repo, path string) string {
	return fmt.Sprintf("%s/%s/%s/blob/%s/%s", c.webURL, repo.Owner, repo.Name, repo.Branch, escapePath(path))
}

// RawFileURL returns the raw content link for a file on a branch.
func (c *Client) RawFileURL(repo Repo, path string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", c.rawURL, repo.Owner, repo.Name, repo.Branch, escapePath(path))
}

func (c *Client) contentsURL(repo Repo, path string) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiURL,
		url.PathEscape(repo.Owner), url.PathEscape(repo.Name), escapePath(strings.Trim(path, "/")))
	if repo.Branch != "" {
		u += "?ref=" + url.QueryEscape(repo.Branch)
	}
	return u
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	body, err := c.get(ctx, u, acceptJSON)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", u, err)
	}
	return nil
}

// get performs a GET, retrying rate-limited responses with bounded backoff.
func (c *Client) get(ctx context.Context, u, accept string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req := c.http.R().
			SetContext(ctx).
			SetHeader("Accept", accept).
			SetHeader("Cache-Control", "no-cache")
		if c.shouldAttachAuth(u) {
			req.SetHeader("Authorization", "token "+c.token)
		}

		resp, err := req.Get(u)
		if err != nil {
			return nil, fmt.Errorf("performing request: %w", err)
		}

		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return nil, ErrNotFound

		case isRateLimited(resp):
			wait := c.retryDelay(resp, attempt)
			if attempt >= c.maxRetries {
				c.logger.Warn("rate limit retries exhausted",
					"url", u,
					"attempts", attempt+1,
					"retry_after", wait)
				return nil, &RateLimitError{URL: u, Attempts: attempt + 1, RetryAfter: wait}
			}
			c.logger.Warn("rate limited, backing off",
				"url", u,
				"status", resp.StatusCode(),
				"attempt", attempt+1,
				"wait", wait)
			telemetry.RecordRateLimitRetry(ctx, attempt+1)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}

		case !resp.IsSuccess():
			c.logger.Error("github request failed",
				"status", resp.StatusCode(),
				"url", u,
				"body", resp.String())
			return nil, &RemoteFetchError{StatusCode: resp.StatusCode(), URL: u, Body: resp.String()}

		default:
			return resp.Body(), nil
		}
	}
}

func isRateLimited(resp *resty.Response) bool {
	switch resp.StatusCode() {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		h := resp.Header()
		if h.Get("X-RateLimit-Remaining") == "0" || h.Get("Retry-After") != "" {
			return true
		}
		return strings.Contains(strings.ToLower(resp.String()), "rate limit")
	default:
		return false
	}
}

// retryDelay prefers Retry-After, then X-RateLimit-Reset, then exponential
// backoff from the base wait. The result never exceeds maxWait.
func (c *Client) retryDelay(resp *resty.Response, attempt int) time.Duration {
	var d time.Duration
	h := resp.Header()
	if s := h.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			d = time.Duration(secs) * time.Second
		}
	} else if s := h.Get("X-RateLimit-Reset"); s != "" && h.Get("X-RateLimit-Remaining") == "0" {
		if reset, err := strconv.ParseInt(s, 10, 64); err == nil {
			d = time.Unix(reset, 0).Sub(c.now())
		}
	}
	if d <= 0 && attempt < 16 {
		d = c.baseWait << attempt
	}
	if d <= 0 {
		d = c.maxWait
	}
	if d > c.maxWait {
		d = c.maxWait
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// restyLogger routes resty's internal messages through slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
