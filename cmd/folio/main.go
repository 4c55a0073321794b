// Command folio serves portfolio content (blog posts, projects, coursework and
// class notes) read from GitHub repositories.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	"github.com/rootsecops/folio/cache"
	"github.com/rootsecops/folio/config"
	"github.com/rootsecops/folio/content"
	"github.com/rootsecops/folio/github"
	"github.com/rootsecops/folio/render"
	"github.com/rootsecops/folio/server"
	"github.com/rootsecops/folio/telemetry"
)

var version = "dev"

type cli struct {
	Address string `help:"Address to listen on." default:":8080" env:"FOLIO_ADDRESS"`
	Sources string `help:"YAML file naming the repository of each content domain." type:"path" env:"FOLIO_SOURCES"`

	CacheTTL           time.Duration `help:"How long fetched content is served from memory." default:"5m" name:"cache-ttl"`
	CacheSweepInterval time.Duration `help:"How often expired entries are dropped (0 to disable)." default:"10m" name:"cache-sweep-interval"`

	GithubToken      string        `help:"GitHub token used for API and raw content requests." env:"GITHUB_TOKEN" name:"github-token"`
	GithubAPIURL     string        `help:"GitHub REST API base URL." default:"${github_api}" name:"github-api-url"`
	GithubRawURL     string        `help:"GitHub raw content base URL." default:"${github_raw}" name:"github-raw-url"`
	RateLimitRetries int           `help:"Retries after a rate limited response." default:"3"`
	RateLimitMaxWait time.Duration `help:"Longest wait between rate limit retries." default:"30s"`
	Fanout           int           `help:"Concurrent file fetches per listing." default:"8"`

	AdminToken string `help:"Bearer token for the /admin endpoints (disabled when empty)." env:"FOLIO_ADMIN_TOKEN"`

	LogLevel  string `help:"Log level." default:"info" enum:"debug,info,warn,error"`
	LogFormat string `help:"Log format." default:"text" enum:"text,json"`

	OTLPEndpoint string `help:"OTLP gRPC endpoint for metrics (disabled when empty)." name:"otlp-endpoint"`
	Prometheus   bool   `help:"Serve Prometheus metrics on /metrics." default:"true" negatable:""`
}

func main() {
	var c cli
	kong.Parse(&c,
		kong.Name("folio"),
		kong.Description("Serve portfolio content from GitHub repositories."),
		kong.UsageOnError(),
		kong.Vars{
			"github_api": github.DefaultAPIURL,
			"github_raw": github.DefaultRawURL,
		},
	)

	if err := run(c); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c cli) error {
	logger, err := newLogger(c.LogLevel, c.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricsConfig{
		ServiceName:      "folio",
		ServiceVersion:   version,
		OTLPEndpoint:     c.OTLPEndpoint,
		EnablePrometheus: c.Prometheus,
	})
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}()

	sources, err := config.LoadSources(c.Sources)
	if err != nil {
		return err
	}

	store := cache.New(cache.WithTTL(c.CacheTTL))

	client := github.NewClient(
		github.WithAPIURL(c.GithubAPIURL),
		github.WithRawURL(c.GithubRawURL),
		github.WithToken(c.GithubToken),
		github.WithRateLimitRetries(c.RateLimitRetries),
		github.WithRateLimitWait(time.Second, c.RateLimitMaxWait),
		github.WithUserAgent("folio/"+version),
		github.WithLogger(logger),
	)

	opts := []content.Option{
		content.WithLogger(logger),
		content.WithFanout(c.Fanout),
		content.WithMarkdown(render.New()),
	}

	domains := server.Domains{
		Blog:     content.NewBlog(client, store, sources.Blogs, opts...),
		Projects: content.NewProjects(client, store, sources.Projects, opts...),
		Programs: content.NewBrowser("programs", client, store, sources.Programs, opts...),
		Codes:    content.NewBrowser("codes", client, store, sources.Codes, opts...),
		Notes:    content.NewBrowser("notes", client, store, sources.Notes, opts...),
	}

	var serverOpts []server.Option
	if c.CacheSweepInterval > 0 {
		serverOpts = append(serverOpts, server.WithJanitor(cache.NewJanitor(store, c.CacheSweepInterval, logger)))
	}

	srv := server.New(server.Config{
		Address:    c.Address,
		AdminToken: c.AdminToken,
		Logger:     logger,
	}, domains, store, serverOpts...)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("server started",
		"address", srv.Address(),
		"version", version,
		"cache_ttl", c.CacheTTL,
		"github_auth", c.GithubToken != "",
		"admin", c.AdminToken != "",
	)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	return slog.New(handler), nil
}
