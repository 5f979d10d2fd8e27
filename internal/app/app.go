// Package app wires configuration into the video summarizer server and the
// PDF assistant, and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mediaqa/config"
	"mediaqa/internal/agent"
	"mediaqa/internal/cache"
	"mediaqa/internal/httpclient"
	"mediaqa/internal/llmclient"
	"mediaqa/internal/observability"
	"mediaqa/internal/providers/gemini"
	"mediaqa/internal/providers/groq"
	"mediaqa/internal/server"
	"mediaqa/internal/video"
	"mediaqa/internal/websearch"
)

// App represents a video summarizer server with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config     *config.Config
	target     config.Target
	summarizer video.Summarizer
	cache      cache.Cache
	server     *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig is the loaded application configuration
	AppConfig *config.Config

	// Target selects the summarizer: config.TargetGeminiVideo or config.TargetGroqVideo
	Target config.Target
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	appCfg := cfg.AppConfig
	if cfg.Target != config.TargetGeminiVideo && cfg.Target != config.TargetGroqVideo {
		return nil, fmt.Errorf("target %q is not a video summarizer", cfg.Target)
	}
	if err := appCfg.Validate(cfg.Target); err != nil {
		return nil, err
	}

	bodySizeLimit, err := config.ParseBodySizeLimit(appCfg.Server.BodySizeLimit)
	if err != nil {
		return nil, err
	}

	app := &App{
		config: appCfg,
		target: cfg.Target,
	}

	metrics := observability.New(appCfg.Metrics.Enabled)
	observer, hooks := instruments(metrics)
	httpClient := newHTTPClient(appCfg)

	searchCache, err := cache.New(buildCacheConfig(appCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search cache: %w", err)
	}
	app.cache = searchCache

	search := websearch.New(websearch.Options{
		BaseURL:    appCfg.Search.BaseURL,
		HTTPClient: httpClient,
		Cache:      searchCache,
		Hooks:      hooks,
	})
	tools := []agent.Tool{websearch.NewTool(search, appCfg.Search.MaxResults)}

	app.summarizer, err = buildSummarizer(ctx, appCfg, cfg.Target, httpClient, hooks, observer, tools)
	if err != nil {
		return nil, errors.Join(err, app.closeCache())
	}

	app.logStartupInfo()

	app.server = server.New(app.summarizer, &server.Config{
		MasterKey:       appCfg.Server.MasterKey,
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		BodySizeLimit:   bodySizeLimit,
		UploadDir:       appCfg.Server.UploadDir,
	})

	return app, nil
}

func buildSummarizer(
	ctx context.Context,
	cfg *config.Config,
	target config.Target,
	httpClient *http.Client,
	hooks llmclient.Hooks,
	observer agent.Observer,
	tools []agent.Tool,
) (video.Summarizer, error) {
	switch target {
	case config.TargetGeminiVideo:
		provider, err := gemini.New(ctx, gemini.Options{
			APIKey:     cfg.Gemini.APIKey,
			Model:      cfg.Gemini.Model,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		runner, err := agent.New(agent.Config{
			Name:     video.GeminiVariant.AgentName,
			Model:    provider,
			Tools:    tools,
			Markdown: true,
			Observer: observer,
		})
		if err != nil {
			return nil, err
		}
		return video.NewGeminiSummarizer(provider, runner, gemini.PollConfig{
			Initial: cfg.Video.PollInterval,
			Max:     cfg.Video.PollMaxInterval,
			Timeout: cfg.Video.ProcessingTimeout,
		}), nil

	default:
		provider := groq.New(groq.Options{
			APIKey:     cfg.Groq.APIKey,
			BaseURL:    cfg.Groq.BaseURL,
			Model:      cfg.Groq.Model,
			HTTPClient: httpClient,
			Hooks:      hooks,
		})
		runner, err := agent.New(agent.Config{
			Name:     video.GroqVariant.AgentName,
			Model:    provider,
			Tools:    tools,
			Markdown: true,
			Observer: observer,
		})
		if err != nil {
			return nil, err
		}
		return video.NewGroqSummarizer(runner), nil
	}
}

// Summarizer returns the summarizer behind the server.
func (a *App) Summarizer() video.Summarizer {
	return a.summarizer
}

// Handler returns the HTTP handler of the server.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr, "summarizer", a.summarizer.Variant().Key)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// the HTTP server first, honoring ctx, then the search cache.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if err := a.closeCache(); err != nil {
		slog.Error("cache close error", "error", err)
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	slog.Info("application shutdown complete")
	return nil
}

func (a *App) closeCache() error {
	if a.cache == nil {
		return nil
	}
	if err := a.cache.Close(); err != nil {
		return fmt.Errorf("cache close: %w", err)
	}
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Server.MasterKey == "" {
		slog.Warn("MASTER_KEY not set - the /v1 API accepts unauthenticated requests")
	} else {
		slog.Info("authentication enabled", "mode", "master_key", "scope", "/v1")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("search cache configured", "type", cfg.Cache.Type, "ttl_seconds", cfg.Cache.TTL)
	slog.Info("summarizer configured",
		"target", a.target,
		"processing_timeout", cfg.Video.ProcessingTimeout,
	)
}

// instruments splits metrics into the agent observer and the HTTP hooks.
// Both are nil when metrics are disabled.
func instruments(m *observability.Metrics) (agent.Observer, llmclient.Hooks) {
	if m == nil {
		return nil, nil
	}
	return m, m
}

func newHTTPClient(cfg *config.Config) *http.Client {
	clientCfg := httpclient.DefaultConfig()
	if cfg.HTTP.Timeout > 0 {
		clientCfg.Timeout = time.Duration(cfg.HTTP.Timeout) * time.Second
	}
	if cfg.HTTP.ResponseHeaderTimeout > 0 {
		clientCfg.ResponseHeaderTimeout = time.Duration(cfg.HTTP.ResponseHeaderTimeout) * time.Second
	}
	return httpclient.NewHTTPClient(&clientCfg)
}

func buildCacheConfig(cfg *config.Config) cache.Config {
	return cache.Config{
		Type: cfg.Cache.Type,
		TTL:  time.Duration(cfg.Cache.TTL) * time.Second,
		Local: cache.LocalConfig{
			Dir: cfg.Cache.Dir,
		},
		Redis: cache.RedisConfig{
			URL:    cfg.Cache.Redis.URL,
			Prefix: cfg.Cache.Redis.Prefix,
		},
	}
}
