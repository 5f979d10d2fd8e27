package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"mediaqa/config"
	"mediaqa/internal/agent"
	"mediaqa/internal/assistant"
	"mediaqa/internal/core"
	"mediaqa/internal/knowledge"
	"mediaqa/internal/llmclient"
	"mediaqa/internal/observability"
	"mediaqa/internal/providers/gemini"
	"mediaqa/internal/providers/groq"
	"mediaqa/internal/session"
	"mediaqa/internal/storage"
)

// AssistantOptions are the per-invocation choices of the PDF assistant.
type AssistantOptions struct {
	// User owns the run (default: config Assistant.DefaultUser)
	User string
	// Fresh starts a new run instead of continuing the newest one
	Fresh bool
}

// AssistantApp is a PDF assistant bound to a run, with the storage it owns.
type AssistantApp struct {
	Assistant *assistant.Assistant
	Run       *session.Run
	Resumed   bool
	Stats     knowledge.LoadStats

	sessions *session.Result
	vectors  *storage.Storage
}

// NewAssistant opens storage, loads the knowledge base, resolves the run and
// builds the assistant. The caller must call Close.
func NewAssistant(ctx context.Context, cfg *config.Config, opts AssistantOptions) (*AssistantApp, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if err := cfg.Validate(config.TargetPDFAssistant); err != nil {
		return nil, err
	}

	a := &AssistantApp{}
	if err := a.openStorage(ctx, cfg); err != nil {
		return nil, errors.Join(err, a.Close())
	}

	metrics := observability.New(cfg.Metrics.Enabled)
	observer, hooks := instruments(metrics)
	httpClient := newHTTPClient(cfg)

	embedder, err := buildEmbedder(ctx, cfg, httpClient)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	vectors, err := knowledge.NewPgVectorStore(ctx, a.vectors.PostgreSQLPool(), cfg.Knowledge.Collection, embedder.Dimensions())
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize vector store: %w", err), a.Close())
	}

	kb, err := knowledge.New(knowledge.Config{
		URLs:         cfg.Knowledge.URLs,
		ChunkSize:    cfg.Knowledge.ChunkSize,
		ChunkOverlap: cfg.Knowledge.ChunkOverlap,
		SearchLimit:  cfg.Knowledge.SearchLimit,
	}, knowledge.NewHTTPFetcher(knowledge.FetcherOptions{HTTPClient: httpClient, Hooks: hooks}), embedder, vectors)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.Stats, err = kb.Load(ctx, cfg.Knowledge.Recreate)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to load knowledge base: %w", err), a.Close())
	}
	slog.Info("knowledge base ready",
		"collection", cfg.Knowledge.Collection,
		"sources", a.Stats.Sources,
		"skipped", a.Stats.Skipped,
		"documents", a.Stats.Documents,
	)

	user := opts.User
	if user == "" {
		user = cfg.Assistant.DefaultUser
	}
	a.Run, a.Resumed, err = assistant.ResolveRun(ctx, a.sessions.Store, user, opts.Fresh)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.Assistant, err = assistant.New(assistant.Config{
		Model:         chatModel(cfg, httpClient, hooks),
		Store:         a.sessions.Store,
		Run:           a.Run,
		Tools:         []agent.Tool{knowledge.NewSearchTool(kb, cfg.Knowledge.SearchLimit)},
		HistoryLimit:  cfg.Assistant.HistoryLimit,
		MaxToolRounds: cfg.Assistant.MaxToolRounds,
		Observer:      observer,
	})
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

// openStorage opens the run store and the pgvector connection. When runs are
// kept in the same PostgreSQL database as the vectors, one pool serves both.
func (a *AssistantApp) openStorage(ctx context.Context, cfg *config.Config) error {
	vectorCfg := storage.Config{
		Type: storage.TypePostgreSQL,
		PostgreSQL: storage.PostgreSQLConfig{
			URL:      cfg.KnowledgeDatabaseURL(),
			MaxConns: cfg.Storage.PostgreSQL.MaxConns,
		},
	}
	vectorStorage, err := storage.New(ctx, vectorCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to the knowledge database: %w", err)
	}
	a.vectors = vectorStorage

	shared := cfg.Storage.Type == storage.TypePostgreSQL && cfg.Storage.PostgreSQL.URL == cfg.KnowledgeDatabaseURL()
	if shared {
		a.sessions, err = session.NewWithSharedStorage(ctx, vectorStorage, cfg.Assistant.Table)
	} else {
		a.sessions, err = session.New(ctx, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize run storage: %w", err)
	}
	slog.Info("run storage configured", "type", cfg.Storage.Type, "table", cfg.Assistant.Table, "shared_pool", shared)
	return nil
}

// Close releases the run store and the database connections. It is safe on a
// partially built AssistantApp.
func (a *AssistantApp) Close() error {
	var errs []error
	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sessions close: %w", err))
		}
		a.sessions = nil
	}
	if a.vectors != nil {
		if err := a.vectors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("knowledge storage close: %w", err))
		}
		a.vectors = nil
	}
	return errors.Join(errs...)
}

// chatModel returns the Groq chat model. The OpenAI key is never used for chat.
func chatModel(cfg *config.Config, httpClient *http.Client, hooks llmclient.Hooks) core.ChatModel {
	return groq.New(groq.Options{
		APIKey:     cfg.Groq.APIKey,
		BaseURL:    cfg.Groq.BaseURL,
		Model:      cfg.Groq.Model,
		HTTPClient: httpClient,
		Hooks:      hooks,
	})
}

func buildEmbedder(ctx context.Context, cfg *config.Config, httpClient *http.Client) (core.Embedder, error) {
	switch cfg.Knowledge.Embedder {
	case config.EmbedderOpenAI:
		return knowledge.NewOpenAIEmbedder(knowledge.OpenAIEmbedderOptions{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.EmbeddingModel,
			Dimensions: cfg.OpenAI.EmbeddingDimensions,
			HTTPClient: httpClient,
		})
	default:
		return gemini.New(ctx, gemini.Options{
			APIKey:              cfg.Gemini.APIKey,
			Model:               cfg.Gemini.Model,
			EmbeddingModel:      cfg.Gemini.EmbeddingModel,
			EmbeddingDimensions: cfg.Gemini.EmbeddingDimensions,
			HTTPClient:          httpClient,
		})
	}
}
