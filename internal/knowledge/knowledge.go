// Package knowledge indexes PDF documents fetched by URL into a vector store
// and answers similarity queries over them.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediaqa/internal/core"
)

// DefaultSearchLimit is the number of documents returned when no limit is given.
const DefaultSearchLimit = 5

// Config describes which PDFs to index and how to split them
type Config struct {
	URLs         []string
	ChunkSize    int
	ChunkOverlap int
	SearchLimit  int
	Logger       *slog.Logger
}

// LoadStats summarizes one Load call
type LoadStats struct {
	Sources   int
	Skipped   int
	Documents int
}

// KnowledgeBase is a set of PDF URLs indexed in a vector store.
type KnowledgeBase struct {
	urls     []string
	fetcher  Fetcher
	embedder core.Embedder
	store    VectorStore
	chunker  Chunker
	limit    int
	logger   *slog.Logger

	extract func([]byte) ([]Page, error)
}

// New creates a knowledge base. Nothing is fetched until Load.
func New(cfg Config, fetcher Fetcher, embedder core.Embedder, store VectorStore) (*KnowledgeBase, error) {
	if fetcher == nil || embedder == nil || store == nil {
		return nil, core.NewConfigurationError("knowledge base requires a fetcher, an embedder and a vector store", nil)
	}
	if len(cfg.URLs) == 0 {
		return nil, core.NewConfigurationError("knowledge base requires at least one URL", nil)
	}
	limit := cfg.SearchLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &KnowledgeBase{
		urls:     append([]string(nil), cfg.URLs...),
		fetcher:  fetcher,
		embedder: embedder,
		store:    store,
		chunker:  Chunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		limit:    limit,
		logger:   logger,
		extract:  Extract,
	}, nil
}

// Load indexes every URL. Sources already present are skipped unless recreate is set,
// in which case their documents are replaced.
func (kb *KnowledgeBase) Load(ctx context.Context, recreate bool) (LoadStats, error) {
	stats := LoadStats{Sources: len(kb.urls)}
	for _, url := range kb.urls {
		if recreate {
			if err := kb.store.DeleteSource(ctx, url); err != nil {
				return stats, err
			}
		} else {
			exists, err := kb.store.HasSource(ctx, url)
			if err != nil {
				return stats, err
			}
			if exists {
				kb.logger.Info("knowledge source already indexed", "source", url)
				stats.Skipped++
				continue
			}
		}

		start := time.Now()
		n, err := kb.loadSource(ctx, url)
		if err != nil {
			return stats, fmt.Errorf("load %s: %w", url, err)
		}
		stats.Documents += n
		kb.logger.Info("knowledge source indexed", "source", url, "documents", n, "duration", time.Since(start))
	}
	return stats, nil
}

func (kb *KnowledgeBase) loadSource(ctx context.Context, url string) (int, error) {
	data, err := kb.fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	pages, err := kb.extract(data)
	if err != nil {
		return 0, err
	}

	var docs []Document
	for _, page := range pages {
		for i, chunk := range kb.chunker.Split(page.Text) {
			docs = append(docs, Document{
				ID:      documentID(url, page.Number, i, chunk),
				Source:  url,
				Page:    page.Number,
				Index:   i,
				Content: chunk,
				Hash:    contentHash(chunk),
			})
		}
	}
	if len(docs) == 0 {
		return 0, core.NewUserInputError("document contains no extractable text", nil)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := kb.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	if err := kb.store.Upsert(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Search returns the documents most similar to query.
func (kb *KnowledgeBase) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.NewUserInputError("search query is empty", nil)
	}
	if limit <= 0 {
		limit = kb.limit
	}
	vectors, err := kb.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	return kb.store.Search(ctx, vectors[0], limit)
}
