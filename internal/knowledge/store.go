package knowledge

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"mediaqa/internal/core"
)

// Document is one embedded chunk of a source PDF.
type Document struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Index   int    `json:"index"`
	Content string `json:"content"`
	// Hash is the xxhash64 of Content
	Hash      string    `json:"hash"`
	Embedding []float32 `json:"-"`
	// Distance is the cosine distance to the query, set by Search
	Distance float64 `json:"distance,omitempty"`
}

// VectorStore persists documents and searches them by embedding.
type VectorStore interface {
	Upsert(ctx context.Context, docs []Document) error
	Search(ctx context.Context, embedding []float32, limit int) ([]Document, error)
	HasSource(ctx context.Context, source string) (bool, error)
	DeleteSource(ctx context.Context, source string) error
}

func contentHash(content string) string {
	return strconv.FormatUint(xxhash.Sum64String(content), 16)
}

// documentID is stable for the same content at the same source position.
func documentID(source string, page, index int, content string) string {
	return strconv.FormatUint(xxhash.Sum64String(fmt.Sprintf("%s\x00%d\x00%d\x00%s", source, page, index, content)), 16)
}

var collectionPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PgVectorStore keeps documents in a PostgreSQL table with a pgvector column.
type PgVectorStore struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
}

// NewPgVectorStore creates the vector extension, the collection table and its indexes.
func NewPgVectorStore(ctx context.Context, pool *pgxpool.Pool, collection string, dimensions int) (*PgVectorStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	if !collectionPattern.MatchString(collection) || len(collection) > 63 {
		return nil, core.NewConfigurationError(fmt.Sprintf("invalid knowledge collection name %q", collection), nil)
	}
	if dimensions <= 0 {
		return nil, core.NewConfigurationError("embedding dimensions must be positive", nil)
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				source TEXT NOT NULL,
				page INTEGER NOT NULL,
				chunk_index INTEGER NOT NULL,
				content TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				embedding vector(%d) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`, collection, dimensions),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_source ON %s(source)", collection, collection),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding vector_cosine_ops)", collection, collection),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("prepare %s collection: %w", collection, err)
		}
	}
	return &PgVectorStore{pool: pool, table: collection, dimensions: dimensions}, nil
}

// Upsert inserts or replaces documents in one round trip.
func (s *PgVectorStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, source, page, chunk_index, content, content_hash, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			embedding = EXCLUDED.embedding
	`, s.table)

	batch := &pgx.Batch{}
	for _, d := range docs {
		if len(d.Embedding) != s.dimensions {
			return core.NewUserInputError(
				fmt.Sprintf("document %s has %d dimensions, collection expects %d", d.ID, len(d.Embedding), s.dimensions), nil)
		}
		batch.Queue(query, d.ID, d.Source, d.Page, d.Index, d.Content, d.Hash, pgvector.NewVector(d.Embedding).String())
	}

	br := s.pool.SendBatch(ctx, batch)
	for range docs {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert documents: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	return nil
}

// Search returns the documents closest to embedding by cosine distance.
func (s *PgVectorStore) Search(ctx context.Context, embedding []float32, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, source, page, chunk_index, content, content_hash, embedding <=> $1::vector AS distance
		FROM %s
		ORDER BY distance
		LIMIT $2
	`, s.table), pgvector.NewVector(embedding).String(), limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0, limit)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Source, &d.Page, &d.Index, &d.Content, &d.Hash, &d.Distance); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// HasSource reports whether any document from source is stored.
func (s *PgVectorStore) HasSource(ctx context.Context, source string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE source = $1)", s.table), source).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check source: %w", err)
	}
	return exists, nil
}

// DeleteSource removes every document from source.
func (s *PgVectorStore) DeleteSource(ctx context.Context, source string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE source = $1", s.table), source); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return nil
}

// Drop removes the collection table.
func (s *PgVectorStore) Drop(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return nil
}
