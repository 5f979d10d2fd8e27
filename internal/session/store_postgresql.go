package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediaqa/internal/core"
)

// PostgreSQLStore stores runs in PostgreSQL with messages as a JSONB array.
type PostgreSQLStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgreSQLStore creates the runs table and indexes if needed.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool, table string) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	table, err := validateTableName(table)
	if err != nil {
		return nil, err
	}

	_, err = pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			messages JSONB NOT NULL DEFAULT '[]'::jsonb
		)
	`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", table, err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_user_created ON %s(user_id, created_at DESC)", table, table)); err != nil {
		return nil, fmt.Errorf("failed to create %s user index: %w", table, err)
	}

	return &PostgreSQLStore{pool: pool, table: table}, nil
}

// Create inserts a new run.
func (s *PostgreSQLStore) Create(ctx context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	payload, err := encodeMessages(run.Messages)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, user_id, name, created_at, updated_at, messages)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`, s.table), run.ID, run.UserID, run.Name, run.CreatedAt.UnixNano(), run.UpdatedAt.UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns a run by id.
func (s *PostgreSQLStore) Get(ctx context.Context, id string) (*Run, error) {
	var (
		run                  Run
		createdAt, updatedAt int64
		payload              []byte
	)
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		"SELECT id, user_id, name, created_at, updated_at, messages FROM %s WHERE id = $1", s.table), id).
		Scan(&run.ID, &run.UserID, &run.Name, &createdAt, &updatedAt, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query run: %w", err)
	}

	run.CreatedAt = time.Unix(0, createdAt).UTC()
	run.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if run.Messages, err = decodeMessages(payload); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

// ListRunIDs returns the user's run IDs ordered by created_at desc, id desc.
func (s *PostgreSQLStore) ListRunIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, s.table), userID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect run rows: %w", err)
	}
	return ids, nil
}

// AppendMessages concatenates messages onto the stored JSONB array.
func (s *PostgreSQLStore) AppendMessages(ctx context.Context, id string, msgs []core.Message) error {
	payload, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	cmd, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET messages = messages || $1::jsonb, updated_at = $2
		WHERE id = $3
	`, s.table), payload, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("append run messages: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close is a no-op; pool lifecycle is managed by storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}
