package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mediaqa/internal/core"
)

// SQLiteStore stores runs in SQLite.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore creates the runs table and indexes if needed.
func NewSQLiteStore(db *sql.DB, table string) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	table, err := validateTableName(table)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			messages TEXT NOT NULL
		)
	`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", table, err)
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_user_created ON %s(user_id, created_at DESC)", table, table)); err != nil {
		return nil, fmt.Errorf("failed to create %s user index: %w", table, err)
	}

	return &SQLiteStore{db: db, table: table}, nil
}

// Create inserts a new run.
func (s *SQLiteStore) Create(ctx context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	payload, err := encodeMessages(run.Messages)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, user_id, name, created_at, updated_at, messages)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.table), run.ID, run.UserID, run.Name, run.CreatedAt.UnixNano(), run.UpdatedAt.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns a run by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	var (
		run                  Run
		createdAt, updatedAt int64
		payload              string
	)
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, user_id, name, created_at, updated_at, messages FROM %s WHERE id = ?", s.table), id).
		Scan(&run.ID, &run.UserID, &run.Name, &createdAt, &updatedAt, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query run: %w", err)
	}

	run.CreatedAt = time.Unix(0, createdAt).UTC()
	run.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if run.Messages, err = decodeMessages([]byte(payload)); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

// ListRunIDs returns the user's run IDs ordered by created_at desc, id desc.
func (s *SQLiteStore) ListRunIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id
		FROM %s
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, s.table), userID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return ids, nil
}

// AppendMessages adds messages to the end of a run inside a transaction.
func (s *SQLiteStore) AppendMessages(ctx context.Context, id string, msgs []core.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var payload string
	err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT messages FROM %s WHERE id = ?", s.table), id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("query run messages: %w", err)
	}

	existing, err := decodeMessages([]byte(payload))
	if err != nil {
		return err
	}
	updated, err := encodeMessages(append(existing, msgs...))
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET messages = ?, updated_at = ? WHERE id = ?", s.table),
		string(updated), time.Now().UnixNano(), id); err != nil {
		return fmt.Errorf("update run messages: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Close is a no-op; DB lifecycle is managed by storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}
