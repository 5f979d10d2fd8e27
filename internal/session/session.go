// Package session persists assistant conversations as resumable runs.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"mediaqa/internal/core"
)

// DefaultTable is the table (or collection) runs are stored in.
const DefaultTable = "pdf_assistant"

// ErrNotFound indicates a requested run was not found.
var ErrNotFound = core.NewNotFoundError("run not found")

// Run is one persisted conversation thread.
type Run struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Name      string         `json:"name,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Messages  []core.Message `json:"messages"`
}

// NewRun returns a fresh run for user with a random ID.
func NewRun(userID string) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []core.Message{},
	}
}

// Store defines persistence operations for runs.
type Store interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// ListRunIDs returns the user's run IDs, newest first.
	ListRunIDs(ctx context.Context, userID string) ([]string, error)
	AppendMessages(ctx context.Context, id string, msgs []core.Message) error
	Close() error
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// validateTableName guards identifiers that are interpolated into SQL.
func validateTableName(name string) (string, error) {
	if name == "" {
		return DefaultTable, nil
	}
	if !tableNamePattern.MatchString(name) || len(name) > 63 {
		return "", core.NewConfigurationError(fmt.Sprintf("invalid run table name %q", name), nil)
	}
	return name, nil
}

func validateRun(run *Run) error {
	if run == nil {
		return fmt.Errorf("run is nil")
	}
	if run.ID == "" {
		return fmt.Errorf("run ID is empty")
	}
	if run.UserID == "" {
		return fmt.Errorf("run user is empty")
	}
	return nil
}

func cloneRun(src *Run) (*Run, error) {
	b, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("marshal run: %w", err)
	}
	var dst Run
	if err := json.Unmarshal(b, &dst); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &dst, nil
}

func encodeMessages(msgs []core.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []core.Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("marshal messages: %w", err)
	}
	return b, nil
}

func decodeMessages(raw []byte) ([]core.Message, error) {
	msgs := []core.Message{}
	if len(raw) == 0 {
		return msgs, nil
	}
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	return msgs, nil
}
