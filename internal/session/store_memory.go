package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mediaqa/internal/core"
)

// MemoryStore keeps runs in process memory.
// Data survives across turns but not process restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryStore creates an empty in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*Run)}
}

// Create stores a new run.
func (s *MemoryStore) Create(_ context.Context, run *Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	c, err := cloneRun(run)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[c.ID]; exists {
		return fmt.Errorf("run already exists: %s", c.ID)
	}
	s.runs[c.ID] = c
	return nil
}

// Get retrieves one run by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	r, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRun(r)
}

// ListRunIDs returns the user's run IDs ordered by created_at desc, id desc.
func (s *MemoryStore) ListRunIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	runs := make([]*Run, 0)
	for _, r := range s.runs {
		if r.UserID == userID {
			runs = append(runs, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids, nil
}

// AppendMessages adds messages to the end of a run.
func (s *MemoryStore) AppendMessages(_ context.Context, id string, msgs []core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	r.Messages = append(r.Messages, msgs...)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
