package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaqa/config"
	"mediaqa/internal/core"
	"mediaqa/internal/storage"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	st, err := storage.NewSQLite(storage.SQLiteConfig{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	res, err := NewWithSharedStorage(context.Background(), st, "")
	require.NoError(t, err)
	return res.Store
}

// runStoreContract exercises behavior every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		run := NewRun("alice")
		run.Name = "recipes"
		require.NoError(t, s.Create(ctx, run))

		got, err := s.Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, "alice", got.UserID)
		assert.Equal(t, "recipes", got.Name)
		assert.Empty(t, got.Messages)
		assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("missing run", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nope")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, core.KindNotFound, core.KindOf(err))

		err = s.AppendMessages(ctx, "nope", []core.Message{{Role: core.RoleUser, Content: "x"}})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("invalid run", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.Create(ctx, nil))
		assert.Error(t, s.Create(ctx, &Run{ID: "x"}))
	})

	t.Run("list newest first per user", func(t *testing.T) {
		s := newStore(t)
		base := time.Now().UTC()
		var ids []string
		for i := 0; i < 3; i++ {
			run := NewRun("bob")
			run.CreatedAt = base.Add(time.Duration(i) * time.Second)
			require.NoError(t, s.Create(ctx, run))
			ids = append(ids, run.ID)
		}
		require.NoError(t, s.Create(ctx, NewRun("carol")))

		got, err := s.ListRunIDs(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, got)

		none, err := s.ListRunIDs(ctx, "dave")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("append keeps order and tool calls", func(t *testing.T) {
		s := newStore(t)
		run := NewRun("erin")
		require.NoError(t, s.Create(ctx, run))

		first := []core.Message{
			{Role: core.RoleUser, Content: "how do I make pad thai?"},
			{Role: core.RoleAssistant, ToolCalls: []core.ToolCall{{
				ID: "call_1", Type: "function",
				Function: core.FunctionCall{Name: "search_knowledge_base", Arguments: `{"query":"pad thai"}`},
			}}},
		}
		second := []core.Message{
			{Role: core.RoleTool, ToolCallID: "call_1", Name: "search_knowledge_base", Content: "soak noodles"},
			{Role: core.RoleAssistant, Content: "Soak the noodles first."},
		}
		require.NoError(t, s.AppendMessages(ctx, run.ID, first))
		require.NoError(t, s.AppendMessages(ctx, run.ID, second))

		got, err := s.Get(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, got.Messages, 4)
		assert.Equal(t, "how do I make pad thai?", got.Messages[0].Content)
		require.Len(t, got.Messages[1].ToolCalls, 1)
		assert.Equal(t, "search_knowledge_base", got.Messages[1].ToolCalls[0].Function.Name)
		assert.Equal(t, "call_1", got.Messages[2].ToolCallID)
		assert.Equal(t, "Soak the noodles first.", got.Messages[3].Content)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})

	t.Run("concurrent appends are not lost", func(t *testing.T) {
		s := newStore(t)
		run := NewRun("frank")
		require.NoError(t, s.Create(ctx, run))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.AppendMessages(ctx, run.ID, []core.Message{{Role: core.RoleUser, Content: "hi"}}))
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, run.ID)
		require.NoError(t, err)
		assert.Len(t, got.Messages, 10)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, newSQLiteStore)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	run := NewRun("alice")
	require.NoError(t, s.Create(ctx, run))
	require.Error(t, s.Create(ctx, run), "duplicate IDs are rejected")

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	got.Messages = append(got.Messages, core.Message{Role: core.RoleUser, Content: "mutated"})

	again, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Messages)
}

func TestValidateTableName(t *testing.T) {
	name, err := validateTableName("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, name)

	for _, ok := range []string{"pdf_assistant", "_runs", "runs2"} {
		_, err := validateTableName(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"Runs", "2runs", "runs;drop table x", "a-b", "runs table"} {
		_, err := validateTableName(bad)
		assert.Equal(t, core.KindConfiguration, core.KindOf(err), bad)
	}
}

func TestNew(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)

	cfg := &config.Config{}
	cfg.Storage.Type = TypeMemory
	res, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, res.Store)
	assert.Nil(t, res.Storage)
	require.NoError(t, res.Close())

	cfg.Storage.Type = storage.TypeSQLite
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.Assistant.Table = "my_runs"
	res, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, res.Store)
	assert.NotNil(t, res.Storage)
	require.NoError(t, res.Close())
}

func TestBuildStorageConfig_Defaults(t *testing.T) {
	got := BuildStorageConfig(&config.Config{})
	assert.Equal(t, storage.TypePostgreSQL, got.Type)
	assert.Equal(t, storage.DefaultPostgreSQLURL, got.PostgreSQL.URL)
	assert.Equal(t, "mediaqa", got.MongoDB.Database)
}
