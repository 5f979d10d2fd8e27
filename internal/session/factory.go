package session

import (
	"context"
	"errors"
	"fmt"

	"mediaqa/config"
	"mediaqa/internal/storage"
)

// TypeMemory keeps runs in process memory without opening a database.
const TypeMemory = "memory"

// Result holds the initialized run store and optional owned storage.
type Result struct {
	Store   Store
	Storage *storage.Storage
}

// Close releases resources held by the run store.
func (r *Result) Close() error {
	var errs []error
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New creates a run store from app configuration, opening its own storage.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Storage.Type == TypeMemory {
		return &Result{Store: NewMemoryStore()}, nil
	}

	store, err := storage.New(ctx, BuildStorageConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	runStore, err := createStore(ctx, store, cfg.Assistant.Table)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Result{Store: runStore, Storage: store}, nil
}

// NewWithSharedStorage creates a run store using a shared storage connection.
func NewWithSharedStorage(ctx context.Context, shared *storage.Storage, table string) (*Result, error) {
	if shared == nil {
		return nil, fmt.Errorf("shared storage is required")
	}
	runStore, err := createStore(ctx, shared, table)
	if err != nil {
		return nil, err
	}
	return &Result{Store: runStore}, nil
}

// BuildStorageConfig maps application configuration onto storage settings.
func BuildStorageConfig(cfg *config.Config) storage.Config {
	storageCfg := storage.Config{
		Type: cfg.Storage.Type,
		SQLite: storage.SQLiteConfig{
			Path: cfg.Storage.SQLite.Path,
		},
		PostgreSQL: storage.PostgreSQLConfig{
			URL:      cfg.Storage.PostgreSQL.URL,
			MaxConns: cfg.Storage.PostgreSQL.MaxConns,
		},
		MongoDB: storage.MongoDBConfig{
			URL:      cfg.Storage.MongoDB.URL,
			Database: cfg.Storage.MongoDB.Database,
		},
	}

	defaults := storage.DefaultConfig()
	if storageCfg.Type == "" {
		storageCfg.Type = storage.TypePostgreSQL
	}
	if storageCfg.SQLite.Path == "" {
		storageCfg.SQLite.Path = defaults.SQLite.Path
	}
	if storageCfg.PostgreSQL.URL == "" {
		storageCfg.PostgreSQL.URL = defaults.PostgreSQL.URL
	}
	if storageCfg.MongoDB.Database == "" {
		storageCfg.MongoDB.Database = defaults.MongoDB.Database
	}
	return storageCfg
}

func createStore(ctx context.Context, store *storage.Storage, table string) (Store, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(store.SQLiteDB(), table)
	case storage.TypePostgreSQL:
		pool := store.PostgreSQLPool()
		if pool == nil {
			return nil, fmt.Errorf("PostgreSQL pool is nil")
		}
		return NewPostgreSQLStore(ctx, pool, table)
	case storage.TypeMongoDB:
		db := store.MongoDatabase()
		if db == nil {
			return nil, fmt.Errorf("MongoDB database is nil")
		}
		return NewMongoDBStore(db, table)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}
