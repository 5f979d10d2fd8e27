// Package storage opens the database connection shared by the run store and
// the knowledge base. One Storage wraps exactly one backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"mediaqa/internal/core"
)

// Backend names, as used in STORAGE_TYPE
const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
	TypeMongoDB    = "mongodb"
)

// DefaultPostgreSQLURL points at the pgvector container used for local development.
const DefaultPostgreSQLURL = "postgres://ai:ai@localhost:5532/ai"

// Config selects a backend and carries its connection settings
type Config struct {
	Type       string
	SQLite     SQLiteConfig
	PostgreSQL PostgreSQLConfig
	MongoDB    MongoDBConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string // created with its parent directory when missing
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string
	MaxConns int // pool size, 10 when unset
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string
	Database string
}

// DefaultConfig returns the settings used for fields left empty
func DefaultConfig() Config {
	return Config{
		Type:       TypeSQLite,
		SQLite:     SQLiteConfig{Path: "data/mediaqa.db"},
		PostgreSQL: PostgreSQLConfig{URL: DefaultPostgreSQLURL, MaxConns: 10},
		MongoDB:    MongoDBConfig{Database: "mediaqa"},
	}
}

// Storage is an open connection to one backend. Only the accessor matching
// Type returns a non-nil handle. Safe for concurrent use.
type Storage struct {
	kind    string
	sqlite  *sql.DB
	pool    *pgxpool.Pool
	mongo   *mongo.Client
	mongoDB *mongo.Database
}

// New connects to the backend named by cfg.Type and verifies it answers.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	switch cfg.Type {
	case TypeSQLite:
		return NewSQLite(cfg.SQLite)
	case TypePostgreSQL:
		return NewPostgreSQL(ctx, cfg.PostgreSQL)
	case TypeMongoDB:
		return NewMongoDB(ctx, cfg.MongoDB)
	default:
		return nil, core.NewConfigurationError(
			fmt.Sprintf("unknown storage type: %q (valid: sqlite, postgresql, mongodb)", cfg.Type), nil)
	}
}

// Type returns the backend name
func (s *Storage) Type() string { return s.kind }

// SQLiteDB returns the SQLite handle, or nil for other backends
func (s *Storage) SQLiteDB() *sql.DB { return s.sqlite }

// PostgreSQLPool returns the pgx pool, or nil for other backends
func (s *Storage) PostgreSQLPool() *pgxpool.Pool { return s.pool }

// MongoDatabase returns the MongoDB database, or nil for other backends
func (s *Storage) MongoDatabase() *mongo.Database { return s.mongoDB }

// Close releases the connection. Calling it twice is harmless.
func (s *Storage) Close() error {
	var errs []error
	if s.sqlite != nil {
		errs = append(errs, s.sqlite.Close())
		s.sqlite = nil
	}
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	if s.mongo != nil {
		errs = append(errs, closeMongo(s.mongo))
		s.mongo, s.mongoDB = nil, nil
	}
	return errors.Join(errs...)
}
