package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"mediaqa/internal/core"
)

// NewPostgreSQL opens a pgx pool and pings it.
func NewPostgreSQL(ctx context.Context, cfg PostgreSQLConfig) (*Storage, error) {
	if cfg.URL == "" {
		return nil, core.NewConfigurationError("PostgreSQL URL is required", nil)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, core.NewConfigurationError("invalid PostgreSQL URL", err)
	}
	poolCfg.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create PostgreSQL pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL at %s: %w", poolCfg.ConnConfig.Host, err)
	}
	return &Storage{kind: TypePostgreSQL, pool: pool}, nil
}
