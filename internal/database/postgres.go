package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/examprint/internal/config"
)

// NewPostgresPool opens the pool shared by every repository. Connections run
// in UTC, since session windows and print dates are compared as UTC instants,
// and identify themselves as examprint in pg_stat_activity.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxDBConns
	if cfg.MinDBConns > 0 && cfg.MinDBConns <= cfg.MaxDBConns {
		poolCfg.MinConns = cfg.MinDBConns
	}
	if cfg.DBConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.DBConnLifetime
	}
	rt := poolCfg.ConnConfig.RuntimeParams
	rt["timezone"] = "UTC"
	if rt["application_name"] == "" {
		rt["application_name"] = "examprint"
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("min_conns", poolCfg.MinConns).
		Int32("max_conns", poolCfg.MaxConns).
		Dur("conn_lifetime", poolCfg.MaxConnLifetime).
		Msg("PostgreSQL connected")
	return pool, nil
}
