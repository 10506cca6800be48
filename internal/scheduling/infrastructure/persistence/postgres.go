package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id             UUID PRIMARY KEY,
	session_id     UUID NOT NULL,
	title          TEXT NOT NULL,
	priority       TEXT NOT NULL,
	duration_mins  BIGINT NOT NULL,
	deadline       TIMESTAMPTZ,
	status         TEXT NOT NULL,
	assigned_start TIMESTAMPTZ,
	assigned_end   TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_session ON tasks(session_id, status);

CREATE TABLE IF NOT EXISTS decision_log (
	id         UUID PRIMARY KEY,
	session_id UUID NOT NULL,
	trigger    TEXT NOT NULL,
	title      TEXT NOT NULL,
	reasoning  JSONB NOT NULL,
	actions    JSONB NOT NULL,
	impact     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_log_session ON decision_log(session_id, created_at);
`

// OpenPostgres creates a connection pool and ensures the schema exists.
func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is required for PostgreSQL")
	}

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return pool, nil
}
