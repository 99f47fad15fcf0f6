// Package database opens and bounds the Postgres connection pool and keeps
// the todos schema in place. The pgx driver registers itself under
// database/sql on import.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/mwerner/todo-api/config"
)

// Open connects to Postgres, applies the pool bounds, and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg config.DB) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// Acquire checks a dedicated connection out of the pool, waiting at most
// timeout. Callers must Close the connection on every exit path.
func Acquire(ctx context.Context, db *sql.DB, timeout time.Duration) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := db.Conn(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return conn, nil
}

// schemaStatements create the todos table and the trigger that refreshes
// updated_at on every row update, so the application never stamps that column
// from its own clock.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS todos (
		id SERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		priority VARCHAR(10) NOT NULL DEFAULT 'medium'
			CHECK (priority IN ('low', 'medium', 'high')),
		due_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos (created_at DESC)`,
	`CREATE OR REPLACE FUNCTION todos_refresh_updated_at() RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS todos_set_updated_at ON todos`,
	`CREATE TRIGGER todos_set_updated_at
		BEFORE UPDATE ON todos
		FOR EACH ROW EXECUTE FUNCTION todos_refresh_updated_at()`,
}

// EnsureSchema creates the todos table, index, and updated_at trigger if they
// do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}
