// Package database opens the Postgres connection shared by the job
// queue, the cursor store, and the labeled-examples dataset.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
)

// New opens and pings a Postgres connection. An empty URL falls back
// to the DATABASE_URL environment variable.
func New(databaseURL string) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		databaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("no database URL configured")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS job_results (
		call_id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'pending',
		result JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS cursors (
		username TEXT NOT NULL,
		list_name TEXT NOT NULL,
		list_id TEXT NOT NULL DEFAULT '',
		slack_channel_id TEXT NOT NULL DEFAULT '',
		latest_post_id BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (username, list_name)
	)`,
	`CREATE TABLE IF NOT EXISTS labeled_examples (
		id BIGSERIAL PRIMARY KEY,
		post TEXT NOT NULL,
		label TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the application tables when missing. The river
// job tables are managed separately by river's own migrations.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
