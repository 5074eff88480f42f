package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS benchmark_users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS benchmark_posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	benchmark_user_id INTEGER NOT NULL REFERENCES benchmark_users(id),
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	views INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_posts_user ON benchmark_posts(benchmark_user_id);
CREATE INDEX IF NOT EXISTS idx_posts_title ON benchmark_posts(title);

CREATE TABLE IF NOT EXISTS simulated_jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	queue_name TEXT NOT NULL,
	arguments TEXT NOT NULL,
	scheduled_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_jobs_queue_scheduled
	ON simulated_jobs(queue_name, scheduled_at);
`

// InitSchema creates the workload tables if they do not exist yet.
func InitSchema(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	return nil
}
