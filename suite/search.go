package suite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

const minSearchPosts = 100

// buildSearch seeds searchable posts once, then runs an exact match, a
// prefix match and a limited wildcard match per invocation.
func buildSearch(ctx context.Context, env Env) (workload.Body, error) {
	if env.Pool == nil {
		return nil, errors.New("no database pool")
	}

	if err := seedPosts(ctx, env); err != nil {
		return nil, err
	}

	return func(ctx context.Context, conn *store.Conn) error {
		if _, err := countRows(ctx, conn,
			"SELECT id, title FROM benchmark_posts WHERE title = ?",
			"Unique Title 50"); err != nil {
			return fmt.Errorf("exact match: %w", err)
		}

		if _, err := countRows(ctx, conn,
			"SELECT id, title FROM benchmark_posts WHERE title LIKE ?",
			"Unique Title 5%"); err != nil {
			return fmt.Errorf("prefix match: %w", err)
		}

		if _, err := countRows(ctx, conn,
			"SELECT id, title FROM benchmark_posts WHERE body LIKE ? LIMIT 10",
			"%Searchable%"); err != nil {
			return fmt.Errorf("wildcard match: %w", err)
		}

		return nil
	}, nil
}

// seedPosts inserts generated fixtures until at least minSearchPosts posts
// exist.
func seedPosts(ctx context.Context, env Env) error {
	conn, err := env.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("seed search data: %w", err)
	}
	defer env.Pool.Release(conn)

	var existing int
	err = conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM benchmark_posts").
		Scan(&existing)
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}
	if existing >= minSearchPosts {
		return nil
	}

	cfg := workload.DefaultFixtureConfig()
	cfg.Seed = env.Seed
	cfg.PostsPerUser = minSearchPosts

	var summary workload.Summary
	err = conn.InTx(ctx, func(tx *sql.Tx) error {
		summary, err = workload.NewGenerator(cfg).Generate(func(u workload.User) error {
			return insertUser(ctx, tx, u)
		})

		return err
	})
	if err != nil {
		return fmt.Errorf("seed search data: %w", err)
	}

	env.Logger.DebugContext(ctx, "seeded search data",
		slog.Int("users", summary.Users),
		slog.Int("posts", summary.Posts),
	)

	return nil
}

func insertUser(ctx context.Context, tx *sql.Tx, u workload.User) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO benchmark_users (name, email) VALUES (?, ?)",
		u.Name, u.Email)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	userID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}

	for _, p := range u.Posts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO benchmark_posts (benchmark_user_id, title, body, views)
			 VALUES (?, ?, ?, ?)`,
			userID, p.Title, p.Body, p.Views)
		if err != nil {
			return fmt.Errorf("insert post %q: %w", p.Title, err)
		}
	}

	return nil
}

func countRows(ctx context.Context, conn *store.Conn, query string, args ...any) (int, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id    int64
			title string
		)
		if err := rows.Scan(&id, &title); err != nil {
			return 0, err
		}
		n++
	}

	return n, rows.Err()
}
