package suite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

const postsPerUser = 10

var (
	recordBody = strings.Repeat("Content ", 50)
	recordSeq  atomic.Int64
)

// buildActiveRecord creates a user with posts, reads them back through a
// join, updates the user and rolls everything back.
func buildActiveRecord(context.Context, Env) (workload.Body, error) {
	return func(ctx context.Context, conn *store.Conn) error {
		email := fmt.Sprintf("bench-%d@example.com", recordSeq.Add(1))

		return conn.Scratch(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx,
				"INSERT INTO benchmark_users (name, email) VALUES (?, ?)",
				"Benchmark User", email)
			if err != nil {
				return fmt.Errorf("insert user: %w", err)
			}

			userID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("user id: %w", err)
			}

			for i := 0; i < postsPerUser; i++ {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO benchmark_posts (benchmark_user_id, title, body)
					 VALUES (?, ?, ?)`,
					userID, fmt.Sprintf("Post %d", i), recordBody)
				if err != nil {
					return fmt.Errorf("insert post %d: %w", i, err)
				}
			}

			n, err := joinedPosts(ctx, tx, userID)
			if err != nil {
				return err
			}
			if n != postsPerUser {
				return fmt.Errorf("join returned %d posts, want %d", n, postsPerUser)
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE benchmark_users
				 SET name = ?, updated_at = CURRENT_TIMESTAMP
				 WHERE id = ?`,
				"Updated User", userID)
			if err != nil {
				return fmt.Errorf("update user: %w", err)
			}

			return nil
		})
	}, nil
}

func joinedPosts(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT u.id, u.name, p.title, p.views
		 FROM benchmark_users u
		 JOIN benchmark_posts p ON p.benchmark_user_id = u.id
		 WHERE u.id = ? AND p.views >= ?
		 ORDER BY p.created_at DESC`,
		userID, 0)
	if err != nil {
		return 0, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id    int64
			name  string
			title string
			views int
		)
		if err := rows.Scan(&id, &name, &title, &views); err != nil {
			return 0, fmt.Errorf("scan post: %w", err)
		}
		n++
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate posts: %w", err)
	}

	return n, nil
}
