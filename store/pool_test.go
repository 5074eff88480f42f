package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/store/storetest"
)

func TestAcquireRelease(t *testing.T) {
	pool := storetest.Open(t, 2)
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	var one int
	if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if one != 1 {
		t.Errorf("SELECT 1 = %d, want 1", one)
	}

	pool.Release(conn)
	pool.Release(conn)
	pool.Release(nil)

	if pool.Size() != 2 {
		t.Errorf("Size() = %d, want 2", pool.Size())
	}
}

func TestAcquireBlocksWhenExhausted(t *testing.T) {
	pool := storetest.Open(t, 2)
	ctx := context.Background()

	a, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	b, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	if _, err := pool.Acquire(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire on exhausted pool: got %v, want deadline exceeded", err)
	}

	pool.Release(a)

	c, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}

	pool.Release(b)
	pool.Release(c)
}

func TestScratchRollsBack(t *testing.T) {
	pool := storetest.Open(t, 1)
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(conn)

	err = conn.Scratch(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO benchmark_users (name, email) VALUES (?, ?)",
			"scratch", "scratch@example.com")

		return err
	})
	if err != nil {
		t.Fatalf("Scratch failed: %v", err)
	}

	var count int
	err = conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM benchmark_users").Scan(&count)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("users after scratch = %d, want 0", count)
	}
}

func TestScratchPropagatesError(t *testing.T) {
	pool := storetest.Open(t, 1)
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(conn)

	boom := errors.New("boom")
	err = conn.Scratch(ctx, func(*sql.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Scratch error = %v, want %v", err, boom)
	}
}

func TestInTxCommits(t *testing.T) {
	pool := storetest.Open(t, 1)
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(conn)

	err = conn.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO simulated_jobs (queue_name, arguments, scheduled_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
			"default", "{}")

		return err
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	boom := errors.New("boom")
	err = conn.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO simulated_jobs (queue_name, arguments, scheduled_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
			"default", "{}"); err != nil {
			return err
		}

		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want %v", err, boom)
	}

	var count int
	err = conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM simulated_jobs").Scan(&count)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("jobs = %d, want 1", count)
	}
}

func TestFileDatabaseIsLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heft.db")
	ctx := context.Background()
	opts := store.Options{DSN: path, Size: 1}

	first, err := store.Open(ctx, opts, storetest.Logger())
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	if _, err := store.Open(ctx, opts, storetest.Logger()); !errors.Is(err, store.ErrInUse) {
		t.Fatalf("second Open: got %v, want ErrInUse", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	again, err := store.Open(ctx, opts, storetest.Logger())
	if err != nil {
		t.Fatalf("Open after Close failed: %v", err)
	}
	if err := again.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestPoolDSNCarriesBusyTimeout(t *testing.T) {
	pool, err := store.Open(context.Background(), store.Options{
		DSN:         "file:dsn_busy?mode=memory&cache=shared",
		Size:        1,
		BusyTimeout: 250 * time.Millisecond,
	}, storetest.Logger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer pool.Close()

	dsn := pool.DSN()
	if !strings.HasPrefix(dsn, "file:dsn_busy?") {
		t.Errorf("DSN() = %q, want prefix file:dsn_busy?", dsn)
	}
	if !strings.Contains(dsn, "_busy_timeout=250") {
		t.Errorf("DSN() = %q, want _busy_timeout=250", dsn)
	}
}

func TestResetDetachedConn(t *testing.T) {
	var conn store.Conn

	if err := conn.Reset(context.Background()); !errors.Is(err, store.ErrDetached) {
		t.Fatalf("got %v, want %v", err, store.ErrDetached)
	}
}

func TestResetReplacesConnection(t *testing.T) {
	pool := storetest.Open(t, 1)
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := conn.Reset(ctx); err != nil {
			t.Fatalf("Reset %d failed: %v", i, err)
		}
	}

	// The schema lives in the shared memory database, so it must survive.
	var count int
	err = conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM simulated_jobs").Scan(&count)
	if err != nil {
		t.Fatalf("query after reset failed: %v", err)
	}

	pool.Release(conn)

	if open := pool.Stats().OpenConnections; open > 2 {
		t.Errorf("open connections = %d, want <= 2", open)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want store.Kind
	}{
		{"nil", nil, store.KindNone},
		{"sentinel", store.ErrBusy, store.KindBusy},
		{"wrapped sentinel", fmt.Errorf("insert: %w", store.ErrBusy), store.KindBusy},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, store.KindBusy},
		{"sqlite locked", sqlite3.Error{Code: sqlite3.ErrLocked}, store.KindBusy},
		{
			"wrapped sqlite locked",
			fmt.Errorf("begin: %w", sqlite3.Error{Code: sqlite3.ErrLocked}),
			store.KindBusy,
		},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, store.KindFatal},
		{"locked in text only", errors.New("database is locked"), store.KindFatal},
		{"other", errors.New("disk on fire"), store.KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestOpenRejectsZeroSize(t *testing.T) {
	_, err := store.Open(context.Background(), store.Options{Size: 0},
		storetest.Logger())
	if err == nil {
		t.Error("expected error for zero pool size")
	}
}

func TestSQLiteVersion(t *testing.T) {
	if v := store.SQLiteVersion(); v == "" {
		t.Error("expected a SQLite version")
	}
}
