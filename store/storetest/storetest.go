// Package storetest opens isolated in-memory pools for tests.
package storetest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/weiihann/heft/store"
)

// Open returns a pool of the given size backed by a shared-cache memory
// database named after the test, closed on cleanup.
func Open(tb testing.TB, size int) *store.Pool {
	tb.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").
		Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	pool, err := store.Open(context.Background(), store.Options{
		DSN:  dsn,
		Size: size,
	}, Logger())
	if err != nil {
		tb.Fatalf("open pool: %v", err)
	}

	tb.Cleanup(func() {
		if err := pool.Close(); err != nil {
			tb.Errorf("close pool: %v", err)
		}
	})

	return pool
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
