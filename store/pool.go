// Package store provides the bounded SQLite connection pool that workloads
// run against. The pool is safe for concurrent checkout and return; it is the
// only state shared between benchmark workers.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDSN is a process-wide shared-cache in-memory database.
const DefaultDSN = "file:heft?mode=memory&cache=shared"

// Options controls how the pool is opened.
type Options struct {
	// DSN is a go-sqlite3 data source name. Empty means DefaultDSN.
	DSN string

	// Size is the maximum number of connections handed out at once.
	Size int

	// BusyTimeout is applied per connection via _busy_timeout.
	BusyTimeout time.Duration
}

// ErrInUse is returned when another process holds a file database open.
var ErrInUse = errors.New("database in use by another process")

// ErrDetached is returned by Reset on a Conn that no Pool handed out.
var ErrDetached = errors.New("connection not owned by a pool")

// Pool hands out at most Size connections at a time. Acquire blocks while
// the pool is exhausted.
type Pool struct {
	db     *sql.DB
	anchor *sql.Conn
	size   int
	dsn    string
	lock   *flock.Flock
	logger *slog.Logger
}

// Open creates the pool, applies the schema and pins one extra connection
// so an in-memory database survives connection resets.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Pool, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", opts.Size)
	}

	dsn := buildDSN(opts)

	var lock *flock.Flock
	if !IsMemory(dsn) {
		lock = flock.New(dbPath(dsn) + ".lock")

		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock database: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInUse, dbPath(dsn))
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		unlock(lock)

		return nil, fmt.Errorf("open database: %w", err)
	}

	// The anchor takes one slot; workers share the remaining Size.
	db.SetMaxOpenConns(opts.Size + 1)
	db.SetMaxIdleConns(opts.Size + 1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	anchor, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		unlock(lock)

		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := InitSchema(ctx, anchor); err != nil {
		anchor.Close()
		db.Close()
		unlock(lock)

		return nil, err
	}

	p := &Pool{
		db:     db,
		anchor: anchor,
		size:   opts.Size,
		dsn:    dsn,
		lock:   lock,
		logger: logger,
	}

	logger.DebugContext(ctx, "store opened",
		slog.String("dsn", dsn),
		slog.Int("size", opts.Size),
	)

	return p, nil
}

// Size returns the number of connections workers can hold concurrently.
func (p *Pool) Size() int {
	return p.size
}

// DSN returns the data source name the pool was opened with.
func (p *Pool) DSN() string {
	return p.dsn
}

// Stats reports database/sql pool statistics, including wait counts.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Acquire checks out one connection, blocking until one is free or ctx is
// done.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	raw, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	return &Conn{pool: p, raw: raw}, nil
}

// Release returns c to the pool. Releasing nil is a no-op.
func (p *Pool) Release(c *Conn) {
	if c == nil || c.raw == nil {
		return
	}

	if err := c.raw.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		p.logger.Debug("release connection",
			slog.String("error", err.Error()),
		)
	}

	c.raw = nil
}

// Close releases the anchor, closes the database and drops the file lock.
func (p *Pool) Close() error {
	defer unlock(p.lock)

	if err := p.anchor.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		p.db.Close()

		return fmt.Errorf("close anchor: %w", err)
	}

	return p.db.Close()
}

func unlock(lock *flock.Flock) {
	if lock != nil {
		_ = lock.Unlock()
	}
}

// Conn is one checked-out connection. It is owned by a single worker
// between Acquire and Release.
type Conn struct {
	pool *Pool
	raw  *sql.Conn
}

// ExecContext runs a statement that returns no rows.
func (c *Conn) ExecContext(
	ctx context.Context,
	query string,
	args ...any,
) (sql.Result, error) {
	return c.raw.ExecContext(ctx, query, args...)
}

// QueryContext runs a query that returns rows.
func (c *Conn) QueryContext(
	ctx context.Context,
	query string,
	args ...any,
) (*sql.Rows, error) {
	return c.raw.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a query expected to return at most one row.
func (c *Conn) QueryRowContext(
	ctx context.Context,
	query string,
	args ...any,
) *sql.Row {
	return c.raw.QueryRowContext(ctx, query, args...)
}

// Scratch runs fn inside a transaction that is always rolled back, so
// repeated invocations leave the database unchanged.
func (c *Conn) Scratch(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.raw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

// InTx runs fn inside a transaction that is committed when fn succeeds.
func (c *Conn) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.raw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Reset discards the underlying driver connection, dropping any locks or
// open transaction it holds, and replaces it with a fresh one.
func (c *Conn) Reset(ctx context.Context) error {
	if c.pool == nil {
		return ErrDetached
	}

	if c.raw != nil {
		// Returning ErrBadConn makes database/sql close the driver conn
		// instead of putting it back in the idle list.
		_ = c.raw.Raw(func(any) error { return driver.ErrBadConn })
		_ = c.raw.Close()
	}

	raw, err := c.pool.db.Conn(ctx)
	if err != nil {
		c.raw = nil

		return fmt.Errorf("reset connection: %w", err)
	}

	c.raw = raw

	return nil
}

// IsMemory reports whether dsn names an in-memory database.
func IsMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") ||
		strings.Contains(dsn, "mode=memory")
}

// dbPath strips the file: scheme and query parameters from dsn.
func dbPath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	return path
}

func buildDSN(opts Options) string {
	dsn := opts.DSN
	if dsn == "" {
		dsn = DefaultDSN
	}

	params := url.Values{}

	if opts.BusyTimeout > 0 && !strings.Contains(dsn, "_busy_timeout") {
		params.Set("_busy_timeout",
			strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10))
	}

	// WAL does not apply to memory databases.
	if !IsMemory(dsn) {
		if !strings.Contains(dsn, "_journal_mode") {
			params.Set("_journal_mode", "WAL")
		}
		if !strings.Contains(dsn, "_synchronous") {
			params.Set("_synchronous", "NORMAL")
		}
	}

	if len(params) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	return dsn + sep + params.Encode()
}
