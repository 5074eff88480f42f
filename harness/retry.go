package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

// Backoff bounds for transient contention.
const (
	MinBackoff = 10 * time.Millisecond
	MaxBackoff = 50 * time.Millisecond
)

// Retrier re-runs a body while it fails with transient contention.
type Retrier struct {
	// Backoff returns the pause before the next attempt. Nil uses Jitter.
	Backoff func() time.Duration

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *slog.Logger
}

// Jitter returns a uniformly random duration in [MinBackoff, MaxBackoff).
func Jitter() time.Duration {
	return MinBackoff + rand.N(MaxBackoff-MinBackoff)
}

// Do invokes body on conn until it succeeds or fails with a non-transient
// error, and returns the number of attempts made. After each transient
// failure conn is reset before the pause. Retrying stops when ctx is done.
func (r *Retrier) Do(
	ctx context.Context,
	conn *store.Conn,
	body workload.Body,
) (int, error) {
	attempts := 0

	for {
		attempts++

		err := body(ctx, conn)
		if err == nil {
			return attempts, nil
		}

		if store.KindOf(err) != store.KindBusy {
			return attempts, err
		}

		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}

		if r.Logger != nil {
			r.Logger.DebugContext(ctx, "transient contention, retrying",
				slog.Int("attempt", attempts),
				slog.String("error", err.Error()),
			)
		}

		if conn != nil {
			// Conns from fake pools have nothing to reset.
			if err := conn.Reset(ctx); err != nil && !errors.Is(err, store.ErrDetached) {
				return attempts, err
			}
		}

		if err := r.sleep(ctx, r.backoff()); err != nil {
			return attempts, err
		}
	}
}

func (r *Retrier) backoff() time.Duration {
	if r.Backoff != nil {
		return r.Backoff()
	}

	return Jitter()
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry backoff: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
