package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

// Pool is the bounded resource pool workers check connections out of.
// *store.Pool satisfies it.
type Pool interface {
	Acquire(ctx context.Context) (*store.Conn, error)
	Release(c *store.Conn)
}

// Harness runs a body from a fixed number of workers for a fixed window.
type Harness struct {
	Pool    Pool
	Retrier *Retrier
}

// Run starts threads workers that invoke body back to back until window
// elapses and returns the number of invocations that finished inside it.
// Every invocation holds one pooled connection. The first fatal body error
// stops the remaining workers and is returned.
func (h *Harness) Run(
	ctx context.Context,
	body workload.Body,
	threads int,
	window time.Duration,
) (PhaseSample, error) {
	if threads <= 0 {
		return PhaseSample{}, fmt.Errorf("threads must be positive, got %d", threads)
	}

	sample := PhaseSample{Threads: threads, Window: window}
	counts := make([]int64, threads)

	g, gctx := errgroup.WithContext(ctx)
	deadline := time.Now().Add(window)

	for i := 0; i < threads; i++ {
		g.Go(func() error {
			return h.work(gctx, body, deadline, &counts[i])
		})
	}

	if err := g.Wait(); err != nil {
		return sample, err
	}

	if err := ctx.Err(); err != nil {
		return sample, err
	}

	for _, c := range counts {
		sample.Completed += c
	}

	return sample, nil
}

func (h *Harness) retrier() *Retrier {
	if h.Retrier == nil {
		return &Retrier{}
	}

	return h.Retrier
}

func (h *Harness) work(
	ctx context.Context,
	body workload.Body,
	deadline time.Time,
	count *int64,
) error {
	// Waiting for a connection never outlasts the window.
	acquireCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := h.Pool.Acquire(acquireCtx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}

			return err
		}

		_, err = h.retrier().Do(ctx, conn, body)
		finished := time.Now()
		h.Pool.Release(conn)

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		if !finished.After(deadline) {
			*count++
		}
	}

	return nil
}
