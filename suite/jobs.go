package suite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

const (
	jobsPerRun   = 100
	jobBatchSize = 10
	jobLatency   = time.Millisecond
)

type jobArgs struct {
	JobID   int    `json:"job_id"`
	Payload string `json:"payload"`
}

// jobQueue is shared by every invocation. Each drain empties it,
// including jobs left by an invocation that failed mid-drain.
const jobQueue = "default"

// buildSolidQueue enqueues 100 jobs in one transaction, then drains the
// queue in transactional batches of 10 until it is empty.
func buildSolidQueue(context.Context, Env) (workload.Body, error) {
	payload := strings.Repeat("x", 100)

	return func(ctx context.Context, conn *store.Conn) error {
		if err := enqueueJobs(ctx, conn, payload); err != nil {
			return err
		}

		for {
			n, err := drainBatch(ctx, conn, jobQueue)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}

			time.Sleep(jobLatency)
		}
	}, nil
}

func enqueueJobs(ctx context.Context, conn *store.Conn, payload string) error {
	return conn.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO simulated_jobs (queue_name, arguments, scheduled_at)
			 VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare enqueue: %w", err)
		}
		defer stmt.Close()

		for i := 0; i < jobsPerRun; i++ {
			args, err := json.Marshal(jobArgs{JobID: i, Payload: payload})
			if err != nil {
				return fmt.Errorf("encode job %d: %w", i, err)
			}

			if _, err := stmt.ExecContext(ctx, jobQueue, string(args), time.Now().UTC()); err != nil {
				return fmt.Errorf("enqueue job %d: %w", i, err)
			}
		}

		return nil
	})
}

func drainBatch(ctx context.Context, conn *store.Conn, queue string) (int, error) {
	var n int

	err := conn.InTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, arguments FROM simulated_jobs
			 WHERE queue_name = ? AND scheduled_at <= ?
			 ORDER BY created_at, id
			 LIMIT ?`,
			queue, time.Now().UTC(), jobBatchSize)
		if err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}

		ids := make([]any, 0, jobBatchSize)
		for rows.Next() {
			var (
				id   int64
				raw  string
				args jobArgs
			)
			if err := rows.Scan(&id, &raw); err != nil {
				rows.Close()

				return fmt.Errorf("scan job: %w", err)
			}
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				rows.Close()

				return fmt.Errorf("decode job %d: %w", id, err)
			}
			ids = append(ids, id)
		}
		rows.Close()

		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate jobs: %w", err)
		}

		n = len(ids)
		if n == 0 {
			return nil
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", n), ",")
		_, err = tx.ExecContext(ctx,
			"DELETE FROM simulated_jobs WHERE id IN ("+placeholders+")",
			ids...)
		if err != nil {
			return fmt.Errorf("delete jobs: %w", err)
		}

		return nil
	})

	return n, err
}
