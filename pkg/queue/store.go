package queue

import (
	"context"
	"time"
)

type (
	// Store is the persistence contract shared by the relational backends.
	// The task table models pending work only: a row is deleted in the same
	// transaction that claims it, so in-flight and completed work have no
	// persisted representation.
	Store interface {
		// Insert writes a new pending record for the task, mature after the
		// given delay. For unique task types an existing pending row makes
		// the insert a no-op: Insert returns (nil, nil). Any transaction
		// failure leaves the table unchanged and is retryable.
		Insert(ctx context.Context, task Task, delay time.Duration) (*TaskRecord, error)

		// ClaimBatch atomically removes up to batchSize mature rows, ordered
		// by priority descending then insertion time ascending, and returns
		// them. Concurrent callers never receive overlapping rows and never
		// block on rows another claimer holds.
		ClaimBatch(ctx context.Context, batchSize int) ([]TaskRecord, error)

		// Close releases the store's connection resources. Double-close must
		// not corrupt state.
		Close() error
	}

	// Waker is optionally implemented by stores that can signal inserts
	// out-of-band. The runner selects on the channel to skip its fallback
	// sleep; delivery is advisory and lost signals only cost latency, never
	// correctness, because the poll interval independently re-checks.
	Waker interface {
		Wake() <-chan struct{}
	}
)
