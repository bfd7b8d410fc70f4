package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/taskforge/pkg/queue"
)

// NotifyChannel is the pg_notify channel every insert publishes on.
const NotifyChannel = "taskforge_task_insert"

const (
	insertSQL = `
INSERT INTO tasks (id, task_type, priority, payload, maturity_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, now() + make_interval(secs => $5), now(), now())
RETURNING maturity_at, created_at, updated_at`

	pendingExistsSQL = `SELECT EXISTS (SELECT 1 FROM tasks WHERE task_type = $1)`

	// The subquery picks the oldest-highest-priority mature rows, locking them
	// and skipping rows a concurrent claimer already holds; the DELETE removes
	// exactly those rows and hands back their contents. One statement, one
	// transaction: on any failure the table is unchanged.
	claimSQL = `
DELETE FROM tasks
WHERE id IN (
    SELECT id FROM tasks
    WHERE maturity_at < now()
    ORDER BY priority DESC, created_at ASC
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
RETURNING id, task_type, priority, payload, maturity_at, created_at, updated_at`

	notifySQL = `SELECT pg_notify($1, $2)`
)

// Store implements queue.Store and queue.Waker on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	unique queue.Uniqueness
	logger *slog.Logger

	wake chan struct{}

	mu           sync.Mutex // guards cancelListen
	cancelListen context.CancelFunc
	listenWG     sync.WaitGroup
	closeOnce    sync.Once
}

// New creates a store over an existing pool. unique may be nil, in which case
// no type is treated as unique. The pool is owned by the store from here on:
// Close closes it.
func New(pool *pgxpool.Pool, unique queue.Uniqueness, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, queue.ErrStoreNil
	}

	options := &storeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	return &Store{
		pool:   pool,
		unique: unique,
		logger: options.logger,
		wake:   make(chan struct{}, 1),
	}, nil
}

// Insert implements queue.Store. For unique task types the pending-row guard
// and the INSERT share one transaction; a found duplicate returns (nil, nil).
func (s *Store) Insert(ctx context.Context, task queue.Task, delay time.Duration) (*queue.TaskRecord, error) {
	if task == nil {
		return nil, queue.ErrTaskNil
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	taskType := task.Type()
	if s.unique != nil && s.unique.IsUnique(taskType) {
		var exists bool
		if err := tx.QueryRow(ctx, pendingExistsSQL, taskType).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check pending %s: %w", taskType, err)
		}
		if exists {
			return nil, nil // pending instance exists, skipped as duplicate
		}
	}

	rec := queue.TaskRecord{
		ID:       uuid.New(),
		Type:     taskType,
		Priority: queue.EffectivePriority(task),
		Payload:  payload,
	}
	if err := tx.QueryRow(ctx, insertSQL,
		rec.ID, rec.Type, rec.Priority, payload, delay.Seconds(),
	).Scan(&rec.MaturityAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert task %s: %w", taskType, err)
	}

	// Advisory wake-up for idle runners, delivered on commit.
	if _, err := tx.Exec(ctx, notifySQL, NotifyChannel, taskType); err != nil {
		return nil, fmt.Errorf("failed to notify insert of %s: %w", taskType, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit insert of %s: %w", taskType, err)
	}
	return &rec, nil
}

// ClaimBatch implements queue.Store.
func (s *Store) ClaimBatch(ctx context.Context, batchSize int) ([]queue.TaskRecord, error) {
	if batchSize <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, claimSQL, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}
	defer rows.Close()

	var out []queue.TaskRecord
	for rows.Next() {
		var rec queue.TaskRecord
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Priority, &rec.Payload,
			&rec.MaturityAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claimed task: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}

	// DELETE ... RETURNING does not promise the subquery's ordering.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ListenWake starts a background LISTEN loop on a dedicated pooled connection
// and feeds the Wake channel. Optional: without it the store still works,
// runners just rely on their fallback poll.
func (s *Store) ListenWake(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	lctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelListen = cancel
	s.mu.Unlock()

	s.listenWG.Add(1)
	go func() {
		defer s.listenWG.Done()
		defer conn.Release()
		for {
			if _, err := conn.Conn().WaitForNotification(lctx); err != nil {
				if lctx.Err() == nil {
					s.logger.Error("task insert listener stopped",
						slog.String("error", err.Error()))
				}
				return
			}
			select {
			case s.wake <- struct{}{}:
			default: // a signal is already pending
			}
		}
	}()
	return nil
}

// Wake implements queue.Waker.
func (s *Store) Wake() <-chan struct{} {
	return s.wake
}

// Close implements queue.Store. Stops the listener, waits for it, and closes
// the pool. Subsequent calls are no-ops.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancelListen
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.listenWG.Wait()
		s.pool.Close()
	})
	return nil
}
