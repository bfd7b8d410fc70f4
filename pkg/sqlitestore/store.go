// Package sqlitestore implements the queue.Store contract on SQLite using the
// modernc.org/sqlite driver, for single-host deployments and tests that want
// a real relational store without a server.
//
// SQLite has no row-level locking, so the claim protocol leans on the
// database's single-writer model instead: Open configures one connection
// (WAL journal, MaxOpenConns 1), every claim runs select-then-delete inside
// one transaction, and transactions on one connection are strictly serial.
// Concurrent claimers therefore still never receive overlapping rows; they
// queue behind each other for the few microseconds a claim takes instead of
// skipping locked rows.
//
// Timestamps are stored as fixed-width UTC text so lexicographic comparison
// in SQL matches chronological order.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/taskforge/taskforge/pkg/queue"
)

// timeLayout is fixed-width so string comparison orders chronologically.
const timeLayout = "2006-01-02 15:04:05.000000000"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    task_type   TEXT NOT NULL,
    priority    INTEGER NOT NULL DEFAULT 100,
    payload     BLOB NOT NULL,
    maturity_at TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_claim_idx ON tasks(maturity_at, priority, created_at);
`

// Open opens (creating if needed) a SQLite database configured for the
// store's single-writer claim protocol.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite single writer
	return db, nil
}

// EnsureSchema creates the tasks table and claim index if they don't exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaDDL)
	return err
}

// Store implements queue.Store and queue.Waker over a single-writer SQLite
// handle. The wake channel is in-process only: it helps runners sharing this
// store instance, while runners in other processes rely on their poll.
type Store struct {
	db     *sql.DB
	unique queue.Uniqueness
	wake   chan struct{}

	mu     sync.Mutex
	closed bool
}

// New creates a store over a database opened with Open. unique may be nil, in
// which case no type is treated as unique. The handle is owned by the store
// from here on: Close closes it.
func New(db *sql.DB, unique queue.Uniqueness) (*Store, error) {
	if db == nil {
		return nil, queue.ErrStoreNil
	}
	return &Store{
		db:     db,
		unique: unique,
		wake:   make(chan struct{}, 1),
	}, nil
}

// Insert implements queue.Store. For unique task types the pending-row guard
// and the INSERT share one transaction; a found duplicate returns (nil, nil).
func (s *Store) Insert(ctx context.Context, task queue.Task, delay time.Duration) (*queue.TaskRecord, error) {
	if task == nil {
		return nil, queue.ErrTaskNil
	}
	if err := s.guardClosed(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	taskType := task.Type()
	if s.unique != nil && s.unique.IsUnique(taskType) {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM tasks WHERE task_type = ?)`, taskType,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check pending %s: %w", taskType, err)
		}
		if exists {
			return nil, nil // pending instance exists, skipped as duplicate
		}
	}

	now := time.Now().UTC()
	rec := queue.TaskRecord{
		ID:         uuid.New(),
		Type:       taskType,
		Priority:   queue.EffectivePriority(task),
		Payload:    payload,
		MaturityAt: now.Add(delay),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO tasks (id, task_type, priority, payload, maturity_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Type, rec.Priority, []byte(rec.Payload),
		rec.MaturityAt.Format(timeLayout), rec.CreatedAt.Format(timeLayout), rec.UpdatedAt.Format(timeLayout),
	); err != nil {
		return nil, fmt.Errorf("failed to insert task %s: %w", taskType, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit insert of %s: %w", taskType, err)
	}

	select {
	case s.wake <- struct{}{}:
	default: // a signal is already pending
	}
	return &rec, nil
}

// ClaimBatch implements queue.Store: select the oldest-highest-priority
// mature rows, delete exactly those, one transaction. The single connection
// serializes concurrent claims, so batches never overlap.
func (s *Store) ClaimBatch(ctx context.Context, batchSize int) ([]queue.TaskRecord, error) {
	if batchSize <= 0 {
		return nil, nil
	}
	if err := s.guardClosed(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rows, err := tx.QueryContext(ctx, `
SELECT id, task_type, priority, payload, maturity_at, created_at, updated_at
FROM tasks
WHERE maturity_at < ?
ORDER BY priority DESC, created_at ASC
LIMIT ?`,
		time.Now().UTC().Format(timeLayout), batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select claimable tasks: %w", err)
	}

	out, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, tx.Rollback()
	}

	placeholders := make([]string, len(out))
	args := make([]any, len(out))
	for i, rec := range out {
		placeholders[i] = "?"
		args[i] = rec.ID.String()
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tasks WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...,
	); err != nil {
		return nil, fmt.Errorf("failed to delete claimed tasks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return out, nil
}

func scanRecords(rows *sql.Rows) ([]queue.TaskRecord, error) {
	defer rows.Close()

	var out []queue.TaskRecord
	for rows.Next() {
		var (
			rec                queue.TaskRecord
			id                 string
			maturity, crt, upd string
		)
		if err := rows.Scan(&id, &rec.Type, &rec.Priority, (*[]byte)(&rec.Payload), &maturity, &crt, &upd); err != nil {
			return nil, fmt.Errorf("failed to scan claimed task: %w", err)
		}
		var err error
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse task id %q: %w", id, err)
		}
		if rec.MaturityAt, err = time.Parse(timeLayout, maturity); err != nil {
			return nil, fmt.Errorf("failed to parse maturity_at %q: %w", maturity, err)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, crt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at %q: %w", crt, err)
		}
		if rec.UpdatedAt, err = time.Parse(timeLayout, upd); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at %q: %w", upd, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Wake implements queue.Waker.
func (s *Store) Wake() <-chan struct{} {
	return s.wake
}

// Close implements queue.Store. Subsequent operations return
// queue.ErrStoreClosed; a second Close is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) guardClosed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return queue.ErrStoreClosed
	}
	return nil
}

// PendingCount reports the number of pending rows, for tests and diagnostics.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	if err := s.guardClosed(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM tasks`).Scan(&n)
	return n, err
}
