package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore implements Store and Waker in memory for tests and local
// development. It honors the same ordering, maturity, and uniqueness
// semantics as the relational backends, with the whole-store mutex standing
// in for row-level locking.
type MemStore struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]*TaskRecord
	seq    map[uuid.UUID]uint64 // insertion order, breaks created-at ties
	next   uint64
	unique Uniqueness
	wake   chan struct{}
	closed bool
}

// NewMemStore creates an in-memory store. unique may be nil, in which case no
// type is treated as unique.
func NewMemStore(unique Uniqueness) *MemStore {
	return &MemStore{
		rows:   make(map[uuid.UUID]*TaskRecord),
		seq:    make(map[uuid.UUID]uint64),
		unique: unique,
		wake:   make(chan struct{}, 1),
	}
}

// Insert implements Store.
func (ms *MemStore) Insert(ctx context.Context, task Task, delay time.Duration) (*TaskRecord, error) {
	if task == nil {
		return nil, ErrTaskNil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return nil, ErrStoreClosed
	}

	taskType := task.Type()
	if ms.unique != nil && ms.unique.IsUnique(taskType) {
		for _, rec := range ms.rows {
			if rec.Type == taskType {
				return nil, nil // pending instance exists, skipped as duplicate
			}
		}
	}

	now := time.Now()
	rec := TaskRecord{
		ID:         uuid.New(),
		Type:       taskType,
		Priority:   EffectivePriority(task),
		Payload:    payload,
		MaturityAt: now.Add(delay),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ms.rows[rec.ID] = &rec
	ms.seq[rec.ID] = ms.next
	ms.next++

	// Advisory wake-up; a full buffer means a signal is already pending.
	select {
	case ms.wake <- struct{}{}:
	default:
	}

	out := rec
	return &out, nil
}

// ClaimBatch implements Store.
func (ms *MemStore) ClaimBatch(ctx context.Context, batchSize int) ([]TaskRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.closed {
		return nil, ErrStoreClosed
	}

	now := time.Now()
	mature := make([]*TaskRecord, 0, len(ms.rows))
	for _, rec := range ms.rows {
		if rec.MaturityAt.Before(now) {
			mature = append(mature, rec)
		}
	}

	sort.Slice(mature, func(i, j int) bool {
		a, b := mature[i], mature[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return ms.seq[a.ID] < ms.seq[b.ID]
	})

	if len(mature) > batchSize {
		mature = mature[:batchSize]
	}

	out := make([]TaskRecord, 0, len(mature))
	for _, rec := range mature {
		out = append(out, *rec)
		delete(ms.rows, rec.ID)
		delete(ms.seq, rec.ID)
	}
	return out, nil
}

// Wake implements Waker.
func (ms *MemStore) Wake() <-chan struct{} {
	return ms.wake
}

// Close implements Store. Subsequent operations return ErrStoreClosed.
func (ms *MemStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	return nil
}

// Pending returns a snapshot of the pending rows, for tests and diagnostics.
func (ms *MemStore) Pending() []TaskRecord {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]TaskRecord, 0, len(ms.rows))
	for _, rec := range ms.rows {
		out = append(out, *rec)
	}
	return out
}
