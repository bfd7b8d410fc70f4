package queue

import (
	"context"
	"time"
)

// NoRetry is the sentinel NextTry returns when a failed task must be abandoned.
const NoRetry = time.Duration(-1)

type (
	// Task is the runtime contract every task variant implements. Instances
	// are transient: born from a scheduler tick or reconstructed from a
	// claimed row, destroyed after Run returns. A retryable failure inserts a
	// new row carrying the incremented try counter; the original row is gone.
	Task interface {
		// Type is the registered name of the task variant.
		Type() string

		// Run executes the task's business logic and reports the outcome.
		// Panics are recovered by the runner and converted to Failure.
		Run(ctx context.Context) Outcome

		// NextTry maps the current try count to the delay before the next
		// attempt. A negative duration (NoRetry) abandons the task.
		NextTry() time.Duration

		// Meta exposes the queue-owned state shared by all variants.
		Meta() *Meta
	}
)

// Meta is the embeddable base state of a task variant. Its fields are part of
// the serialized payload, so the try counter and priority survive the
// re-insert cycle. Embed it by value and construct variants as pointers.
type Meta struct {
	Priority  int       `json:"priority"`
	Tries     int       `json:"tries"`
	CreatedAt time.Time `json:"created_at"`
}

// Meta implements the Task interface for embedders.
func (m *Meta) Meta() *Meta { return m }

// NextTry is the default retry policy: abandon on first failure. Variants
// that want retries override it, typically via RetryEvery.
func (m *Meta) NextTry() time.Duration { return NoRetry }

// RetryEvery is a fixed retry policy helper: retry up to max times, delay
// apart, then stop.
func (m *Meta) RetryEvery(delay time.Duration, max int) time.Duration {
	if m.Tries >= max {
		return NoRetry
	}
	return delay
}

// RetryBackoff is an exponential retry policy helper: base, 2*base, 4*base...
// capped at ceil, up to max attempts.
func (m *Meta) RetryBackoff(base, ceil time.Duration, max int) time.Duration {
	if m.Tries >= max {
		return NoRetry
	}
	d := base << m.Tries
	if d > ceil || d <= 0 {
		d = ceil
	}
	return d
}

// EffectivePriority normalizes the zero value to DefaultPriority so stores
// never persist an accidental lowest-priority row.
func EffectivePriority(t Task) int {
	if p := t.Meta().Priority; p != 0 {
		return p
	}
	return DefaultPriority
}
