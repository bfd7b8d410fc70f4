package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultPriority is assigned to tasks that do not set an explicit priority.
// Higher values are served first.
const DefaultPriority = 100

// Outcome is the completion status returned by a task's Run method.
type Outcome int8

const (
	// Success means the task completed and no further action is taken.
	Success Outcome = iota
	// Failure means the task failed and its retry policy decides what happens next.
	Failure
	// Ignored means the task chose not to act; treated like Success.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Ignored:
		return "ignored"
	default:
		return "unknown"
	}
}

// TaskRecord is the persisted shape of a pending task. A record exists in the
// store if and only if the task has not been claimed; claiming removes it.
type TaskRecord struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Priority   int             `json:"priority"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	MaturityAt time.Time       `json:"maturity_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
