package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Definition declares a task type: its constructor plus optional recurrence
// and uniqueness metadata.
type Definition struct {
	// Type is the name the task is registered and persisted under.
	Type string

	// New constructs a fresh instance with zero tries. Must not be nil.
	New func() Task

	// Recurrence, when non-nil, makes the scheduler insert a fresh instance
	// on this schedule. Nil means the type is only enqueued explicitly.
	Recurrence Schedule

	// Unique restricts the type to at most one pending row at a time.
	Unique bool
}

// Registry is the process-wide task catalog. Construct one instance at
// startup, register every task type, then pass it by reference into the
// stores, runner, and scheduler. Read-mostly after startup.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty task catalog.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register upserts a task definition. The last registration for a given type
// wins. Registration must happen before the runner or scheduler start
// building instances of the type.
func (r *Registry) Register(def Definition) error {
	if def.Type == "" {
		return ErrTypeMissing
	}
	if def.New == nil {
		return fmt.Errorf("%w: %s", ErrConstructorMissing, def.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Type] = def
	return nil
}

// Build constructs a fresh instance of taskType and, when payload is
// non-empty, applies its fields over the constructor defaults. This is how a
// claimed row's retry state and task-specific fields are reconstructed.
// Returns ErrUnknownTaskType for types that were never registered.
func (r *Registry) Build(taskType string, payload json.RawMessage) (Task, error) {
	r.mu.RLock()
	def, ok := r.defs[taskType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}

	task := def.New()
	if task == nil {
		return nil, fmt.Errorf("%w: %s returned nil", ErrConstructorMissing, taskType)
	}
	task.Meta().CreatedAt = time.Now()

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, task); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrPayloadUnmarshal, taskType, err)
		}
	}
	return task, nil
}

// Recurring returns a snapshot of every type registered with a recurrence
// schedule. Registrations made after the snapshot are not observed by a
// scheduler that already read it.
func (r *Registry) Recurring() map[string]Schedule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Schedule)
	for name, def := range r.defs {
		if def.Recurrence != nil {
			out[name] = def.Recurrence
		}
	}
	return out
}

// IsUnique reports whether the type allows at most one pending row. Unknown
// types are not unique.
func (r *Registry) IsUnique(taskType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[taskType]
	return ok && def.Unique
}

// Types returns the registered type names, for diagnostics.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	return names
}

// Uniqueness is the part of the catalog a store needs: whether a task type is
// restricted to one pending row. *Registry implements it.
type Uniqueness interface {
	IsUnique(taskType string) bool
}

var _ Uniqueness = (*Registry)(nil)
