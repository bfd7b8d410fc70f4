// Package queue implements a durable, priority-ordered task queue backed by a
// relational store, with delayed execution, automatic retries, uniqueness
// constraints, and recurring work.
//
// The package is organised around four components:
//
//   - Registry  — declarative catalog mapping a task type to its constructor,
//     recurrence schedule, and uniqueness flag
//   - Store     — the only component that touches the relational engine; owns
//     insertion, uniqueness checks, and atomic batch claiming
//   - Runner    — a long-lived loop that claims batches, executes tasks, and
//     re-enqueues retryable failures
//   - Scheduler — a long-lived loop that periodically inserts fresh instances
//     of every recurring task type
//
// Components interact only through the Store and Registry interfaces, so the
// queue can be backed by any relational engine that provides row-level
// locking with a skip-locked read mode. PostgreSQL and SQLite implementations
// live in the pgstore and sqlitestore packages; MemStore in this package
// serves tests and local development.
//
// # Claiming protocol
//
// A row exists in the task table if and only if the task is pending. Claiming
// selects up to a batch of mature rows ordered by priority (descending) then
// insertion time (ascending), and deletes them in the same transaction.
// Concurrent claimers never receive overlapping rows and never block on each
// other. The deliberate consequence is exactly-once claim, not exactly-once
// execution: a worker crash after claim loses the batch.
//
// # Usage
//
//	reg := queue.NewRegistry()
//	_ = reg.Register(queue.Definition{
//	    Type:       "SendEmail",
//	    New:        func() queue.Task { return &SendEmail{} },
//	})
//	_ = reg.Register(queue.Definition{
//	    Type:       "HealthCheck",
//	    New:        func() queue.Task { return &HealthCheck{} },
//	    Recurrence: queue.Every(time.Minute),
//	    Unique:     true,
//	})
//
//	store := queue.NewMemStore(reg)
//	runner, _ := queue.NewRunner(store, reg)
//	_ = runner.Start(context.Background())
//	defer runner.Stop()
//
// # Error Handling
//
// Package-level sentinel errors (e.g. ErrUnknownTaskType, ErrStoreClosed)
// signal contract violations and can be checked with errors.Is. Failures
// inside one task never abort the batch or the loop; only store-level
// transaction failures cause a loop iteration to back off.
package queue
