// Package pgstore implements the queue.Store contract on PostgreSQL using the
// pgx/v5 driver.
//
// Claiming relies on FOR UPDATE SKIP LOCKED: a single DELETE ... RETURNING
// statement selects up to a batch of mature rows ordered by priority then age,
// locks them, skips rows held by concurrent claimers, and removes them — all
// within one transaction. Two concurrent claimers therefore never receive
// overlapping rows and never wait on each other.
//
// Inserts of unique task types run a pending-row guard and the INSERT in one
// transaction. Under READ COMMITTED a narrow window remains in which two
// concurrent inserts of the same unique type both pass the guard; deployments
// that cannot tolerate an occasional duplicate should add a partial unique
// index on task_type for the types concerned.
//
// Every insert publishes a pg_notify message on the taskforge_task_insert
// channel inside the same transaction. ListenWake turns those messages into a
// queue.Waker channel so idle runners skip their fallback sleep. The signal is
// purely advisory: lost notifications cost latency, never work, because the
// runner's poll interval independently re-checks the table.
//
// The tasks table is created either by the goose migration shipped under
// migrations/ (see the pg package's Migrate helper) or by EnsureSchema for
// tests and local development.
package pgstore
