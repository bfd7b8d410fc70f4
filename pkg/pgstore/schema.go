package pgstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL mirrors migrations/00001_create_tasks_table.sql. Deployments run
// the goose migration; tests and local development call EnsureSchema.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS tasks (
    id          uuid PRIMARY KEY,
    task_type   text NOT NULL,
    priority    integer NOT NULL DEFAULT 100,
    payload     jsonb NOT NULL,
    maturity_at timestamptz NOT NULL DEFAULT now(),
    created_at  timestamptz NOT NULL DEFAULT now(),
    updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tasks_claim_idx ON tasks (maturity_at, priority, created_at);
CREATE INDEX IF NOT EXISTS tasks_type_idx ON tasks (task_type);
`

// EnsureSchema creates the tasks table and its claim index if they don't exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}
