// Package pg bootstraps the PostgreSQL layer for the task queue using the
// pgx/v5 driver: connection pooling with retry, goose schema migrations, a
// health check closure, and error classifiers.
//
// The pieces are deliberately decoupled: Connect returns a plain
// *pgxpool.Pool that the pgstore package wraps, and Migrate applies the
// migrations shipped under pkg/pgstore/migrations before workers start
// claiming.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    // fatal: a worker without a store cannot run
//	}
//	if err := pg.Migrate(ctx, pool, cfg, slog.Default()); err != nil {
//	    // fatal
//	}
//
// Error classifiers such as IsSerializationError and IsDuplicateKeyError let
// callers sort transaction failures into the retryable and no-op buckets the
// queue's error taxonomy expects.
package pg
