package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Runner is the worker-side control loop: it repeatedly claims a batch from
// the store, executes every claimed task concurrently, and re-enqueues
// retryable failures. Multiple runner processes may point at the same store;
// the store's row-level locking is the only coordination between them.
type Runner struct {
	store Store
	reg   *Registry

	batchSize    int
	pollInterval time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger

	mu    sync.Mutex // serializes Start/Stop transitions
	state atomic.Int32
	stop  chan struct{}
	done  chan struct{}
}

// NewRunner creates a runner over the given store and catalog.
func NewRunner(store Store, reg *Registry, opts ...RunnerOption) (*Runner, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if reg == nil {
		return nil, ErrRegistryNil
	}

	options := &runnerOptions{
		batchSize:    10,
		pollInterval: time.Second,
		errorBackoff: 5 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Runner{
		store:        store,
		reg:          reg,
		batchSize:    options.batchSize,
		pollInterval: options.pollInterval,
		errorBackoff: options.errorBackoff,
		logger:       options.logger,
	}, nil
}

// State reports the current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Start transitions the runner to running and begins the claim loop in the
// background. Returns ErrAlreadyRunning unless the runner is stopped.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if State(r.state.Load()) != StateStopped {
		return ErrAlreadyRunning
	}

	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.state.Store(int32(StateRunning))

	go r.run(ctx)

	r.logger.Info("runner started",
		slog.Int("batch_size", r.batchSize),
		slog.Duration("poll_interval", r.pollInterval))

	return nil
}

// Stop transitions to stopping, waits for the in-flight batch to drain, then
// closes the store and reports stopped. Safe to call repeatedly; only the
// first call closes the store.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch State(r.state.Load()) {
	case StateStopped:
		return nil
	case StateRunning:
		r.state.Store(int32(StateStopping))
		close(r.stop)
	}

	<-r.done

	err := r.store.Close()
	r.state.Store(int32(StateStopped))
	r.logger.Info("runner stopped")
	return err
}

// run is the claim loop. An empty claim sleeps for the poll interval (or an
// insert wake-up, whichever comes first); a non-empty claim executes all
// tasks concurrently, waits for the batch to drain, and loops again with no
// sleep. Store errors back off and never kill the loop.
func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	var wake <-chan struct{}
	if w, ok := r.store.(Waker); ok {
		wake = w.Wake()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		default:
		}

		records, err := r.store.ClaimBatch(ctx, r.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("claim batch failed, backing off",
				slog.Duration("backoff", r.errorBackoff),
				slog.String("error", err.Error()))
			if !r.sleep(ctx, r.errorBackoff, nil) {
				return
			}
			continue
		}

		if len(records) == 0 {
			if !r.sleep(ctx, r.pollInterval, wake) {
				return
			}
			continue
		}

		var wg sync.WaitGroup
		for _, rec := range records {
			wg.Add(1)
			go func(rec TaskRecord) {
				defer wg.Done()
				r.processRecord(rec)
			}(rec)
		}
		wg.Wait()
	}
}

// sleep blocks for d, an insert wake-up, a stop signal, or context
// cancellation. Reports whether the loop should keep going. A nil wake
// channel blocks forever, so stores without a Waker fall back to pure polling.
func (r *Runner) sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-r.stop:
		return false
	case <-timer.C:
		return true
	case <-wake:
		return true
	}
}

// processRecord reconstructs one claimed row and executes it. The row is
// already deleted from the store, so an unprocessable record is dropped and a
// retryable failure turns into a fresh insert.
func (r *Runner) processRecord(rec TaskRecord) {
	task, err := r.reg.Build(rec.Type, rec.Payload)
	if err != nil {
		r.logger.Error("dropping unprocessable task",
			slog.String("task_id", rec.ID.String()),
			slog.String("task_type", rec.Type),
			slog.String("error", err.Error()))
		return
	}

	start := time.Now()
	outcome := r.runTask(task)

	if outcome != Failure {
		r.logger.Debug("task finished",
			slog.String("task_id", rec.ID.String()),
			slog.String("task_type", rec.Type),
			slog.String("outcome", outcome.String()),
			slog.Duration("duration", time.Since(start)))
		return
	}

	delay := task.NextTry()
	if delay < 0 {
		r.logger.Warn("task abandoned",
			slog.String("task_id", rec.ID.String()),
			slog.String("task_type", rec.Type),
			slog.Int("tries", task.Meta().Tries))
		return
	}

	task.Meta().Tries++

	// Shutdown never interrupts in-flight work, so the retry insert runs on a
	// fresh context instead of the claim loop's.
	if _, err := r.store.Insert(context.Background(), task, delay); err != nil {
		r.logger.Error("failed to re-enqueue task for retry",
			slog.String("task_id", rec.ID.String()),
			slog.String("task_type", rec.Type),
			slog.String("error", err.Error()))
		return
	}

	r.logger.Info("task scheduled for retry",
		slog.String("task_type", rec.Type),
		slog.Int("tries", task.Meta().Tries),
		slog.Duration("delay", delay))
}

// runTask invokes Run with panic recovery; a panic is a Failure subject to
// the task's retry policy, never a process-level fault.
func (r *Runner) runTask(task Task) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("task panicked",
				slog.String("task_type", task.Type()),
				slog.Any("panic", p))
			out = Failure
		}
	}()
	return task.Run(context.Background())
}
