package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler inserts a fresh instance of every recurring task type on its
// registered schedule. Each type runs an independent, uncoordinated cycle.
// Run at most one scheduler per deployment for non-unique recurring types;
// extra schedulers are safe but produce duplicate inserts.
type Scheduler struct {
	store Store
	reg   *Registry

	errorBackoff time.Duration
	logger       *slog.Logger

	mu    sync.Mutex // serializes Start/Stop transitions
	state atomic.Int32
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewScheduler creates a scheduler over the given store and catalog.
func NewScheduler(store Store, reg *Registry, opts ...SchedulerOption) (*Scheduler, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if reg == nil {
		return nil, ErrRegistryNil
	}

	options := &schedulerOptions{
		errorBackoff: 5 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		store:        store,
		reg:          reg,
		errorBackoff: options.errorBackoff,
		logger:       options.logger,
	}, nil
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Start snapshots the recurring registrations, runs every type's initial tick
// (concurrently, returning only once all have completed), then leaves a
// background cycle per type running until Stop. Later registrations are not
// observed.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if State(s.state.Load()) != StateStopped {
		return ErrAlreadyRunning
	}

	recurring := s.reg.Recurring()
	if len(recurring) == 0 {
		return ErrNoRecurringTasks
	}

	s.stop = make(chan struct{})
	s.state.Store(int32(StateRunning))

	var initial sync.WaitGroup
	for name := range recurring {
		initial.Add(1)
		go func(name string) {
			defer initial.Done()
			s.tick(ctx, name)
		}(name)
	}
	initial.Wait()

	for name, sched := range recurring {
		s.wg.Add(1)
		go s.cycle(ctx, name, sched)
	}

	s.logger.Info("scheduler started", slog.Int("recurring_types", len(recurring)))
	return nil
}

// Stop cancels the per-type timers, waits for cycles to exit, then closes the
// store. Safe to call repeatedly; only the first call closes the store.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch State(s.state.Load()) {
	case StateStopped:
		return nil
	case StateRunning:
		s.state.Store(int32(StateStopping))
		close(s.stop)
	}

	s.wg.Wait()

	err := s.store.Close()
	s.state.Store(int32(StateStopped))
	s.logger.Info("scheduler stopped")
	return err
}

// cycle fires one recurring type on its schedule. A failed tick retries after
// the error backoff instead of waiting out the full interval.
func (s *Scheduler) cycle(ctx context.Context, name string, sched Schedule) {
	defer s.wg.Done()

	timer := time.NewTimer(time.Until(sched.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-timer.C:
			if ok := s.tick(ctx, name); !ok {
				timer.Reset(s.errorBackoff)
				continue
			}
			timer.Reset(time.Until(sched.Next(time.Now())))
		}
	}
}

// tick builds a fresh instance of the type and inserts it with zero delay.
// A unique type with a pending row silently skips the tick. Reports whether
// the tick can be considered done (skips count as done, store errors do not).
func (s *Scheduler) tick(ctx context.Context, name string) bool {
	task, err := s.reg.Build(name, nil)
	if err != nil {
		s.logger.Error("failed to build recurring task",
			slog.String("task_type", name),
			slog.String("error", err.Error()))
		return true // registration bug, retrying will not help
	}

	rec, err := s.store.Insert(ctx, task, 0)
	if err != nil {
		s.logger.Error("failed to insert recurring task",
			slog.String("task_type", name),
			slog.String("error", err.Error()))
		return false
	}

	if rec == nil {
		s.logger.Debug("recurring task already pending, tick skipped",
			slog.String("task_type", name))
		return true
	}

	s.logger.Debug("recurring task inserted",
		slog.String("task_type", name),
		slog.String("task_id", rec.ID.String()))
	return true
}
