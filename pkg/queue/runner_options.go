package queue

import (
	"log/slog"
	"time"
)

// RunnerOption is a functional option for configuring a runner
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	batchSize    int
	pollInterval time.Duration
	errorBackoff time.Duration
	logger       *slog.Logger
}

// WithBatchSize sets how many rows a single claim may take
func WithBatchSize(n int) RunnerOption {
	return func(o *runnerOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithPollInterval sets the fallback sleep between empty claims
func WithPollInterval(d time.Duration) RunnerOption {
	return func(o *runnerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithErrorBackoff sets the pause after a store-level failure
func WithErrorBackoff(d time.Duration) RunnerOption {
	return func(o *runnerOptions) {
		if d > 0 {
			o.errorBackoff = d
		}
	}
}

// WithRunnerLogger sets the logger for the runner
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(o *runnerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig applies an environment-loaded Config in one call
func WithConfig(cfg Config) RunnerOption {
	return func(o *runnerOptions) {
		if cfg.BatchSize > 0 {
			o.batchSize = cfg.BatchSize
		}
		if cfg.PollInterval > 0 {
			o.pollInterval = cfg.PollInterval
		}
		if cfg.ErrorBackoff > 0 {
			o.errorBackoff = cfg.ErrorBackoff
		}
	}
}
