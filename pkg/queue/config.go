package queue

import "time"

// Config holds the externally supplied knobs for the runner loop.
type Config struct {
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"QUEUE_BATCH_SIZE" envDefault:"10"`
	ErrorBackoff time.Duration `env:"QUEUE_ERROR_BACKOFF" envDefault:"5s"`
}
