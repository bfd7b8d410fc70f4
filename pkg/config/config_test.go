package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/taskforge/pkg/config"
)

type workerConfig struct {
	Name         string        `env:"WORKER_NAME" envDefault:"worker"`
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"WORKER_BATCH_SIZE" envDefault:"10"`
}

type brokenConfig struct {
	Count int `env:"CONFIG_TEST_BROKEN_COUNT"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var cfg workerConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "worker", cfg.Name)
		assert.Equal(t, time.Second, cfg.PollInterval)
		assert.Equal(t, 10, cfg.BatchSize)
	})

	t.Run("cached after first load", func(t *testing.T) {
		var first workerConfig
		require.NoError(t, config.Load(&first))

		// Environment changes after the first load are not observed.
		t.Setenv("WORKER_BATCH_SIZE", "99")
		var second workerConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first, second)
	})

	t.Run("nil pointer", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[workerConfig](nil), config.ErrNilPointer)
	})

	t.Run("unparsable value", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_BROKEN_COUNT", "not-a-number")
		var cfg brokenConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})
}

func TestMustLoad(t *testing.T) {
	t.Setenv("CONFIG_TEST_BROKEN_COUNT", "still-not-a-number")
	assert.Panics(t, func() {
		var cfg brokenConfig
		config.MustLoad(&cfg)
	})
}
