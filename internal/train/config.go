package train

import (
	"errors"
	"fmt"

	"github.com/born-ml/ffm/internal/dataset"
)

// ErrInvalidConfig is returned for trainer settings that cannot be used.
var ErrInvalidConfig = errors.New("invalid trainer configuration")

// Config holds trainer settings.
type Config struct {
	Data           dataset.Options // Parsing options for both streams
	Keep           float64         // Dropout keep probability (default: 1, no dropout)
	DropoutSeed    uint64          // Seed for dropout masks
	PositiveWeight float32         // Loss weight of positive examples (default: 1)
	LogEvery       int64           // Progress log interval in examples (default: 100000)
	BatchSize      int             // Examples per Hogwild or scoring batch (default: 1024)
	Workers        int             // Goroutines for scoring and Hogwild (default: 1)
	Hogwild        bool            // Apply updates from Workers goroutines without locking
}

// DefaultConfig returns the trainer defaults.
func DefaultConfig() Config {
	return Config{
		Keep:           1,
		PositiveWeight: 1,
		LogEvery:       100_000,
		BatchSize:      1024,
		Workers:        1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Keep == 0 {
		c.Keep = d.Keep
	}
	if c.PositiveWeight == 0 {
		c.PositiveWeight = d.PositiveWeight
	}
	if c.LogEvery == 0 {
		c.LogEvery = d.LogEvery
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	return c
}

func (c Config) validate() error {
	switch {
	case !(c.Keep > 0 && c.Keep <= 1):
		return fmt.Errorf("%w: keep %v not in (0, 1]", ErrInvalidConfig, c.Keep)
	case !(c.PositiveWeight > 0):
		return fmt.Errorf("%w: positive weight %v must be positive", ErrInvalidConfig, c.PositiveWeight)
	case c.LogEvery < 0:
		return fmt.Errorf("%w: log interval %d", ErrInvalidConfig, c.LogEvery)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch size %d", ErrInvalidConfig, c.BatchSize)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// hogwild reports whether updates run concurrently.
func (c Config) hogwild() bool {
	return c.Hogwild && c.Workers > 1
}
