package ffm

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Field restriction bounds used when Config.Restricted is set.
const (
	RestrictedMinAField = 10
	RestrictedMaxBField = 19
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid model configuration")
	ErrAllocation    = errors.New("weight allocation failed")
)

// Config holds construction parameters. They are fixed for the model's lifetime.
type Config struct {
	HashBits   uint        // Bits of hashed feature id (default: 20)
	Fields     int         // Number of fields (default: 30)
	Seed       int64       // Seed for latent weight initialization
	Restricted bool        // Restrict which field pairs may interact
	Eta        float32     // Learning rate (default: 0.2)
	Lambda     float32     // L2 regularization (default: 0)
	Logger     *zap.Logger // Construction logs (default: no-op)
}

// DefaultConfig returns the configuration used for production-sized models.
func DefaultConfig() Config {
	return Config{
		HashBits: 20,
		Fields:   30,
		Eta:      0.2,
		Lambda:   0.00002,
	}
}

// withDefaults fills zero fields with their defaults.
func (c Config) withDefaults() Config {
	if c.HashBits == 0 {
		c.HashBits = 20
	}
	if c.Fields == 0 {
		c.Fields = 30
	}
	if c.Eta == 0 {
		c.Eta = 0.2
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// validate rejects configurations that cannot form a model.
func (c Config) validate() error {
	switch {
	case c.HashBits > 31:
		return fmt.Errorf("%w: hash bits %d > 31", ErrInvalidConfig, c.HashBits)
	case c.Fields < 1:
		return fmt.Errorf("%w: fields %d < 1", ErrInvalidConfig, c.Fields)
	case uint64(c.Fields-1)<<c.HashBits > math.MaxUint32:
		return fmt.Errorf("%w: %d fields do not fit above %d hash bits", ErrInvalidConfig, c.Fields, c.HashBits)
	case !(c.Eta > 0) || math.IsInf(float64(c.Eta), 0):
		return fmt.Errorf("%w: eta %v must be positive and finite", ErrInvalidConfig, c.Eta)
	case !(c.Lambda >= 0) || math.IsInf(float64(c.Lambda), 0):
		return fmt.Errorf("%w: lambda %v must be non-negative and finite", ErrInvalidConfig, c.Lambda)
	}
	return nil
}

// fieldBounds returns (min_a_field, max_b_field) for the restriction policy.
func (c Config) fieldBounds() (minA, maxB uint32) {
	if c.Restricted {
		return RestrictedMinAField, RestrictedMaxBField
	}
	return 0, uint32(c.Fields)
}
