package config

import (
	"fmt"
	"time"
)

// EngineConfig tunes the reconciliation scheduler.
type EngineConfig struct {
	// Debounce is the quiet period after the last cart mutation before a pass runs.
	Debounce time.Duration `envconfig:"DEBOUNCE" default:"150ms" validate:"gt=0"`

	// MinInterval is the floor between two passes, whatever triggered them.
	MinInterval time.Duration `envconfig:"MIN_INTERVAL" default:"80ms" validate:"gt=0"`

	// SlowMinInterval replaces MinInterval once a mutation takes longer than SlowThreshold.
	SlowMinInterval time.Duration `envconfig:"SLOW_MIN_INTERVAL" default:"200ms" validate:"gt=0"`
	SlowThreshold   time.Duration `envconfig:"SLOW_THRESHOLD" default:"600ms" validate:"gt=0"`

	// PeriodicInterval drives the secondary init: campaign prefetch plus a scheduled pass.
	PeriodicInterval time.Duration `envconfig:"PERIODIC_INTERVAL" default:"30s" validate:"min=1s"`
}

// Validate checks the relationships between the scheduler durations.
func (c *EngineConfig) Validate() error {
	if c.SlowMinInterval < c.MinInterval {
		return fmt.Errorf("slow_min_interval (%s) cannot be lower than min_interval (%s)", c.SlowMinInterval, c.MinInterval)
	}
	return nil
}
