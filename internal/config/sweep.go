package config

import (
	"fmt"
	"time"
)

type Sweep struct {
	Schedule string        `env:"SWEEP_SCHEDULE" envDefault:"0 0 * * *" validate:"required,cron"`
	Timezone string        `env:"SWEEP_TIMEZONE" envDefault:"Local" validate:"required"`
	Timeout  time.Duration `env:"SWEEP_TIMEOUT" envDefault:"5m" validate:"gt=0"`
}

// Location resolves Timezone. "Local" is the server's local time.
func (s Sweep) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", s.Timezone, err)
	}
	return loc, nil
}
