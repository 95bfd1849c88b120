package sensor

import (
	"context"
	"math/rand/v2"
)

// Simulated is a Sensor that returns readings around a base value.
// It stands in for real hardware during development.
type Simulated struct {
	base      int
	variation int
}

// Verify Simulated implements Sensor interface.
var _ Sensor = (*Simulated)(nil)

// NewSimulated creates a sensor returning base lux +/- variation.
func NewSimulated(base, variation int) *Simulated {
	if variation < 0 {
		variation = -variation
	}
	return &Simulated{
		base:      base,
		variation: variation,
	}
}

// ReadLux returns a simulated reading. It never goes below zero.
func (s *Simulated) ReadLux(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	lux := s.base
	if s.variation > 0 {
		lux += rand.IntN(2*s.variation+1) - s.variation
	}
	if lux < 0 {
		lux = 0
	}
	return lux, nil
}

// Close is a no-op for the simulated sensor.
func (s *Simulated) Close() error {
	return nil
}
