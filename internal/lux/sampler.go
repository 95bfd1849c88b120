// SPDX-License-Identifier: GPL-3.0-only

package lux

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/ambient-backlight-daemon/internal/sensor"
)

// DefaultInterval is the pause between two sensor reads.
const DefaultInterval = 500 * time.Millisecond

// Sampler reads the sensor, keeps a rolling window of readings and publishes the
// window average to a Shared cell after every successful read.
type Sampler struct {
	sensor      sensor.Sensor
	window      *Window
	shared      *Shared
	interval    time.Duration
	maxFailures int
}

// SamplerOption is a functional option for configuring a Sampler.
type SamplerOption func(*Sampler)

// WithInterval sets the pause between reads.
func WithInterval(d time.Duration) SamplerOption {
	return func(s *Sampler) {
		s.interval = d
	}
}

// WithMaxFailures makes Run give up after n consecutive failed reads. 0 never gives up.
func WithMaxFailures(n int) SamplerOption {
	return func(s *Sampler) {
		s.maxFailures = n
	}
}

// NewSampler creates a sampler averaging over size readings.
func NewSampler(src sensor.Sensor, shared *Shared, size int, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		sensor:   src,
		window:   NewWindow(size),
		shared:   shared,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run samples until ctx is cancelled. It returns nil on cancellation and an error
// wrapping sensor.ErrUnavailable when the failure limit is reached.
func (s *Sampler) Run(ctx context.Context) error {
	log.Info().
		Int("window", s.window.Cap()).
		Dur("interval", s.interval).
		Msg("Starting lux sampler")

	failures := 0
	for {
		if ctx.Err() != nil {
			log.Info().Msg("Stopping lux sampler")
			return nil
		}

		if err := s.sampleOnce(ctx); err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("Stopping lux sampler")
				return nil
			}

			failures++
			log.Error().
				Err(err).
				Int("consecutiveFailures", failures).
				Msg("Failed to read light sensor")

			if s.maxFailures > 0 && failures >= s.maxFailures {
				return fmt.Errorf("%w: %d consecutive read failures: %w", sensor.ErrUnavailable, failures, err)
			}
		} else {
			failures = 0
		}

		if !sleep(ctx, s.interval) {
			log.Info().Msg("Stopping lux sampler")
			return nil
		}
	}
}

// sampleOnce performs one read and, on success, publishes the new average.
func (s *Sampler) sampleOnce(ctx context.Context) error {
	reading, err := s.sensor.ReadLux(ctx)
	if err != nil {
		return err
	}

	s.window.Add(reading)
	avg, ok := s.window.Mean()
	if !ok {
		return nil
	}
	s.shared.Store(avg)

	log.Debug().
		Int("lux", reading).
		Int("avg", avg).
		Int("samples", s.window.Len()).
		Msg("Lux reading")
	return nil
}

// sleep waits for d or until ctx is done. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
