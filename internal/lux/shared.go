// Package lux acquires ambient light readings, smooths them over a rolling window
// and publishes the average for the controller.
package lux

import "sync/atomic"

// Initial is the value of a Shared cell before the first average is published.
// It means "just started", not "dark".
const Initial = 1

// Shared is a single-slot lux value written by the sampler and read by the controller.
// Reads never block and always return the most recently published average.
type Shared struct {
	value atomic.Int64
}

// NewShared returns a cell holding Initial.
func NewShared() *Shared {
	s := &Shared{}
	s.value.Store(Initial)
	return s
}

// Load returns the latest published average.
func (s *Shared) Load() int {
	return int(s.value.Load())
}

// Store publishes a new average.
func (s *Shared) Store(lux int) {
	s.value.Store(int64(lux))
}
