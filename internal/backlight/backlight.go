// Package backlight provides access to the display backlight brightness register.
package backlight

//go:generate mockgen -source=backlight.go -destination=mocks/backlight_mock.go -package=mocks

import "errors"

// ErrWriteFailed is returned when a brightness level could not be written.
var ErrWriteFailed = errors.New("backlight write failed")

// Backlight is a persisted integer brightness register.
// This interface allows for mocking in tests.
type Backlight interface {
	// Set writes a raw brightness level.
	Set(level int) error

	// Get reads the raw brightness level currently in effect.
	Get() (int, error)
}
