// Package sensor defines the ambient light sensor capability used by the sampler.
package sensor

//go:generate mockgen -source=sensor.go -destination=mocks/sensor_mock.go -package=mocks

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the sensor could not be reached or did not answer.
var ErrUnavailable = errors.New("sensor unavailable")

// Sensor yields raw ambient light readings.
// This interface allows for mocking in tests.
type Sensor interface {
	// ReadLux returns the current illuminance in lux.
	// The call may block for a device-defined integration time.
	ReadLux(ctx context.Context) (int, error)

	// Close releases the underlying device.
	Close() error
}
