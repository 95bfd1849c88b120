// Package gpio provides the night mode output pin with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

//go:generate mockgen -source=gpio.go -destination=mocks/gpio_mock.go -package=mocks

import "errors"

// ErrNotSupported is returned by the real pin on platforms without GPIO character devices.
var ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Pin is a single digital output line.
type Pin interface {
	// Read returns the current level of the line. true = high.
	Read() (bool, error)

	// Write drives the line. true = high.
	Write(on bool) error

	// Close returns the line to a safe state and releases it.
	Close() error
}

// DefaultChip is the GPIO chip of the Raspberry Pi header pins.
const DefaultChip = "gpiochip0"

// Options configures the real pin.
type Options struct {
	Chip string
	// SwitchDirection reconfigures the line as input before every read and back to
	// output on every write, for platforms that cannot read back an output line.
	SwitchDirection bool
}
