// SPDX-License-Identifier: GPL-3.0-only

// Package tsl2561 drives the TAOS/AMS TSL2561 ambient light sensor over I2C.
package tsl2561

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/shini4i/ambient-backlight-daemon/internal/sensor"
)

const (
	// DefaultAddress is the I2C address with the ADDR pin floating.
	DefaultAddress uint16 = 0x39

	// MaxLux is reported when either ADC channel saturates.
	MaxLux = 65536
)

const (
	commandBit = 0x80
	wordBit    = 0x20

	regControl  = 0x00
	regTiming   = 0x01
	regID       = 0x0A
	regChan0Low = 0x0C
	regChan1Low = 0x0E

	powerOn  = 0x03
	powerOff = 0x00

	gain16x = 0x10
)

// Integration is the ADC integration time setting of the timing register.
type Integration byte

// Supported integration times.
const (
	Integration13ms  Integration = 0x00
	Integration101ms Integration = 0x01
	Integration402ms Integration = 0x02
)

// Wait returns how long a conversion takes, with a millisecond of margin.
func (i Integration) Wait() time.Duration {
	switch i {
	case Integration13ms:
		return 14 * time.Millisecond
	case Integration101ms:
		return 102 * time.Millisecond
	default:
		return 403 * time.Millisecond
	}
}

// clipThreshold is the raw count above which a channel is considered saturated.
func (i Integration) clipThreshold() uint16 {
	switch i {
	case Integration13ms:
		return 4900
	case Integration101ms:
		return 37000
	default:
		return 65000
	}
}

// IntegrationFor maps a nominal integration time to its register setting.
func IntegrationFor(d time.Duration) (Integration, error) {
	switch d {
	case 13 * time.Millisecond:
		return Integration13ms, nil
	case 101 * time.Millisecond:
		return Integration101ms, nil
	case 402 * time.Millisecond:
		return Integration402ms, nil
	}
	return 0, fmt.Errorf("unsupported integration time %s", d)
}

// Options configures the sensor. Gain is fixed; there is no automatic gain control.
type Options struct {
	Integration Integration
	HighGain    bool
}

// Conn is the register-level transport to the sensor.
// *i2c.Dev satisfies it; tests use an in-memory fake.
type Conn interface {
	Tx(w, r []byte) error
}

// ErrClosed is returned when a read is attempted on a closed device.
var ErrClosed = errors.New("tsl2561: device is closed")

// Device is a TSL2561 sensor. All methods are safe for concurrent use.
type Device struct {
	conn   Conn
	bus    io.Closer
	opts   Options
	mu     sync.Mutex
	closed bool
}

// Verify Device implements the sensor.Sensor interface.
var _ sensor.Sensor = (*Device)(nil)

// Open initialises the host drivers, opens the named I2C bus and checks the sensor ID.
func Open(busName string, addr uint16, opts Options) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: init host drivers: %w", sensor.ErrUnavailable, err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("%w: open i2c bus %q: %w", sensor.ErrUnavailable, busName, err)
	}

	d, err := New(&i2c.Dev{Bus: bus, Addr: addr}, opts)
	if err != nil {
		if closeErr := bus.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}
	d.bus = bus
	return d, nil
}

// New checks the sensor ID behind conn and applies the timing options.
// The sensor is left powered down between reads.
func New(conn Conn, opts Options) (*Device, error) {
	d := &Device{conn: conn, opts: opts}

	id, err := d.readByte(regID)
	if err != nil {
		return nil, fmt.Errorf("%w: read id register: %w", sensor.ErrUnavailable, err)
	}
	if part := id >> 4; part != 0x1 && part != 0x5 {
		return nil, fmt.Errorf("%w: unexpected part id 0x%02x", sensor.ErrUnavailable, id)
	}

	timing := byte(opts.Integration)
	if opts.HighGain {
		timing |= gain16x
	}
	if err := d.writeByte(regTiming, timing); err != nil {
		return nil, fmt.Errorf("%w: write timing register: %w", sensor.ErrUnavailable, err)
	}
	if err := d.writeByte(regControl, powerOff); err != nil {
		return nil, fmt.Errorf("%w: power down: %w", sensor.ErrUnavailable, err)
	}

	return d, nil
}

// ReadLux powers the sensor up, waits one integration period, reads both channels
// and powers it down again.
func (d *Device) ReadLux(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, fmt.Errorf("%w: %w", sensor.ErrUnavailable, ErrClosed)
	}

	if err := d.writeByte(regControl, powerOn); err != nil {
		return 0, fmt.Errorf("%w: power up: %w", sensor.ErrUnavailable, err)
	}

	timer := time.NewTimer(d.opts.Integration.Wait())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		// Best effort: the next read powers up again anyway.
		_ = d.writeByte(regControl, powerOff)
		return 0, ctx.Err()
	case <-timer.C:
	}

	broadband, err := d.readWord(regChan0Low)
	if err != nil {
		return 0, fmt.Errorf("%w: read channel 0: %w", sensor.ErrUnavailable, err)
	}
	ir, err := d.readWord(regChan1Low)
	if err != nil {
		return 0, fmt.Errorf("%w: read channel 1: %w", sensor.ErrUnavailable, err)
	}

	if err := d.writeByte(regControl, powerOff); err != nil {
		return 0, fmt.Errorf("%w: power down: %w", sensor.ErrUnavailable, err)
	}

	return CalculateLux(broadband, ir, d.opts), nil
}

// Close powers the sensor down and releases the bus if Open created it.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if err := d.writeByte(regControl, powerOff); err != nil {
		errs = append(errs, fmt.Errorf("power down: %w", err))
	}
	if d.bus != nil {
		if err := d.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close i2c bus: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (d *Device) readByte(reg byte) (byte, error) {
	r := make([]byte, 1)
	if err := d.conn.Tx([]byte{commandBit | reg}, r); err != nil {
		return 0, err
	}
	return r[0], nil
}

func (d *Device) readWord(reg byte) (uint16, error) {
	r := make([]byte, 2)
	if err := d.conn.Tx([]byte{commandBit | wordBit | reg}, r); err != nil {
		return 0, err
	}
	return uint16(r[0]) | uint16(r[1])<<8, nil
}

func (d *Device) writeByte(reg, value byte) error {
	return d.conn.Tx([]byte{commandBit | reg, value}, nil)
}
