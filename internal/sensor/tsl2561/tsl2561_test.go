// SPDX-License-Identifier: GPL-3.0-only

package tsl2561

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shini4i/ambient-backlight-daemon/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus emulates the TSL2561 register file.
type fakeBus struct {
	mu        sync.Mutex
	id        byte
	channel0  uint16
	channel1  uint16
	writes    [][2]byte
	failAfter int // fail every transaction after this many, 0 = never
	calls     int
}

func (f *fakeBus) Tx(w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return errors.New("i2c: remote i/o error")
	}
	if len(w) == 0 || w[0]&commandBit == 0 {
		return errors.New("missing command bit")
	}

	reg := w[0] & 0x0F
	if len(w) == 2 {
		f.writes = append(f.writes, [2]byte{reg, w[1]})
		return nil
	}

	switch reg {
	case regID:
		r[0] = f.id
	case regChan0Low:
		r[0], r[1] = byte(f.channel0), byte(f.channel0>>8)
	case regChan1Low:
		r[0], r[1] = byte(f.channel1), byte(f.channel1>>8)
	default:
		return errors.New("unexpected register read")
	}
	return nil
}

func (f *fakeBus) lastWrite(reg byte) (byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.writes) - 1; i >= 0; i-- {
		if f.writes[i][0] == reg {
			return f.writes[i][1], true
		}
	}
	return 0, false
}

func TestNew_ConfiguresTiming(t *testing.T) {
	tests := []struct {
		name           string
		opts           Options
		expectedTiming byte
	}{
		{name: "402ms low gain", opts: Options{Integration: Integration402ms}, expectedTiming: 0x02},
		{name: "101ms high gain", opts: Options{Integration: Integration101ms, HighGain: true}, expectedTiming: 0x11},
		{name: "13ms low gain", opts: Options{Integration: Integration13ms}, expectedTiming: 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &fakeBus{id: 0x50}
			_, err := New(bus, tt.opts)
			require.NoError(t, err)

			timing, ok := bus.lastWrite(regTiming)
			require.True(t, ok)
			assert.Equal(t, tt.expectedTiming, timing)

			control, ok := bus.lastWrite(regControl)
			require.True(t, ok)
			assert.Equal(t, byte(powerOff), control)
		})
	}
}

func TestNew_RejectsUnknownPart(t *testing.T) {
	_, err := New(&fakeBus{id: 0x90}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrUnavailable)
	assert.Contains(t, err.Error(), "part id")
}

func TestNew_AcceptsCSPackage(t *testing.T) {
	_, err := New(&fakeBus{id: 0x11}, Options{})
	assert.NoError(t, err)
}

func TestNew_BusError(t *testing.T) {
	bus := &fakeBus{id: 0x50, failAfter: 1}
	_, err := New(bus, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrUnavailable)
}

func TestDevice_ReadLux(t *testing.T) {
	bus := &fakeBus{id: 0x50, channel0: 1000, channel1: 200}
	d, err := New(bus, Options{Integration: Integration13ms})
	require.NoError(t, err)

	lux, err := d.ReadLux(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CalculateLux(1000, 200, Options{Integration: Integration13ms}), lux)

	// Sensor is powered down after the read.
	control, _ := bus.lastWrite(regControl)
	assert.Equal(t, byte(powerOff), control)
}

func TestDevice_ReadLux_BusFailure(t *testing.T) {
	bus := &fakeBus{id: 0x50, failAfter: 3}
	d, err := New(bus, Options{Integration: Integration13ms})
	require.NoError(t, err)

	_, err = d.ReadLux(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrUnavailable)
}

func TestDevice_ReadLux_Cancelled(t *testing.T) {
	bus := &fakeBus{id: 0x50}
	d, err := New(bus, Options{Integration: Integration402ms})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err = d.ReadLux(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), Integration402ms.Wait())

	control, _ := bus.lastWrite(regControl)
	assert.Equal(t, byte(powerOff), control)
}

func TestDevice_Close(t *testing.T) {
	bus := &fakeBus{id: 0x50}
	d, err := New(bus, Options{Integration: Integration13ms})
	require.NoError(t, err)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close(), "close should be idempotent")

	_, err = d.ReadLux(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, sensor.ErrUnavailable)
}

func TestIntegrationFor(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected Integration
		wantErr  bool
	}{
		{duration: 13 * time.Millisecond, expected: Integration13ms},
		{duration: 101 * time.Millisecond, expected: Integration101ms},
		{duration: 402 * time.Millisecond, expected: Integration402ms},
		{duration: 200 * time.Millisecond, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.duration.String(), func(t *testing.T) {
			integ, err := IntegrationFor(tt.duration)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, integ)
		})
	}
}

func TestCalculateLux(t *testing.T) {
	tests := []struct {
		name      string
		broadband uint16
		ir        uint16
		opts      Options
		expected  int
	}{
		{name: "darkness", broadband: 0, ir: 0, opts: Options{Integration: Integration402ms}, expected: 0},
		{name: "indoor light at 402ms", broadband: 1000, ir: 200, opts: Options{Integration: Integration402ms}, expected: 379},
		{name: "indoor light at 402ms high gain", broadband: 1000, ir: 200, opts: Options{Integration: Integration402ms, HighGain: true}, expected: 24},
		{name: "101ms scaling", broadband: 500, ir: 100, opts: Options{Integration: Integration101ms}, expected: 753},
		{name: "13ms scaling", broadband: 200, ir: 50, opts: Options{Integration: Integration13ms}, expected: 2011},
		{name: "no infrared", broadband: 1000, ir: 0, opts: Options{Integration: Integration402ms}, expected: 486},
		{name: "mostly infrared", broadband: 400, ir: 300, opts: Options{Integration: Integration402ms}, expected: 8},
		{name: "saturated broadband", broadband: 65001, ir: 0, opts: Options{Integration: Integration402ms}, expected: MaxLux},
		{name: "saturated at 13ms", broadband: 4901, ir: 10, opts: Options{Integration: Integration13ms}, expected: MaxLux},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CalculateLux(tt.broadband, tt.ir, tt.opts))
		})
	}
}
