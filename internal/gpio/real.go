//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "ambient-backlight-daemon"

// requestedLine is the subset of *gpiocdev.Line used by Line.
type requestedLine interface {
	Value() (int, error)
	SetValue(value int) error
	Reconfigure(options ...gpiocdev.LineConfigOption) error
	Close() error
}

// Line drives a GPIO line through the Linux GPIO character device.
type Line struct {
	line            requestedLine
	switchDirection bool
	// value is the level last driven on the line.
	value int
}

// Verify Line implements Pin interface.
var _ Pin = (*Line)(nil)

// OpenLine requests the given line offset as an output. The line is first read as an
// input so its current level is kept instead of being reset by the request.
func OpenLine(offset int, opts Options) (*Line, error) {
	chip := opts.Chip
	if chip == "" {
		chip = DefaultChip
	}

	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, offset, err)
	}

	value, err := line.Value()
	if err != nil {
		_ = line.Close()
		return nil, fmt.Errorf("read %s line %d: %w", chip, offset, err)
	}

	if err := line.Reconfigure(gpiocdev.AsOutput(value)); err != nil {
		_ = line.Close()
		return nil, fmt.Errorf("configure %s line %d as output: %w", chip, offset, err)
	}

	return &Line{
		line:            line,
		switchDirection: opts.SwitchDirection,
		value:           value,
	}, nil
}

// Read returns the current line level.
// With direction switching the line is briefly turned into an input for the read and
// then driven again with the last written level, so it never stays floating.
func (l *Line) Read() (bool, error) {
	if !l.switchDirection {
		return l.readValue()
	}

	if err := l.line.Reconfigure(gpiocdev.AsInput); err != nil {
		return false, fmt.Errorf("configure line as input: %w", err)
	}

	on, readErr := l.readValue()
	if err := l.line.Reconfigure(gpiocdev.AsOutput(l.value)); err != nil {
		return false, errors.Join(readErr, fmt.Errorf("restore line as output: %w", err))
	}
	return on, readErr
}

func (l *Line) readValue() (bool, error) {
	value, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read line: %w", err)
	}
	return value == 1, nil
}

// Write drives the line high (true) or low (false).
func (l *Line) Write(on bool) error {
	value := 0
	if on {
		value = 1
	}

	if l.switchDirection {
		if err := l.line.Reconfigure(gpiocdev.AsOutput(value)); err != nil {
			return fmt.Errorf("configure line as output: %w", err)
		}
		l.value = value
		return nil
	}

	if err := l.line.SetValue(value); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	l.value = value
	return nil
}

// Close releases the line.
// Reconfigures it as input with pull-down (matching Pi boot defaults) before closing
// so the night mode input of the head unit is not left driven.
func (l *Line) Close() error {
	var errs []error

	if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
	}
	if err := l.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line: %w", err))
	}

	return errors.Join(errs...)
}
