// SPDX-License-Identifier: GPL-3.0-only

package backlight

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	brightnessFile    = "brightness"
	maxBrightnessFile = "max_brightness"
)

// Sysfs is a Backlight backed by a Linux sysfs backlight class device,
// e.g. /sys/class/backlight/rpi_backlight.
type Sysfs struct {
	dir string
}

// Verify Sysfs implements Backlight interface.
var _ Backlight = (*Sysfs)(nil)

// NewSysfs returns a Backlight for the named device under root.
// It fails if the device directory does not exist.
func NewSysfs(root, device string) (*Sysfs, error) {
	dir := filepath.Join(root, device)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("backlight device %s: %w", device, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("backlight device %s: %s is not a directory", device, dir)
	}
	return &Sysfs{dir: dir}, nil
}

// Dir returns the sysfs directory of the device.
func (s *Sysfs) Dir() string {
	return s.dir
}

// Set writes level to the brightness attribute.
func (s *Sysfs) Set(level int) error {
	path := filepath.Join(s.dir, brightnessFile)
	if err := os.WriteFile(path, []byte(strconv.Itoa(level)), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Get reads the brightness attribute.
func (s *Sysfs) Get() (int, error) {
	return s.readInt(brightnessFile)
}

// MaxBrightness reads the max_brightness attribute.
func (s *Sysfs) MaxBrightness() (int, error) {
	return s.readInt(maxBrightnessFile)
}

func (s *Sysfs) readInt(name string) (int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}
