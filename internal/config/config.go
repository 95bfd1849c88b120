// SPDX-License-Identifier: GPL-3.0-only

// Package config loads the daemon configuration from a YAML document.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Sensor types.
const (
	SensorTSL2561   = "tsl2561"
	SensorSimulated = "simulated"
)

// D-Bus bus names.
const (
	BusSystem  = "system"
	BusSession = "session"
)

// Config is the daemon configuration. It is read once at startup and never reloaded.
// The top-level keys keep the flat layout of the legacy config.yml.
type Config struct {
	NightModeGPIOPin             int    `yaml:"night_mode_gpio_pin"`
	NightModeGPIOChip            string `yaml:"night_mode_gpio_chip"`
	NightModeGPIOSwitchDirection bool   `yaml:"night_mode_gpio_switch_direction"`
	LuxSampleCount               int    `yaml:"lux_sample_count"`
	NightModeOnLux               int    `yaml:"night_mode_on_lux"`
	NightModeOffLux              int    `yaml:"night_mode_off_lux"`
	MaximumLuxBreakpoint         int    `yaml:"maximum_lux_breakpoint"`
	BrightnessLevelMin           int    `yaml:"brightness_level_min"`
	BrightnessLevelMax           int    `yaml:"brightness_level_max"`

	SampleInterval Duration `yaml:"sample_interval"`

	Sensor    SensorConfig    `yaml:"sensor"`
	Backlight BacklightConfig `yaml:"backlight"`
	DBus      DBusConfig      `yaml:"dbus"`
	Udev      UdevConfig      `yaml:"udev"`
}

// SensorConfig selects and tunes the ambient light sensor.
type SensorConfig struct {
	Type                   string   `yaml:"type"`
	I2CBus                 string   `yaml:"i2c_bus"`
	I2CAddress             uint16   `yaml:"i2c_address"`
	IntegrationTime        Duration `yaml:"integration_time"`
	HighGain               bool     `yaml:"high_gain"`
	StartupRetries         int      `yaml:"startup_retries"`
	MaxConsecutiveFailures int      `yaml:"max_consecutive_failures"` // 0 = never give up
	SimulatedLux           int      `yaml:"simulated_lux"`
	SimulatedVariation     int      `yaml:"simulated_variation"`
}

// BacklightConfig locates the sysfs backlight and tunes the write circuit breaker.
type BacklightConfig struct {
	Device          string   `yaml:"device"`
	SysfsRoot       string   `yaml:"sysfs_root"`
	BreakerFailures int      `yaml:"breaker_failures"`
	BreakerTimeout  Duration `yaml:"breaker_timeout"`
}

// DBusConfig controls the read-only status service.
type DBusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bus     string `yaml:"bus"`
}

// UdevConfig controls backlight hot-plug detection.
type UdevConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether the udev monitor should run. It defaults to true.
func (c UdevConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads, defaults and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// requiredKeys must be present in every configuration document.
var requiredKeys = []string{
	"night_mode_gpio_pin",
	"night_mode_on_lux",
	"night_mode_off_lux",
	"maximum_lux_breakpoint",
	"brightness_level_min",
	"brightness_level_max",
}

// Parse decodes a YAML document, fills in defaults and validates the result.
// Defaults only apply to absent keys; an explicit zero is kept and validated.
func Parse(data []byte) (*Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := root.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	set := presentKeys(&root)
	for _, key := range requiredKeys {
		if !set[key] {
			return nil, fmt.Errorf("%w: missing required key %s", ErrInvalid, key)
		}
	}

	cfg.applyDefaults(set)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// presentKeys returns the keys set in the document, nested ones as "section.key".
func presentKeys(root *yaml.Node) map[string]bool {
	keys := make(map[string]bool)

	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return keys
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		name, value := doc.Content[i].Value, doc.Content[i+1]
		keys[name] = true
		if value.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(value.Content); j += 2 {
			keys[name+"."+value.Content[j].Value] = true
		}
	}
	return keys
}

func (c *Config) applyDefaults(set map[string]bool) {
	if c.NightModeGPIOChip == "" {
		c.NightModeGPIOChip = "gpiochip0"
	}
	if !set["lux_sample_count"] {
		c.LuxSampleCount = 16
	}
	if !set["sample_interval"] {
		c.SampleInterval = Duration(500 * time.Millisecond)
	}

	// Sensor defaults
	if c.Sensor.Type == "" {
		c.Sensor.Type = SensorTSL2561
	}
	if c.Sensor.I2CBus == "" {
		c.Sensor.I2CBus = "1"
	}
	if !set["sensor.i2c_address"] {
		c.Sensor.I2CAddress = 0x39
	}
	if !set["sensor.integration_time"] {
		c.Sensor.IntegrationTime = Duration(402 * time.Millisecond)
	}
	if !set["sensor.startup_retries"] {
		c.Sensor.StartupRetries = 3
	}
	if !set["sensor.simulated_lux"] {
		c.Sensor.SimulatedLux = 300
	}
	if !set["sensor.simulated_variation"] {
		c.Sensor.SimulatedVariation = 50
	}

	// Backlight defaults
	if c.Backlight.Device == "" {
		c.Backlight.Device = "rpi_backlight"
	}
	if c.Backlight.SysfsRoot == "" {
		c.Backlight.SysfsRoot = "/sys/class/backlight"
	}
	if !set["backlight.breaker_failures"] {
		c.Backlight.BreakerFailures = 10
	}
	if !set["backlight.breaker_timeout"] {
		c.Backlight.BreakerTimeout = Duration(5 * time.Second)
	}

	if c.DBus.Bus == "" {
		c.DBus.Bus = BusSystem
	}
}

// Validate rejects configurations that would produce inverted or oscillating behaviour.
func (c *Config) Validate() error {
	switch {
	case c.NightModeGPIOPin < 0:
		return fmt.Errorf("%w: night_mode_gpio_pin must not be negative, got %d", ErrInvalid, c.NightModeGPIOPin)
	case c.LuxSampleCount < 1:
		return fmt.Errorf("%w: lux_sample_count must be at least 1, got %d", ErrInvalid, c.LuxSampleCount)
	case c.NightModeOnLux < 0:
		return fmt.Errorf("%w: night_mode_on_lux must not be negative, got %d", ErrInvalid, c.NightModeOnLux)
	case c.NightModeOffLux <= c.NightModeOnLux:
		return fmt.Errorf("%w: night_mode_off_lux (%d) must be greater than night_mode_on_lux (%d)",
			ErrInvalid, c.NightModeOffLux, c.NightModeOnLux)
	case c.MaximumLuxBreakpoint <= 0:
		return fmt.Errorf("%w: maximum_lux_breakpoint must be positive, got %d", ErrInvalid, c.MaximumLuxBreakpoint)
	case c.BrightnessLevelMin < 0:
		return fmt.Errorf("%w: brightness_level_min must not be negative, got %d", ErrInvalid, c.BrightnessLevelMin)
	case c.BrightnessLevelMin >= c.BrightnessLevelMax:
		return fmt.Errorf("%w: brightness_level_min (%d) must be less than brightness_level_max (%d)",
			ErrInvalid, c.BrightnessLevelMin, c.BrightnessLevelMax)
	case c.SampleInterval <= 0:
		return fmt.Errorf("%w: sample_interval must be positive", ErrInvalid)
	case c.Sensor.StartupRetries < 0:
		return fmt.Errorf("%w: sensor.startup_retries must not be negative", ErrInvalid)
	case c.Sensor.MaxConsecutiveFailures < 0:
		return fmt.Errorf("%w: sensor.max_consecutive_failures must not be negative", ErrInvalid)
	case c.Backlight.BreakerTimeout < 0:
		return fmt.Errorf("%w: backlight.breaker_timeout must not be negative", ErrInvalid)
	case c.Backlight.BreakerFailures < 1:
		return fmt.Errorf("%w: backlight.breaker_failures must be at least 1", ErrInvalid)
	}

	switch c.Sensor.Type {
	case SensorTSL2561:
		switch c.Sensor.IntegrationTime.Duration() {
		case 13 * time.Millisecond, 101 * time.Millisecond, 402 * time.Millisecond:
		default:
			return fmt.Errorf("%w: sensor.integration_time must be 13ms, 101ms or 402ms, got %s",
				ErrInvalid, c.Sensor.IntegrationTime.Duration())
		}
	case SensorSimulated:
	default:
		return fmt.Errorf("%w: unknown sensor.type %q", ErrInvalid, c.Sensor.Type)
	}

	if c.DBus.Bus != BusSystem && c.DBus.Bus != BusSession {
		return fmt.Errorf("%w: dbus.bus must be %q or %q, got %q", ErrInvalid, BusSystem, BusSession, c.DBus.Bus)
	}

	return nil
}
