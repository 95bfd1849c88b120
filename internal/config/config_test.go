package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shini4i/ambient-backlight-daemon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
night_mode_gpio_pin: 17
night_mode_on_lux: 20
night_mode_off_lux: 40
maximum_lux_breakpoint: 1254
brightness_level_min: 15
brightness_level_max: 255
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 17, cfg.NightModeGPIOPin)
	assert.Equal(t, "gpiochip0", cfg.NightModeGPIOChip)
	assert.False(t, cfg.NightModeGPIOSwitchDirection)
	assert.Equal(t, 16, cfg.LuxSampleCount)
	assert.Equal(t, 500*time.Millisecond, cfg.SampleInterval.Duration())

	assert.Equal(t, config.SensorTSL2561, cfg.Sensor.Type)
	assert.Equal(t, "1", cfg.Sensor.I2CBus)
	assert.Equal(t, uint16(0x39), cfg.Sensor.I2CAddress)
	assert.Equal(t, 402*time.Millisecond, cfg.Sensor.IntegrationTime.Duration())
	assert.Equal(t, 3, cfg.Sensor.StartupRetries)
	assert.Zero(t, cfg.Sensor.MaxConsecutiveFailures)

	assert.Equal(t, "rpi_backlight", cfg.Backlight.Device)
	assert.Equal(t, "/sys/class/backlight", cfg.Backlight.SysfsRoot)
	assert.Equal(t, 10, cfg.Backlight.BreakerFailures)
	assert.Equal(t, 5*time.Second, cfg.Backlight.BreakerTimeout.Duration())

	assert.False(t, cfg.DBus.Enabled)
	assert.Equal(t, config.BusSystem, cfg.DBus.Bus)
	assert.True(t, cfg.Udev.IsEnabled())
}

func TestParse_Overrides(t *testing.T) {
	doc := minimalYAML + `
night_mode_gpio_chip: gpiochip4
night_mode_gpio_switch_direction: true
lux_sample_count: 4
sample_interval: 250ms
sensor:
  type: simulated
  simulated_lux: 800
  max_consecutive_failures: 20
backlight:
  device: "10-0045"
  breaker_timeout: 30s
dbus:
  enabled: true
  bus: session
udev:
  enabled: false
`
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "gpiochip4", cfg.NightModeGPIOChip)
	assert.True(t, cfg.NightModeGPIOSwitchDirection)
	assert.Equal(t, 4, cfg.LuxSampleCount)
	assert.Equal(t, 250*time.Millisecond, cfg.SampleInterval.Duration())
	assert.Equal(t, config.SensorSimulated, cfg.Sensor.Type)
	assert.Equal(t, 800, cfg.Sensor.SimulatedLux)
	assert.Equal(t, 20, cfg.Sensor.MaxConsecutiveFailures)
	assert.Equal(t, "10-0045", cfg.Backlight.Device)
	assert.Equal(t, 30*time.Second, cfg.Backlight.BreakerTimeout.Duration())
	assert.True(t, cfg.DBus.Enabled)
	assert.Equal(t, config.BusSession, cfg.DBus.Bus)
	assert.False(t, cfg.Udev.IsEnabled())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "off lux equal to on lux",
			doc: `
night_mode_gpio_pin: 17
night_mode_on_lux: 20
night_mode_off_lux: 20
maximum_lux_breakpoint: 1254
brightness_level_min: 15
brightness_level_max: 255
`,
		},
		{
			name: "off lux below on lux",
			doc: `
night_mode_gpio_pin: 17
night_mode_on_lux: 40
night_mode_off_lux: 20
maximum_lux_breakpoint: 1254
brightness_level_min: 15
brightness_level_max: 255
`,
		},
		{
			name: "min brightness equal to max",
			doc: `
night_mode_gpio_pin: 17
night_mode_on_lux: 20
night_mode_off_lux: 40
maximum_lux_breakpoint: 1254
brightness_level_min: 255
brightness_level_max: 255
`,
		},
		{
			name: "min brightness above max",
			doc: `
night_mode_gpio_pin: 17
night_mode_on_lux: 20
night_mode_off_lux: 40
maximum_lux_breakpoint: 1254
brightness_level_min: 200
brightness_level_max: 100
`,
		},
		{
			name: "missing breakpoint",
			doc: `
night_mode_gpio_pin: 17
night_mode_on_lux: 20
night_mode_off_lux: 40
brightness_level_min: 15
brightness_level_max: 255
`,
		},
		{
			name: "negative pin",
			doc: `
night_mode_gpio_pin: -1
night_mode_on_lux: 20
night_mode_off_lux: 40
maximum_lux_breakpoint: 1254
brightness_level_min: 15
brightness_level_max: 255
`,
		},
		{
			name: "negative sample count",
			doc:  minimalYAML + "lux_sample_count: -4\n",
		},
		{
			name: "unknown sensor type",
			doc:  minimalYAML + "sensor:\n  type: bh1750\n",
		},
		{
			name: "unsupported integration time",
			doc:  minimalYAML + "sensor:\n  integration_time: 200ms\n",
		},
		{
			name: "unknown bus",
			doc:  minimalYAML + "dbus:\n  bus: user\n",
		},
		{
			name: "explicit zero sample count",
			doc:  minimalYAML + "lux_sample_count: 0\n",
		},
		{
			name: "explicit zero sample interval",
			doc:  minimalYAML + "sample_interval: 0s\n",
		},
		{
			name: "explicit zero breaker failures",
			doc:  minimalYAML + "backlight:\n  breaker_failures: 0\n",
		},
		{
			name: "empty document",
			doc:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestParse_MissingRequiredKey(t *testing.T) {
	keys := []string{
		"night_mode_gpio_pin",
		"night_mode_on_lux",
		"night_mode_off_lux",
		"maximum_lux_breakpoint",
		"brightness_level_min",
		"brightness_level_max",
	}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			var doc strings.Builder
			for _, line := range strings.Split(minimalYAML, "\n") {
				if strings.HasPrefix(line, key+":") {
					continue
				}
				doc.WriteString(line + "\n")
			}

			cfg, err := config.Parse([]byte(doc.String()))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, config.ErrInvalid)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestParse_ExplicitZeroKept(t *testing.T) {
	doc := minimalYAML + `
sensor:
  type: simulated
  startup_retries: 0
  simulated_lux: 0
  simulated_variation: 0
backlight:
  breaker_timeout: 0s
`
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Sensor.StartupRetries)
	assert.Equal(t, 0, cfg.Sensor.SimulatedLux)
	assert.Equal(t, 0, cfg.Sensor.SimulatedVariation)
	assert.Equal(t, time.Duration(0), cfg.Backlight.BreakerTimeout.Duration())
	assert.Equal(t, 16, cfg.LuxSampleCount)
}

func TestParse_BadDuration(t *testing.T) {
	_, err := config.Parse([]byte(minimalYAML + "sample_interval: soon\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, config.ErrInvalid)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1254, cfg.MaximumLuxBreakpoint)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
