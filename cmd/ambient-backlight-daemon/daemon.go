// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/shini4i/ambient-backlight-daemon/internal/backlight"
	"github.com/shini4i/ambient-backlight-daemon/internal/brightness"
	"github.com/shini4i/ambient-backlight-daemon/internal/config"
	"github.com/shini4i/ambient-backlight-daemon/internal/controller"
	"github.com/shini4i/ambient-backlight-daemon/internal/dbus"
	"github.com/shini4i/ambient-backlight-daemon/internal/gpio"
	"github.com/shini4i/ambient-backlight-daemon/internal/lux"
	"github.com/shini4i/ambient-backlight-daemon/internal/nightmode"
	"github.com/shini4i/ambient-backlight-daemon/internal/sensor"
	"github.com/shini4i/ambient-backlight-daemon/internal/sensor/tsl2561"
	"github.com/shini4i/ambient-backlight-daemon/internal/udev"
)

// retryInitialInterval is the first pause between two startup reads of the sensor.
const retryInitialInterval = 500 * time.Millisecond

// runner is a supervised loop.
type runner interface {
	Run(ctx context.Context) error
}

// daemon holds every opened component. Fields that are nil were not started.
type daemon struct {
	sensor     sensor.Sensor
	backlight  backlight.Backlight
	pin        gpio.Pin
	sampler    *lux.Sampler
	controller *controller.Controller
	server     *dbus.Server
	monitor    *udev.Monitor
}

// newDaemon opens the hardware in startup order. On error everything opened so far is closed.
func newDaemon(ctx context.Context, cfg *config.Config) (*daemon, error) {
	d := &daemon{}
	if err := d.open(ctx, cfg); err != nil {
		d.close()
		return nil, err
	}
	return d, nil
}

func (d *daemon) open(ctx context.Context, cfg *config.Config) error {
	var err error
	d.sensor, err = openSensor(cfg.Sensor)
	if err != nil {
		return err
	}

	first, err := waitForSensor(ctx, d.sensor, cfg.Sensor.StartupRetries, retryInitialInterval)
	if err != nil {
		return fmt.Errorf("light sensor did not answer: %w", err)
	}
	log.Info().Str("type", cfg.Sensor.Type).Int("lux", first).Msg("Light sensor ready")

	guarded, err := openBacklight(cfg)
	if err != nil {
		return err
	}
	d.backlight = guarded

	line, err := gpio.OpenLine(cfg.NightModeGPIOPin, gpio.Options{
		Chip:            cfg.NightModeGPIOChip,
		SwitchDirection: cfg.NightModeGPIOSwitchDirection,
	})
	if err != nil {
		return fmt.Errorf("failed to open night mode pin: %w", err)
	}
	d.pin = line

	night, err := d.pin.Read()
	if err != nil {
		return fmt.Errorf("failed to read night mode pin: %w", err)
	}
	log.Info().
		Str("chip", cfg.NightModeGPIOChip).
		Int("pin", cfg.NightModeGPIOPin).
		Str("mode", nightmode.ModeName(night)).
		Msg("Night mode pin ready")

	shared := lux.NewShared()
	d.sampler = lux.NewSampler(d.sensor, shared, cfg.LuxSampleCount,
		lux.WithInterval(cfg.SampleInterval.Duration()),
		lux.WithMaxFailures(cfg.Sensor.MaxConsecutiveFailures),
	)

	d.controller = controller.New(shared, d.backlight, d.pin, controllerSettings(cfg, night))

	if cfg.DBus.Enabled {
		server := dbus.NewServer(d.controller)
		if startErr := server.Start(cfg.DBus.Bus); startErr != nil {
			log.Error().Err(startErr).Msg("Failed to start D-Bus server (status service disabled)")
		} else {
			d.server = server
			d.controller.SetNotifier(server)
		}
	}

	if cfg.Udev.IsEnabled() {
		d.monitor = udev.NewMonitor(cfg.Backlight.Device, createResyncHandler(d.controller))
		d.monitor.SetRecoveryHandler(d.controller.RequestResync)
		if startErr := d.monitor.Start(); startErr != nil {
			log.Error().Err(startErr).Msg("Failed to start udev monitor (backlight resync disabled)")
			d.monitor = nil
		}
	}

	return nil
}

// run supervises the sampler and the controller until ctx is cancelled or one of them fails.
func (d *daemon) run(ctx context.Context) error {
	return runLoops(ctx, d.sampler, d.controller)
}

// runLoops runs every loop in its own goroutine. The first error cancels the others.
func runLoops(ctx context.Context, loops ...runner) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		g.Go(func() error {
			return l.Run(gctx)
		})
	}
	return g.Wait()
}

// close releases components in reverse dependency order. Errors are logged, never returned.
func (d *daemon) close() {
	if d.monitor != nil {
		if err := d.monitor.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop udev monitor")
		}
	}
	if d.server != nil {
		if err := d.server.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop D-Bus server")
		}
	}
	if d.pin != nil {
		if err := d.pin.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to release night mode pin")
		}
	}
	if d.sensor != nil {
		if err := d.sensor.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close light sensor")
		}
	}
	log.Info().Msg("Daemon stopped")
}

// openSensor creates the configured light sensor.
func openSensor(cfg config.SensorConfig) (sensor.Sensor, error) {
	switch cfg.Type {
	case config.SensorTSL2561:
		integration, err := tsl2561.IntegrationFor(cfg.IntegrationTime.Duration())
		if err != nil {
			return nil, err
		}
		dev, err := tsl2561.Open(cfg.I2CBus, cfg.I2CAddress, tsl2561.Options{
			Integration: integration,
			HighGain:    cfg.HighGain,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open TSL2561 on bus %q: %w", cfg.I2CBus, err)
		}
		return dev, nil
	case config.SensorSimulated:
		log.Warn().
			Int("lux", cfg.SimulatedLux).
			Int("variation", cfg.SimulatedVariation).
			Msg("Using simulated light sensor")
		return sensor.NewSimulated(cfg.SimulatedLux, cfg.SimulatedVariation), nil
	default:
		return nil, fmt.Errorf("%w: unknown sensor type %q", config.ErrInvalid, cfg.Type)
	}
}

// waitForSensor reads the sensor until it answers, with exponential backoff between
// attempts and at most retries retries. It returns the first reading.
func waitForSensor(ctx context.Context, s sensor.Sensor, retries int, initial time.Duration) (int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial

	var reading int
	operation := func() error {
		v, err := s.ReadLux(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		reading = v
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Dur("retryIn", next).Msg("Light sensor not answering yet")
	}

	// #nosec G115 -- retries is validated to be non-negative
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return 0, err
	}
	return reading, nil
}

// openBacklight opens the sysfs backlight behind a circuit breaker and warns when the
// configured range exceeds what the hardware accepts.
func openBacklight(cfg *config.Config) (*backlight.Guarded, error) {
	sysfs, err := backlight.NewSysfs(cfg.Backlight.SysfsRoot, cfg.Backlight.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open backlight: %w", err)
	}

	hwMax, err := sysfs.MaxBrightness()
	switch {
	case err != nil:
		log.Warn().Err(err).Str("device", sysfs.Dir()).Msg("Cannot read max_brightness")
	case cfg.BrightnessLevelMax > hwMax:
		log.Warn().
			Int("configured", cfg.BrightnessLevelMax).
			Int("hardware", hwMax).
			Msg("brightness_level_max exceeds the hardware maximum")
	}

	current, err := sysfs.Get()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot read current backlight level")
	} else {
		log.Info().Str("device", sysfs.Dir()).Int("level", current).Msg("Backlight ready")
	}

	return backlight.NewGuarded(sysfs, cfg.Backlight.BreakerFailures, cfg.Backlight.BreakerTimeout.Duration()), nil
}

func controllerSettings(cfg *config.Config, initialNight bool) controller.Settings {
	return controller.Settings{
		Curve: brightness.Curve{Breakpoint: cfg.MaximumLuxBreakpoint},
		Levels: brightness.Range{
			Min: cfg.BrightnessLevelMin,
			Max: cfg.BrightnessLevelMax,
		},
		NightOnLux:   cfg.NightModeOnLux,
		NightOffLux:  cfg.NightModeOffLux,
		InitialNight: initialNight,
	}
}

// createResyncHandler returns a udev handler that makes the controller rewrite the
// backlight after the device was added or reset by its driver.
func createResyncHandler(c *controller.Controller) udev.EventHandler {
	return func(event udev.Event) {
		log.Info().
			Str("device", event.Device).
			Str("event", event.Type.String()).
			Msg("Backlight device changed, scheduling resync")
		c.RequestResync()
	}
}
