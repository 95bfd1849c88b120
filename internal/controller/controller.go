// SPDX-License-Identifier: GPL-3.0-only

// Package controller runs the fixed-period loop that ramps the backlight towards the
// brightness implied by ambient light and drives the night mode pin.
package controller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/ambient-backlight-daemon/internal/backlight"
	"github.com/shini4i/ambient-backlight-daemon/internal/brightness"
	"github.com/shini4i/ambient-backlight-daemon/internal/gpio"
	"github.com/shini4i/ambient-backlight-daemon/internal/lux"
	"github.com/shini4i/ambient-backlight-daemon/internal/nightmode"
)

const (
	// DefaultPeriod is the length of one loop tick.
	DefaultPeriod = 100 * time.Millisecond

	// RetargetTicks is how many ticks pass between two brightness re-targets.
	RetargetTicks = 20
)

// Notifier receives state changes, e.g. to publish them on D-Bus.
type Notifier interface {
	EmitBrightnessChanged(percent float64, level int)
	EmitNightModeChanged(night bool)
}

// Status is a point-in-time view of the controller state.
type Status struct {
	Lux     int
	Percent float64
	Desired float64
	Level   int
	Night   bool
}

// Settings holds the tuning values taken from the configuration.
type Settings struct {
	Curve        brightness.Curve
	Levels       brightness.Range
	NightOnLux   int
	NightOffLux  int
	InitialNight bool
}

// Controller owns the brightness stepper and the night mode switch.
// Run and Tick must be called from a single goroutine; Status and RequestResync
// are safe to call from anywhere.
type Controller struct {
	lux       *lux.Shared
	backlight backlight.Backlight
	pin       gpio.Pin
	notifier  Notifier

	curve   brightness.Curve
	levels  brightness.Range
	stepper *brightness.Stepper
	night   *nightmode.Switch

	period  time.Duration
	counter int
	resync  atomic.Bool
	status  atomic.Pointer[Status]

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithPeriod overrides the tick period.
func WithPeriod(d time.Duration) Option {
	return func(c *Controller) {
		c.period = d
	}
}

// WithNotifier registers a receiver for brightness and night mode changes.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithClock replaces the wall clock and the interruptible sleep used by Run.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(c *Controller) {
		c.now = now
		c.sleep = sleep
	}
}

// New creates a controller reading lux from shared and writing to bl and pin.
func New(shared *lux.Shared, bl backlight.Backlight, pin gpio.Pin, settings Settings, opts ...Option) *Controller {
	c := &Controller{
		lux:       shared,
		backlight: bl,
		pin:       pin,
		curve:     settings.Curve,
		levels:    settings.Levels,
		stepper:   brightness.NewStepper(brightness.DefaultPercent),
		night:     nightmode.NewSwitch(settings.NightOnLux, settings.NightOffLux, settings.InitialNight),
		period:    DefaultPeriod,
		now:       time.Now,
		sleep:     sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.publishStatus(shared.Load())
	return c
}

// Run ticks every period until ctx is cancelled. A tick that overruns the period
// is followed immediately by the next one; overruns are not made up.
func (c *Controller) Run(ctx context.Context) error {
	log.Info().
		Dur("period", c.period).
		Int("retargetTicks", RetargetTicks).
		Msg("Starting brightness controller")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Stopping brightness controller")
			return nil
		}

		start := c.now()
		c.Tick()

		remaining := c.period - c.now().Sub(start)
		if remaining <= 0 {
			continue
		}
		if !c.sleep(ctx, remaining) {
			log.Info().Msg("Stopping brightness controller")
			return nil
		}
	}
}

// Tick performs one loop iteration: one brightness step, one night mode evaluation
// and, on the first tick and every RetargetTicks ticks after it, a re-target.
func (c *Controller) Tick() {
	value := c.lux.Load()

	c.stepBrightness()
	c.updateNightMode(value)

	if c.counter <= 0 {
		c.retarget(value)
		c.counter = RetargetTicks
	}
	c.counter--

	c.publishStatus(value)
}

// SetNotifier registers n after construction. It must be called before Run.
func (c *Controller) SetNotifier(n Notifier) {
	c.notifier = n
}

// RequestResync makes the next tick rewrite the current brightness even when settled,
// for when the backlight device was reset underneath us.
func (c *Controller) RequestResync() {
	c.resync.Store(true)
}

// Status returns the state after the last tick.
func (c *Controller) Status() Status {
	return *c.status.Load()
}

func (c *Controller) stepBrightness() {
	next, moved := c.stepper.Next()
	resync := c.resync.Swap(false)
	if !moved && !resync {
		return
	}

	level := c.levels.Level(next)
	if err := c.backlight.Set(level); err != nil {
		if resync {
			c.resync.Store(true)
		}
		log.Error().
			Err(err).
			Int("level", level).
			Float64("current", c.stepper.Current()).
			Msg("Failed to write backlight")
		return
	}
	c.stepper.Commit(next)

	log.Debug().
		Float64("percent", next).
		Int("level", level).
		Bool("resync", resync && !moved).
		Msg("Backlight updated")

	if c.notifier != nil {
		c.notifier.EmitBrightnessChanged(next, level)
	}
}

func (c *Controller) updateNightMode(value int) {
	pinNight, err := c.pin.Read()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read night mode pin")
		return
	}
	c.night.Set(pinNight)

	night, changed := c.night.Evaluate(value)
	if !changed {
		return
	}

	if err := c.pin.Write(night); err != nil {
		c.night.Set(pinNight)
		log.Error().
			Err(err).
			Str("mode", nightmode.ModeName(night)).
			Msg("Failed to write night mode pin")
		return
	}

	log.Info().
		Int("lux", value).
		Str("mode", nightmode.ModeName(night)).
		Msg("Night mode switched")

	if c.notifier != nil {
		c.notifier.EmitNightModeChanged(night)
	}
}

func (c *Controller) retarget(value int) {
	desired := c.curve.DesiredPercent(value)
	c.stepper.Retarget(desired)

	log.Debug().
		Int("lux", value).
		Float64("desired", c.stepper.Desired()).
		Float64("step", c.stepper.Step()).
		Msg("Brightness re-targeted")
}

func (c *Controller) publishStatus(value int) {
	current := c.stepper.Current()
	c.status.Store(&Status{
		Lux:     value,
		Percent: current,
		Desired: c.stepper.Desired(),
		Level:   c.levels.Level(current),
		Night:   c.night.Night(),
	})
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
