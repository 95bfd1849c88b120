package backlight

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Guarded wraps a Backlight with a circuit breaker. After a run of consecutive failed
// writes the breaker opens and further writes fail fast until the timeout elapses,
// so a vanished sysfs device is not hammered ten times a second.
type Guarded struct {
	backlight Backlight
	breaker   *gobreaker.CircuitBreaker
}

// Verify Guarded implements Backlight interface.
var _ Backlight = (*Guarded)(nil)

// NewGuarded wraps b. The breaker opens after failures consecutive errors and
// allows a trial write after timeout.
func NewGuarded(b Backlight, failures int, timeout time.Duration) *Guarded {
	if failures < 1 {
		failures = 1
	}
	return &Guarded{
		backlight: b,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "backlight",
			Timeout: timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(failures)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Backlight circuit breaker changed state")
			},
		}),
	}
}

// Set writes level through the breaker. While the breaker is open the write is skipped
// and an error wrapping ErrWriteFailed is returned.
func (g *Guarded) Set(level int) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.backlight.Set(level)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return err
}

// Get reads the level directly; reads do not count towards the breaker.
func (g *Guarded) Get() (int, error) {
	return g.backlight.Get()
}

// State returns the breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.breaker.State()
}
