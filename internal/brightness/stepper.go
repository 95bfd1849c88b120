package brightness

import "math"

const (
	// DefaultPercent is the brightness assumed before the first lux reading arrives.
	DefaultPercent = 0.5

	// MinStep is the smallest per-tick change, used when the target is already close.
	MinStep = 0.01

	// rampWindows is how many re-target windows a large change is spread over.
	rampWindows = 10.0

	// settleEpsilon absorbs float drift accumulated over many steps.
	settleEpsilon = 1e-9
)

// Stepper tracks the current and desired brightness and moves the current value towards
// the desired one by at most one step per call. It is owned by a single goroutine.
type Stepper struct {
	current float64
	desired float64
	step    float64
}

// NewStepper returns a Stepper that starts settled at the given fraction.
func NewStepper(start float64) *Stepper {
	start = ClampPercent(start)
	return &Stepper{
		current: start,
		desired: start,
		step:    MinStep,
	}
}

// Current returns the last committed brightness fraction.
func (s *Stepper) Current() float64 {
	return s.current
}

// Desired returns the brightness fraction being pursued.
func (s *Stepper) Desired() float64 {
	return s.desired
}

// Step returns the current per-tick step size.
func (s *Stepper) Step() float64 {
	return s.step
}

// Settled reports whether the current value has reached the desired value.
func (s *Stepper) Settled() bool {
	return s.current == s.desired
}

// Retarget sets a new desired fraction and picks the step size for reaching it.
// Gaps up to MinStep use MinStep; larger gaps are covered in about ten windows.
func (s *Stepper) Retarget(desired float64) {
	s.desired = ClampPercent(desired)

	gap := math.Abs(s.desired - s.current)
	if gap <= MinStep {
		s.step = MinStep
	} else {
		s.step = gap / rampWindows
	}
}

// Next returns the value one step closer to the desired fraction without committing it.
// The move never passes the target. The boolean is false when already settled.
func (s *Stepper) Next() (float64, bool) {
	if s.Settled() {
		return s.current, false
	}

	var next float64
	if s.current > s.desired {
		next = math.Max(s.current-s.step, s.desired)
	} else {
		next = math.Min(s.current+s.step, s.desired)
	}
	if math.Abs(s.desired-next) < settleEpsilon {
		next = s.desired
	}
	return next, true
}

// Commit records a value that was written to the backlight.
func (s *Stepper) Commit(value float64) {
	s.current = ClampPercent(value)
}
