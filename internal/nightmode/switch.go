// SPDX-License-Identifier: GPL-3.0-only

// Package nightmode decides between day and night mode from ambient light using two
// thresholds, so that sensor noise around a single value cannot make the output flap.
package nightmode

// Switch is a two-threshold day/night state machine. It is owned by a single goroutine.
type Switch struct {
	onLux  int
	offLux int
	night  bool
}

// NewSwitch creates a Switch that enters night mode below onLux and leaves it above offLux.
// The caller guarantees onLux < offLux; config.Validate enforces it.
func NewSwitch(onLux, offLux int, night bool) *Switch {
	return &Switch{
		onLux:  onLux,
		offLux: offLux,
		night:  night,
	}
}

// Night reports the current state.
func (s *Switch) Night() bool {
	return s.night
}

// Set overrides the current state, e.g. after reading the output pin.
func (s *Switch) Set(night bool) {
	s.night = night
}

// Evaluate feeds one lux value and returns the resulting state and whether it changed.
// Values inside the band [onLux, offLux] never change the state.
func (s *Switch) Evaluate(lux int) (night bool, changed bool) {
	switch {
	case !s.night && lux < s.onLux:
		s.night = true
		return true, true
	case s.night && lux > s.offLux:
		s.night = false
		return false, true
	}
	return s.night, false
}

// String returns "night" or "day".
func (s *Switch) String() string {
	return ModeName(s.night)
}

// ModeName returns "night" or "day" for the given state.
func ModeName(night bool) string {
	if night {
		return "night"
	}
	return "day"
}
