// SPDX-License-Identifier: GPL-3.0-only

// Package brightness converts ambient light into display brightness and ramps the
// backlight towards it without visible jumps.
package brightness

import "math"

const (
	// MinPercent is the lowest brightness percentage, expressed as a fraction.
	MinPercent = 0.0

	// MaxPercent is the highest brightness percentage, expressed as a fraction.
	MaxPercent = 1.0
)

// Curve coefficients fitted to the Analog Devices design note on LCD brightness control
// with the MAX44009 ambient light sensor.
const (
	CurveSlope     = 9.9323
	CurveIntercept = 27.059
)

// Curve maps an averaged lux reading to a brightness percentage.
type Curve struct {
	// Breakpoint is the lux value above which the display runs at full brightness.
	Breakpoint int
}

// DesiredPercent returns the brightness fraction (0.0-1.0) for the given lux.
// Readings above the breakpoint give full brightness, zero and below give the minimum,
// and everything in between follows a logarithmic curve.
func (c Curve) DesiredPercent(lux int) float64 {
	if lux > c.Breakpoint {
		return MaxPercent
	}
	if lux <= 0 {
		return MinPercent
	}
	return ClampPercent((CurveSlope*math.Log(float64(lux)) + CurveIntercept) / 100.0)
}

// ClampPercent ensures a brightness fraction is within [0.0, 1.0].
// NaN is treated as the minimum.
func ClampPercent(percent float64) float64 {
	if math.IsNaN(percent) || percent < MinPercent {
		return MinPercent
	}
	if percent > MaxPercent {
		return MaxPercent
	}
	return percent
}

// Range is the span of raw backlight register values the percentages map onto.
type Range struct {
	Min int
	Max int
}

// Level converts a brightness fraction into a backlight register value by linear
// interpolation between Min and Max. The result is truncated, not rounded.
// Fractions outside [0.0, 1.0] are clamped before conversion.
func (r Range) Level(percent float64) int {
	percent = ClampPercent(percent)
	return int(percent*float64(r.Max-r.Min) + float64(r.Min))
}

// Percent converts a backlight register value back into a brightness fraction.
// Values outside the range are clamped.
func (r Range) Percent(level int) float64 {
	if r.Max == r.Min {
		return MinPercent
	}
	return ClampPercent(float64(level-r.Min) / float64(r.Max-r.Min))
}
