package lux

import (
	"github.com/asecurityteam/rolling"
)

// Window keeps the last N samples and averages them. Once full, each new sample
// evicts the oldest one.
type Window struct {
	size   int
	count  int
	points *rolling.PointPolicy
}

// NewWindow creates a window holding up to size samples. Sizes below one are raised to one.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:   size,
		points: rolling.NewPointPolicy(rolling.NewWindow(size)),
	}
}

// Add appends a sample, evicting the oldest when the window is full.
func (w *Window) Add(lux int) {
	w.points.Append(float64(lux))
	if w.count < w.size {
		w.count++
	}
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	return w.count
}

// Cap returns the window size.
func (w *Window) Cap() int {
	return w.size
}

// Mean returns the truncated integer mean of the held samples.
// The boolean is false while the window is empty.
func (w *Window) Mean() (int, bool) {
	if w.count == 0 {
		return 0, false
	}
	return int(w.points.Reduce(w.sum) / float64(w.count)), true
}

// sum adds up the filled buckets. PointPolicy pre-fills every bucket with a zero and
// writes them in order, so until the window wraps only the first count buckets are real.
func (w *Window) sum(win rolling.Window) float64 {
	total := 0.0
	for _, bucket := range win[:w.count] {
		for _, p := range bucket {
			total += p
		}
	}
	return total
}
