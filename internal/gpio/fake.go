package gpio

import "sync"

// FakePin is a test double that records writes.
type FakePin struct {
	mu sync.Mutex

	// Value is the current line level.
	Value bool

	// Writes records every value passed to Write, in order.
	Writes []bool

	// Reads counts calls to Read.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError and WriteError, if set, are returned by Read and Write.
	ReadError  error
	WriteError error
}

// Verify FakePin implements Pin interface.
var _ Pin = (*FakePin)(nil)

// NewFakePin creates a FakePin at the given level.
func NewFakePin(value bool) *FakePin {
	return &FakePin{Value: value}
}

// Read returns the current level.
func (f *FakePin) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Value, nil
}

// Write records and applies the level.
func (f *FakePin) Write(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, on)
	f.Value = on
	return nil
}

// Close marks the pin as closed and drops it low.
func (f *FakePin) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	f.Value = false
	return nil
}

// Snapshot returns a copy of the recorded writes and the current level.
func (f *FakePin) Snapshot() ([]bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	writes := make([]bool, len(f.Writes))
	copy(writes, f.Writes)
	return writes, f.Value
}
