//go:build !linux

package gpio

// Line is not available on non-Linux platforms.
type Line struct{}

// OpenLine returns ErrNotSupported on non-Linux platforms.
func OpenLine(offset int, opts Options) (*Line, error) {
	return nil, ErrNotSupported
}

// Read is not implemented on non-Linux platforms.
func (l *Line) Read() (bool, error) {
	return false, ErrNotSupported
}

// Write is not implemented on non-Linux platforms.
func (l *Line) Write(on bool) error {
	return ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (l *Line) Close() error {
	return nil
}
