//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns an error on non-Linux platforms.
func NewRealWatcher(chipName string, debounce time.Duration) (*RealWatcher, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Watch is not implemented on non-Linux platforms.
func (w *RealWatcher) Watch(pin int, h EdgeHandler) error {
	return errors.New("gpio: not supported")
}

// RestingState is not implemented on non-Linux platforms.
func (w *RealWatcher) RestingState(pin int) (Level, error) {
	return "", errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (w *RealWatcher) Close() error {
	return nil
}
