//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealWatcher watches input lines on a Linux GPIO character device.
// Debouncing happens in the kernel, so handlers only see stable transitions.
type RealWatcher struct {
	chip     *gpiocdev.Chip
	debounce time.Duration

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewRealWatcher opens the named GPIO chip (e.g. "gpiochip0").
func NewRealWatcher(chipName string, debounce time.Duration) (*RealWatcher, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("andon-agent"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &RealWatcher{
		chip:     chip,
		debounce: debounce,
		lines:    make(map[int]*gpiocdev.Line),
	}, nil
}

// Watch requests the pin as a pulled-up input reporting both edges.
// A falling edge means the line was asserted (Low), a rising edge that it was
// released (High). gpiocdev delivers events on a goroutine per requested
// line, so handlers for different pins may run concurrently.
func (w *RealWatcher) Watch(pin int, h EdgeHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.lines[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}

	eh := func(evt gpiocdev.LineEvent) {
		level := High
		if evt.Type == gpiocdev.LineEventFallingEdge {
			level = Low
		}
		h(Edge{Pin: pin, Level: level, Time: time.Now()})
	}

	line, err := w.chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(w.debounce),
		gpiocdev.WithEventHandler(eh),
	)
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}

	w.lines[pin] = line
	return nil
}

// RestingState reads the pin's current level. Pins that are not being watched
// are requested briefly and released again, so the call also serves one-shot
// reads before any Watch.
func (w *RealWatcher) RestingState(pin int) (Level, error) {
	w.mu.Lock()
	line, watched := w.lines[pin]
	w.mu.Unlock()

	if !watched {
		var err error
		line, err = w.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			return "", fmt.Errorf("request pin %d: %w", pin, err)
		}
		defer line.Close()
	}

	v, err := line.Value()
	if err != nil {
		return "", fmt.Errorf("read pin %d: %w", pin, err)
	}
	return levelFromValue(v), nil
}

// Close releases all watched lines and the chip.
// Lines are reconfigured to plain pulled-up input first so edge reporting is
// torn down cleanly before external hardware sees the release.
func (w *RealWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for pin, line := range w.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	w.lines = make(map[int]*gpiocdev.Line)

	if err := w.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// levelFromValue maps a raw line value to a logical level. Pulled-up lines
// read 1 released (High) and 0 asserted (Low).
func levelFromValue(v int) Level {
	if v == 0 {
		return Low
	}
	return High
}
