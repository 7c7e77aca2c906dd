package netcheck

import (
	"context"
	"strings"
	"sync"
)

// FakeResult is the scripted outcome of one command line.
type FakeResult struct {
	Output []byte
	Err    error
}

// FakeRunner is a scripted Runner for tests. Results are keyed by the full
// command line ("ip route show default"). Unscripted commands succeed with
// empty output unless DefaultErr is set.
type FakeRunner struct {
	mu sync.Mutex

	// Results maps command lines to scripted outcomes.
	Results map[string]FakeResult

	// DefaultErr, if set, is returned for unscripted commands.
	DefaultErr error

	// Calls records every command line in invocation order.
	Calls []string
}

// NewFakeRunner creates a FakeRunner with no scripted results.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Results: make(map[string]FakeResult)}
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	f.Calls = append(f.Calls, line)
	res, ok := f.Results[line]
	f.mu.Unlock()

	if !ok {
		return nil, f.DefaultErr
	}
	return res.Output, res.Err
}

// CallLines returns a copy of the recorded command lines.
func (f *FakeRunner) CallLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Calls))
	copy(out, f.Calls)
	return out
}

// Called reports whether any recorded command line has the given prefix.
func (f *FakeRunner) Called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range f.Calls {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
