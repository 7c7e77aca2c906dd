package netcheck

import (
	"context"
	"os/exec"
)

// Runner executes an external command and returns its combined output.
// Every invocation is expected to carry its own deadline in the context;
// nothing here runs unbounded.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
