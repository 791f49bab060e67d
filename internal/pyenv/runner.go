package pyenv

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// Command describes a single subprocess launch.
type Command struct {
	// Argv is the resolved program path followed by its arguments.
	Argv []string

	// Dir is the working directory. Empty means the caller's cwd.
	Dir string

	// Env is the complete process environment (os.Environ form).
	Env []string

	Stdout io.Writer
	Stderr io.Writer
}

// Runner spawns subprocesses. The production implementation wraps os/exec;
// tests substitute a recording fake so no real interpreter is needed.
type Runner interface {
	// Run executes the command and blocks until it exits, returning the
	// process exit code. A non-zero exit code is not an error; err reports
	// spawn failures and context cancellation only.
	Run(ctx context.Context, cmd Command) (int, error)
}

// ExecRunner is the os/exec-backed Runner used in production.
type ExecRunner struct{}

// NewExecRunner creates a Runner that spawns real subprocesses.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (int, error) {
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr

	err := c.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return exitErr.ExitCode(), ctx.Err()
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
