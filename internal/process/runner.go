package process

import (
	"context"
	"errors"
	"os/exec"
)

// Runner executes a command and returns its exit code and combined output.
// err is non-nil only when the command could not be run at all.
type Runner func(ctx context.Context, name string, args ...string) (exitCode int, output []byte, err error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) (int, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), out, nil
		}
		return -1, out, err
	}
	return 0, out, nil
}
