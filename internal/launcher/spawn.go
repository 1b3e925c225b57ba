package launcher

import (
	"fmt"
	"os/exec"
)

// startDetached starts cmd and releases it so the installer outlives the
// agent. The exit status is never collected.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("release process %d: %w", pid, err)
	}
	return nil
}
