//go:build !windows

package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// DefaultStrategies returns the Unix launch chain: the installer in its own
// session, then the same through non-interactive sudo.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "direct", Start: startDirect},
		{Name: "elevated", Start: startSudo},
	}
}

func startDirect(ctx context.Context, path string) error {
	if err := ensureExecutable(path); err != nil {
		return err
	}
	return startDetached(detachedCommand(path))
}

func startSudo(ctx context.Context, path string) error {
	if err := ensureExecutable(path); err != nil {
		return err
	}
	return startDetached(detachedCommand("sudo", "-n", path))
}

// ensureExecutable adds execute bits to a downloaded file, which is created
// without them.
func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm()&0o111 == 0o111 {
		return nil
	}
	if err := os.Chmod(path, info.Mode().Perm()|0o111); err != nil {
		return fmt.Errorf("make installer executable: %w", err)
	}
	return nil
}

func detachedCommand(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.Dir = filepath.Dir(installerPath(name, args))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}

// installerPath returns the last argument, or name when there are none.
func installerPath(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return args[len(args)-1]
}
