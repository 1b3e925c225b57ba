//go:build windows

package launcher

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// DefaultStrategies returns the Windows launch chain: a detached shell
// start, the shell "open" association, then an elevated PowerShell start.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "direct", Start: startShell},
		{Name: "shell-execute", Start: startShellExecute},
		{Name: "elevated", Start: startElevated},
	}
}

func startShell(ctx context.Context, path string) error {
	cmd := exec.Command("cmd", "/C", path)
	cmd.Dir = filepath.Dir(path)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
	return startDetached(cmd)
}

func startShellExecute(ctx context.Context, path string) error {
	verb, err := windows.UTF16PtrFromString("open")
	if err != nil {
		return err
	}
	file, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	dir, err := windows.UTF16PtrFromString(filepath.Dir(path))
	if err != nil {
		return err
	}
	return windows.ShellExecute(0, verb, file, nil, dir, windows.SW_SHOWNORMAL)
}

func startElevated(ctx context.Context, path string) error {
	script := fmt.Sprintf("Start-Process -FilePath '%s' -Verb RunAs", strings.ReplaceAll(path, "'", "''"))
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
