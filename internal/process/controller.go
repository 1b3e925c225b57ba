// Package process stops running application instances before an installer
// replaces them.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/desktop-updater/update-agent/internal/logging"
)

var log = logging.L("process")

// taskkill exit code meaning no process matched the image name.
const exitNotFound = 128

// Options configures a Controller. Zero values select the running platform,
// os/exec and a live gopsutil snapshot.
type Options struct {
	GOOS     string
	Run      Runner
	Snapshot func() (*Snapshot, error)
	Logger   *slog.Logger
}

// Controller terminates processes by image name.
type Controller struct {
	goos     string
	run      Runner
	snapshot func() (*Snapshot, error)
	log      *slog.Logger
}

// NewController creates a Controller.
func NewController(opts Options) *Controller {
	c := &Controller{
		goos:     opts.GOOS,
		run:      opts.Run,
		snapshot: opts.Snapshot,
		log:      logging.Or(opts.Logger, "process"),
	}
	if c.goos == "" {
		c.goos = runtime.GOOS
	}
	if c.run == nil {
		c.run = ExecRunner
	}
	if c.snapshot == nil {
		c.snapshot = NewSnapshot
	}
	return c
}

// IsRunning reports whether a process with the given image name is running.
func (c *Controller) IsRunning(name string) (bool, error) {
	snap, err := c.snapshot()
	if err != nil {
		return false, fmt.Errorf("process snapshot: %w", err)
	}
	c.log.Debug("process snapshot taken", "processes", snap.Len())
	return snap.IsRunning(name), nil
}

// Terminate force-kills every process with the given image name. A process
// that is not running counts as success, and a kill that reports anything
// else is logged without failing the update. Only a kill command that cannot
// be started at all returns an error.
func (c *Controller) Terminate(ctx context.Context, name string) error {
	running, err := c.IsRunning(name)
	switch {
	case err != nil:
		c.log.Debug("process snapshot unavailable, attempting kill anyway", "process", name, logging.KeyError, err)
	case !running:
		c.log.Info("process not running", "process", name)
		return nil
	}

	if c.goos != "windows" {
		c.log.Warn("process termination not supported on this platform", "process", name, "os", c.goos)
		return nil
	}

	c.log.Info("terminating process", "process", name)
	code, out, err := c.run(ctx, "taskkill", "/F", "/IM", name)
	if err != nil {
		return fmt.Errorf("run taskkill for %s: %w", name, err)
	}

	switch code {
	case 0:
		c.log.Info("process terminated", "process", name)
	case exitNotFound:
		c.log.Info("process not running", "process", name)
	default:
		c.log.Warn("taskkill reported a failure, continuing",
			"process", name,
			"exitCode", code,
			"output", strings.TrimSpace(string(out)),
		)
	}
	return nil
}
