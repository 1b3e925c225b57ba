// Package launcher starts downloaded installers without waiting for them.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/desktop-updater/update-agent/internal/logging"
)

// DefaultMinInstallerSize is the size below which an installer is reported
// as suspicious.
const DefaultMinInstallerSize = 1000000

// Strategy is one way of starting an installer. Start returns once the
// process has been spawned.
type Strategy struct {
	Name  string
	Start func(ctx context.Context, path string) error
}

// Options configures a Launcher.
type Options struct {
	// Strategies are tried in order. Nil means the platform defaults.
	Strategies []Strategy

	// MinInstallerSize triggers a warning for smaller files. Zero means
	// DefaultMinInstallerSize; negative disables the check.
	MinInstallerSize int64

	Logger *slog.Logger
}

// Launcher starts installers through an ordered strategy chain.
type Launcher struct {
	strategies []Strategy
	minSize    int64
	log        *slog.Logger
}

// New creates a Launcher.
func New(opts Options) *Launcher {
	strategies := opts.Strategies
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	minSize := opts.MinInstallerSize
	if minSize == 0 {
		minSize = DefaultMinInstallerSize
	}
	return &Launcher{
		strategies: strategies,
		minSize:    minSize,
		log:        logging.Or(opts.Logger, "launcher"),
	}
}

// Strategies returns the names of the configured strategies in order.
func (l *Launcher) Strategies() []string {
	names := make([]string, len(l.strategies))
	for i, s := range l.strategies {
		names[i] = s.Name
	}
	return names
}

// Launch starts the installer at path using the first strategy that
// succeeds. It returns *LaunchExhaustedError when all of them fail.
func (l *Launcher) Launch(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("installer not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("installer path %s is a directory", path)
	}
	if l.minSize > 0 && info.Size() < l.minSize {
		l.log.Warn("installer is unusually small, launching anyway",
			"path", path, "bytes", info.Size(), "minBytes", l.minSize)
	}

	var errs *multierror.Error
	for _, s := range l.strategies {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.log.Info("launching installer", "path", path, "strategy", s.Name)
		if err := s.Start(ctx, path); err != nil {
			l.log.Warn("launch strategy failed", "strategy", s.Name, logging.KeyError, err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		l.log.Info("installer started", "path", path, "strategy", s.Name)
		return nil
	}

	return &LaunchExhaustedError{Path: path, Err: errs.ErrorOrNil()}
}

// LaunchExhaustedError is returned when every launch strategy failed. Err
// aggregates the individual failures.
type LaunchExhaustedError struct {
	Path string
	Err  error
}

func (e *LaunchExhaustedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no launch strategy available for %s", e.Path)
	}
	return fmt.Sprintf("all launch strategies failed for %s: %v", e.Path, e.Err)
}

func (e *LaunchExhaustedError) Unwrap() error { return e.Err }
