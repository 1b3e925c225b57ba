package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/desktop-updater/update-agent/internal/archive"
	"github.com/desktop-updater/update-agent/internal/config"
	"github.com/desktop-updater/update-agent/internal/fetch"
	"github.com/desktop-updater/update-agent/internal/httputil"
	"github.com/desktop-updater/update-agent/internal/launcher"
	"github.com/desktop-updater/update-agent/internal/logging"
	"github.com/desktop-updater/update-agent/internal/process"
	"github.com/desktop-updater/update-agent/internal/release"
	"github.com/desktop-updater/update-agent/internal/state"
	"github.com/desktop-updater/update-agent/internal/updater"
)

var log = logging.L("main")

// loadConfig reads and validates the configuration and installs the log
// handler. The returned closer flushes the log file.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	closer := io.Closer(nopCloser{})
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.Path(cfg.LogFile), cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file, logging to stdout only: %v\n", err)
		} else {
			output = logging.Mirror(os.Stdout, rw)
			closer = rw
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)

	if result := cfg.Validate(); result.HasFatals() {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("invalid configuration: %d fatal error(s)", len(result.Fatals))
	}

	selected, err := cfg.SelectApps(appKeys)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	cfg.Apps = selected

	return cfg, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildUpdater wires the production components from cfg. The returned
// cleanup releases storage clients and must be called when the run ends.
func buildUpdater(ctx context.Context, cfg *config.Config) (*updater.Updater, func(), error) {
	retry := httputil.DefaultRetryConfig()
	retry.MaxRetries = cfg.ListingRetries

	resolver := release.NewResolver(release.Options{
		Client:       httputil.NewClient(cfg.ListingTimeout, cfg.UserAgent),
		Retry:        retry,
		SnapshotPath: cfg.Path(cfg.SnapshotFile),
		Logger:       logging.L("release"),
	})

	fetcher := fetch.NewFetcher(fetch.Options{
		Client:      httputil.NewStreamingClient(cfg.DownloadTimeout, cfg.UserAgent),
		IdleTimeout: cfg.DownloadTimeout,
		ProxyPrefix: cfg.ProxyPrefix,
		MaxRetries:  cfg.MaxRetries,
		Logger:      logging.L("fetch"),
	})

	installer := launcher.New(launcher.Options{
		MinInstallerSize: cfg.MinInstallerSize,
		Logger:           logging.L("launcher"),
	})
	log.Debug("installer launch chain", "strategies", installer.Strategies())

	opts := updater.Options{
		Apps:               cfg.Apps,
		DownloadDir:        cfg.DownloadDir,
		UpdateDelay:        cfg.UpdateDelay,
		SettleDelay:        cfg.SettleDelay,
		ConnectivityURL:    cfg.ConnectivityURL,
		ConnectivityClient: httputil.NewClient(cfg.ConnectivityTimeout, cfg.UserAgent),
		SkipInstalled:      cfg.SkipInstalled,
		Resolver:           resolver,
		Fetcher:            fetcher,
		Terminator:         process.NewController(process.Options{Logger: logging.L("process")}),
		Launcher:           installer,
		Progress:           progressLogger(logging.L("fetch")),
		Logger:             logging.L("updater"),
	}

	if cfg.StateFile != "" {
		st, err := state.Load(cfg.Path(cfg.StateFile))
		if err != nil {
			if cfg.SkipInstalled {
				return nil, nil, err
			}
			log.Warn("install state unavailable", logging.KeyError, err)
		} else {
			opts.State = st
		}
	}

	var archiver *archive.Archiver
	store, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		log.Warn("installer archive disabled", logging.KeyError, err)
	} else if store != nil {
		archiver = archive.NewArchiver(store, cfg.Archive, logging.L("archive"))
		opts.Archiver = archiver
	}
	cleanup := func() {
		if err := archiver.Close(); err != nil {
			log.Warn("failed to close installer archive", logging.KeyError, err)
		}
	}

	u, err := updater.New(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return u, cleanup, nil
}

// progressLogger logs download progress in steps of 10 percent.
func progressLogger(logger *slog.Logger) fetch.ProgressFunc {
	last := map[string]int{}
	return func(e fetch.ProgressEvent) {
		if e.BytesTotal <= 0 {
			return
		}
		step := int(e.Percent) / 10
		key := fmt.Sprintf("%s#%d", e.AppKey, e.Attempt)
		if prev, ok := last[key]; ok && prev == step {
			return
		}
		last[key] = step
		logger.Info("download progress",
			logging.KeyApp, e.AppKey,
			"percent", step*10,
			"bytes", e.BytesDone,
			"total", e.BytesTotal,
		)
	}
}
