package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/desktop-updater/update-agent/internal/logging"
	"github.com/desktop-updater/update-agent/internal/privilege"
	"github.com/desktop-updater/update-agent/internal/updater"
)

func runUpdates(ctx context.Context) int {
	cfg, closer, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	defer closer.Close()

	log.Info("update-agent starting", "version", version, "apps", len(cfg.Apps))
	privilege.LogStatus(log)

	u, cleanup, err := buildUpdater(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize updater", logging.KeyError, err)
		return 1
	}
	defer cleanup()

	summary, err := u.Run(ctx)
	if err != nil {
		var connErr *updater.ConnectivityError
		if errors.As(err, &connErr) {
			log.Error("release host unreachable, nothing was updated", "url", connErr.URL, logging.KeyError, connErr.Err)
		} else {
			log.Error("update run aborted", logging.KeyError, err)
		}
		return 1
	}

	if err := summary.Report.WriteTable(os.Stdout); err != nil {
		log.Warn("failed to print summary", logging.KeyError, err)
	}
	if !summary.OK() {
		log.Warn("some applications failed to update",
			"overall", summary.Report.Overall(), "succeeded", summary.Succeeded, "total", summary.Total)
		return 1
	}
	log.Info("all applications processed",
		"overall", summary.Report.Overall(), "succeeded", summary.Succeeded, "total", summary.Total)
	return 0
}

func checkVersions(ctx context.Context) int {
	cfg, closer, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	defer closer.Close()

	u, cleanup, err := buildUpdater(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize updater", logging.KeyError, err)
		return 1
	}
	defer cleanup()

	results, err := u.Check(ctx)
	if err != nil {
		log.Error("version check aborted", logging.KeyError, err)
		return 1
	}

	code := 0
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "APP\tENABLED\tLATEST\tLAST LAUNCHED")
	for _, r := range results {
		latest := r.Latest.String()
		if r.Err != nil {
			latest = "error: " + r.Err.Error()
			code = 1
		}
		recorded := r.Recorded
		if recorded == "" {
			recorded = "-"
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", r.Name, r.Enabled, latest, recorded)
	}
	_ = tw.Flush()
	return code
}

func listApps() int {
	cfg, closer, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	defer closer.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tENABLED\tPROCESS\tLISTING")
	for _, app := range cfg.Apps {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", app.Key, app.DisplayName(), app.Enabled, app.ProcessName, app.ListingURL)
	}
	_ = tw.Flush()
	return 0
}
