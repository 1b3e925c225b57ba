// Package updater drives the per-application update workflow: resolve the
// latest version, download it, stop the running application and start the
// installer.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/desktop-updater/update-agent/internal/config"
	"github.com/desktop-updater/update-agent/internal/fetch"
	"github.com/desktop-updater/update-agent/internal/httputil"
	"github.com/desktop-updater/update-agent/internal/logging"
	"github.com/desktop-updater/update-agent/internal/release"
	"github.com/desktop-updater/update-agent/internal/report"
	"github.com/desktop-updater/update-agent/internal/state"
)

// Step names one stage of the per-application workflow.
type Step string

const (
	StepCheckVersion Step = "check_version"
	StepDownload     Step = "download"
	StepArchive      Step = "archive"
	StepTerminate    Step = "terminate_process"
	StepWait         Step = "wait"
	StepLaunch       Step = "launch"
	StepRecord       Step = "record_state"
)

// VersionResolver finds the latest release advertised on a listing page.
type VersionResolver interface {
	Resolve(ctx context.Context, listingURL string) (release.Version, error)
}

// ArtifactFetcher downloads an installer.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error)
}

// ProcessTerminator stops running instances of an application.
type ProcessTerminator interface {
	Terminate(ctx context.Context, processName string) error
}

// InstallerLauncher starts a downloaded installer.
type InstallerLauncher interface {
	Launch(ctx context.Context, installerPath string) error
}

// Archiver keeps a copy of downloaded installers.
type Archiver interface {
	Archive(ctx context.Context, appKey, tag, localPath string) (string, error)
}

// StateStore remembers the last launched version per application.
type StateStore interface {
	Get(key string) (state.Entry, bool)
	Record(key string, e state.Entry) error
}

// Options wires an Updater. Resolver, Fetcher, Terminator and Launcher are
// required; Archiver and State are optional.
type Options struct {
	Apps        []config.AppProfile
	DownloadDir string

	UpdateDelay time.Duration
	SettleDelay time.Duration

	// ConnectivityURL is requested once before any application. Empty
	// disables the check.
	ConnectivityURL    string
	ConnectivityClient *http.Client

	// SkipInstalled skips applications whose recorded version is not older
	// than the latest release. Requires State.
	SkipInstalled bool

	Resolver   VersionResolver
	Fetcher    ArtifactFetcher
	Terminator ProcessTerminator
	Launcher   InstallerLauncher
	Archiver   Archiver
	State      StateStore

	Progress fetch.ProgressFunc
	Sleep    httputil.SleepFunc
	Now      func() time.Time
	Logger   *slog.Logger
}

// Outcome is the result of processing one application.
type Outcome struct {
	AppKey    string
	Name      string
	Status    report.Status
	Version   release.Version
	Installer string
	Step      Step // failing step, empty on success
	Err       error
}

// Succeeded reports whether the outcome counts toward the success total.
func (o Outcome) Succeeded() bool {
	return o.Status.Succeeded()
}

// Summary aggregates a run. Skipped applications count as succeeded.
type Summary struct {
	Succeeded int
	Total     int
	Outcomes  []Outcome
	Report    *report.Report
}

// OK reports whether every application succeeded.
func (s Summary) OK() bool {
	return s.Succeeded == s.Total
}

// Updater runs the update workflow for a fixed list of applications.
type Updater struct {
	opts  Options
	sleep httputil.SleepFunc
	now   func() time.Time
	log   *slog.Logger
}

// New creates an Updater.
func New(opts Options) (*Updater, error) {
	if opts.Resolver == nil || opts.Fetcher == nil || opts.Terminator == nil || opts.Launcher == nil {
		return nil, errors.New("updater requires a resolver, fetcher, terminator and launcher")
	}
	if opts.SkipInstalled && opts.State == nil {
		return nil, errors.New("skip_installed requires a state store")
	}
	if opts.ConnectivityClient == nil {
		opts.ConnectivityClient = &http.Client{Timeout: 10 * time.Second}
	}
	u := &Updater{
		opts:  opts,
		sleep: opts.Sleep,
		now:   opts.Now,
		log:   logging.Or(opts.Logger, "updater"),
	}
	if u.sleep == nil {
		u.sleep = httputil.Sleep
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u, nil
}

// Run processes every configured application in order. It returns a
// *ConnectivityError without touching any application when the pre-flight
// check fails, and ctx.Err() when cancelled between applications. Per
// application failures are reported in the Summary, not as an error.
func (u *Updater) Run(ctx context.Context) (Summary, error) {
	start := u.now()
	rep := report.New()
	summary := Summary{Total: len(u.opts.Apps), Report: rep}

	u.log.Info("update run starting", "apps", len(u.opts.Apps), "downloadDir", u.opts.DownloadDir)

	if err := u.checkConnectivity(ctx); err != nil {
		u.log.Error("connectivity check failed, aborting run", logging.KeyError, err)
		return summary, err
	}

	lastEnabled := -1
	for i, app := range u.opts.Apps {
		if app.Enabled {
			lastEnabled = i
		}
	}

	for i, app := range u.opts.Apps {
		outcome := u.UpdateApp(ctx, app)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Succeeded() {
			summary.Succeeded++
		}
		rep.Record(entryFor(outcome))

		if err := ctx.Err(); err != nil {
			u.log.Warn("update run cancelled", "processed", i+1, "total", summary.Total)
			return summary, err
		}

		if app.Enabled && i < lastEnabled && u.opts.UpdateDelay > 0 {
			u.log.Info("waiting before next application", "delay", u.opts.UpdateDelay)
			if err := u.sleep(ctx, u.opts.UpdateDelay); err != nil {
				return summary, err
			}
		}
	}

	u.log.Info("update run finished",
		"succeeded", summary.Succeeded,
		"total", summary.Total,
		logging.KeyDurationMs, u.now().Sub(start).Milliseconds(),
	)
	return summary, nil
}

func (u *Updater) checkConnectivity(ctx context.Context) error {
	if u.opts.ConnectivityURL == "" {
		return nil
	}
	u.log.Info("checking connectivity", "url", u.opts.ConnectivityURL)
	if err := httputil.CheckConnectivity(ctx, u.opts.ConnectivityClient, u.opts.ConnectivityURL); err != nil {
		return &ConnectivityError{URL: u.opts.ConnectivityURL, Err: err}
	}
	return nil
}

// UpdateApp runs the workflow for one application. Failures end the
// workflow for that application and are returned in the Outcome.
func (u *Updater) UpdateApp(ctx context.Context, app config.AppProfile) Outcome {
	log := logging.WithApp(u.log, app.Key)
	out := Outcome{AppKey: app.Key, Name: app.DisplayName()}

	if !app.Enabled {
		log.Info("application disabled, skipping")
		out.Status = report.Skipped
		return out
	}

	fail := func(step Step, err error) Outcome {
		out.Status = report.Failed
		out.Step = step
		out.Err = &StepError{App: app.Key, Step: step, Err: err}
		log.Error("update failed", logging.KeyStep, string(step), logging.KeyError, err)
		return out
	}

	log.Info("updating application", "name", out.Name)

	version, err := u.opts.Resolver.Resolve(ctx, app.ListingURL)
	if err != nil {
		return fail(StepCheckVersion, err)
	}
	out.Version = version

	if u.opts.SkipInstalled {
		if entry, ok := u.opts.State.Get(app.Key); ok {
			cmp, err := release.Version(entry.Version).Compare(version)
			switch {
			case err != nil:
				log.Warn("ignoring unreadable recorded version", "recorded", entry.Version, logging.KeyError, err)
			case cmp >= 0:
				log.Info("latest version already launched, skipping",
					logging.KeyVersion, version.String(), "recorded", entry.Version)
				out.Status = report.Skipped
				return out
			}
		}
	}

	result, err := u.opts.Fetcher.Fetch(ctx, fetch.Request{
		AppKey:           app.Key,
		ListingURL:       app.ListingURL,
		FilenameTemplate: app.FilenameTemplate,
		TagTemplate:      app.TagTemplate,
		Version:          version,
		Dir:              u.opts.DownloadDir,
		Progress:         u.opts.Progress,
	})
	if err != nil {
		return fail(StepDownload, err)
	}
	out.Installer = result.Path

	if u.opts.Archiver != nil {
		if _, err := u.opts.Archiver.Archive(ctx, app.Key, version.Tag(app.TagTemplate), result.Path); err != nil {
			log.Warn("failed to archive installer", logging.KeyStep, string(StepArchive), logging.KeyError, err)
		}
	}

	if err := u.opts.Terminator.Terminate(ctx, app.ProcessName); err != nil {
		return fail(StepTerminate, err)
	}

	if u.opts.SettleDelay > 0 {
		log.Debug("waiting for process to exit", "delay", u.opts.SettleDelay)
		if err := u.sleep(ctx, u.opts.SettleDelay); err != nil {
			return fail(StepWait, err)
		}
	}

	if err := u.opts.Launcher.Launch(ctx, result.Path); err != nil {
		return fail(StepLaunch, err)
	}

	if u.opts.State != nil {
		entry := state.Entry{Version: version.String(), Installer: result.Path, LaunchedAt: u.now().UTC()}
		if err := u.opts.State.Record(app.Key, entry); err != nil {
			log.Warn("failed to record install state", logging.KeyStep, string(StepRecord), logging.KeyError, err)
		}
	}

	log.Info("update launched", logging.KeyVersion, version.String(), "installer", result.Path)
	out.Status = report.Updated
	return out
}

func entryFor(o Outcome) report.Entry {
	e := report.Entry{
		App:     o.AppKey,
		Name:    o.Name,
		Status:  o.Status,
		Version: o.Version.String(),
		Step:    string(o.Step),
	}
	if o.Err != nil {
		var stepErr *StepError
		if errors.As(o.Err, &stepErr) {
			e.Message = stepErr.Err.Error()
		} else {
			e.Message = o.Err.Error()
		}
	}
	return e
}

// CheckResult reports the latest release of one application without
// downloading it.
type CheckResult struct {
	AppKey   string
	Name     string
	Enabled  bool
	Latest   release.Version
	Recorded string // last launched version, empty if unknown
	Err      error
}

// Check resolves the latest version of every configured application,
// including disabled ones.
func (u *Updater) Check(ctx context.Context) ([]CheckResult, error) {
	results := make([]CheckResult, 0, len(u.opts.Apps))
	for _, app := range u.opts.Apps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		r := CheckResult{AppKey: app.Key, Name: app.DisplayName(), Enabled: app.Enabled}
		r.Latest, r.Err = u.opts.Resolver.Resolve(ctx, app.ListingURL)
		if r.Err != nil {
			r.Err = fmt.Errorf("resolve %s: %w", app.Key, r.Err)
		}
		if u.opts.State != nil {
			if entry, ok := u.opts.State.Get(app.Key); ok {
				r.Recorded = entry.Version
			}
		}
		results = append(results, r)
	}
	return results, nil
}
