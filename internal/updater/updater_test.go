package updater

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desktop-updater/update-agent/internal/config"
	"github.com/desktop-updater/update-agent/internal/fetch"
	"github.com/desktop-updater/update-agent/internal/logging"
	"github.com/desktop-updater/update-agent/internal/release"
	"github.com/desktop-updater/update-agent/internal/report"
	"github.com/desktop-updater/update-agent/internal/state"
)

// calls records the order in which workflow steps ran.
type calls struct {
	log []string
}

func (c *calls) add(s string) { c.log = append(c.log, s) }

type fakeResolver struct {
	c        *calls
	versions map[string]release.Version
	err      error
}

func (f *fakeResolver) Resolve(ctx context.Context, listingURL string) (release.Version, error) {
	f.c.add("resolve " + listingURL)
	if f.err != nil {
		return "", f.err
	}
	return f.versions[listingURL], nil
}

type fakeFetcher struct {
	c   *calls
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, req fetch.Request) (*fetch.Result, error) {
	f.c.add("fetch " + req.AppKey)
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(req.Dir, fetch.Filename(req.FilenameTemplate, req.Version))
	if err := os.WriteFile(path, []byte("installer"), 0644); err != nil {
		return nil, err
	}
	return &fetch.Result{Path: path, Bytes: 9, Declared: 9, Attempts: 1}, nil
}

type fakeTerminator struct {
	c   *calls
	err error
}

func (f *fakeTerminator) Terminate(ctx context.Context, name string) error {
	f.c.add("terminate " + name)
	return f.err
}

type fakeLauncher struct {
	c   *calls
	err error
}

func (f *fakeLauncher) Launch(ctx context.Context, path string) error {
	f.c.add("launch " + filepath.Base(path))
	return f.err
}

type fakeArchiver struct {
	c   *calls
	err error
}

func (f *fakeArchiver) Archive(ctx context.Context, appKey, tag, localPath string) (string, error) {
	f.c.add("archive " + appKey + " " + tag)
	return appKey + "/" + tag, f.err
}

type harness struct {
	calls      *calls
	resolver   *fakeResolver
	fetcher    *fakeFetcher
	terminator *fakeTerminator
	launcher   *fakeLauncher
	delays     []time.Duration
	opts       Options
}

func newHarness(t *testing.T, apps ...config.AppProfile) *harness {
	t.Helper()
	c := &calls{}
	dir := t.TempDir()
	h := &harness{
		calls:      c,
		resolver:   &fakeResolver{c: c, versions: map[string]release.Version{}},
		fetcher:    &fakeFetcher{c: c},
		terminator: &fakeTerminator{c: c},
		launcher:   &fakeLauncher{c: c},
	}
	for _, app := range apps {
		h.resolver.versions[app.ListingURL] = "v1.2.3"
	}
	h.opts = Options{
		Apps:        apps,
		DownloadDir: dir,
		UpdateDelay: 5 * time.Second,
		SettleDelay: 2 * time.Second,
		Resolver:    h.resolver,
		Fetcher:     h.fetcher,
		Terminator:  h.terminator,
		Launcher:    h.launcher,
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.delays = append(h.delays, d)
			c.add("sleep " + d.String())
			return ctx.Err()
		},
		Logger: logging.Discard(),
	}
	return h
}

func (h *harness) run(t *testing.T) (Summary, error) {
	t.Helper()
	u, err := New(h.opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return u.Run(context.Background())
}

func app(key string, enabled bool) config.AppProfile {
	return config.AppProfile{
		Key:              key,
		Name:             strings.ToUpper(key),
		ListingURL:       "https://github.com/example/" + key + "/releases",
		ProcessName:      key + ".exe",
		FilenameTemplate: key + "-{version}.exe",
		Enabled:          enabled,
	}
}

func TestRunSkipsDisabledAndHasNoTrailingDelay(t *testing.T) {
	h := newHarness(t, app("alpha", true), app("beta", false))

	summary, err := h.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.OK() || summary.Succeeded != 2 || summary.Total != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	want := []string{
		"resolve https://github.com/example/alpha/releases",
		"fetch alpha",
		"terminate alpha.exe",
		"sleep 2s",
		"launch alpha-1.2.3.exe",
	}
	if strings.Join(h.calls.log, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected workflow:\n%s", strings.Join(h.calls.log, "\n"))
	}

	if summary.Outcomes[0].Status != report.Updated || summary.Outcomes[1].Status != report.Skipped {
		t.Fatalf("unexpected outcomes %+v", summary.Outcomes)
	}
	if summary.Outcomes[0].Version != "v1.2.3" {
		t.Fatalf("unexpected version %s", summary.Outcomes[0].Version)
	}
}

func TestRunDelaysBetweenEnabledApps(t *testing.T) {
	h := newHarness(t, app("alpha", true), app("beta", false), app("gamma", true), app("delta", false))

	summary, err := h.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.OK() || summary.Total != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	// settle, inter-app delay, settle
	want := []time.Duration{2 * time.Second, 5 * time.Second, 2 * time.Second}
	if len(h.delays) != len(want) {
		t.Fatalf("unexpected delays %v", h.delays)
	}
	for i := range want {
		if h.delays[i] != want[i] {
			t.Fatalf("unexpected delays %v", h.delays)
		}
	}
}

func TestRunConnectivityFailureProcessesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	h := newHarness(t, app("alpha", true))
	h.opts.ConnectivityURL = url

	summary, err := h.run(t)
	var connErr *ConnectivityError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectivityError, got %v", err)
	}
	if len(h.calls.log) != 0 {
		t.Fatalf("no application should be processed: %v", h.calls.log)
	}
	if summary.OK() {
		t.Fatal("summary must not report success")
	}
}

func TestRunConnectivityAcceptsAnyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h := newHarness(t, app("alpha", true))
	h.opts.ConnectivityURL = srv.URL
	h.opts.ConnectivityClient = srv.Client()

	summary, err := h.run(t)
	if err != nil || !summary.OK() {
		t.Fatalf("expected success, got %+v %v", summary, err)
	}
}

func TestRunContainsFailures(t *testing.T) {
	h := newHarness(t, app("alpha", true), app("beta", true))
	h.resolver.versions = map[string]release.Version{
		"https://github.com/example/beta/releases": "v2.0.0",
	}
	notFound := &release.VersionNotFoundError{URL: "https://github.com/example/alpha/releases"}
	h.opts.Resolver = resolverFunc(func(ctx context.Context, url string) (release.Version, error) {
		if strings.Contains(url, "alpha") {
			return "", notFound
		}
		return h.resolver.Resolve(ctx, url)
	})

	summary, err := h.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.OK() || summary.Succeeded != 1 || summary.Total != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	first := summary.Outcomes[0]
	if first.Status != report.Failed || first.Step != StepCheckVersion {
		t.Fatalf("unexpected first outcome %+v", first)
	}
	var vnf *release.VersionNotFoundError
	if !errors.As(first.Err, &vnf) {
		t.Fatalf("failure should wrap the resolver error, got %v", first.Err)
	}
	if summary.Outcomes[1].Status != report.Updated {
		t.Fatalf("second application should still update: %+v", summary.Outcomes[1])
	}
	e, ok := summary.Report.Get("alpha")
	if !ok || e.Step != string(StepCheckVersion) {
		t.Fatalf("report entry missing step: %+v", e)
	}
}

type resolverFunc func(ctx context.Context, url string) (release.Version, error)

func (f resolverFunc) Resolve(ctx context.Context, url string) (release.Version, error) {
	return f(ctx, url)
}

func TestUpdateAppStepFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		step  Step
	}{
		{"download", func(h *harness) { h.fetcher.err = errors.New("exhausted") }, StepDownload},
		{"terminate", func(h *harness) { h.terminator.err = errors.New("taskkill missing") }, StepTerminate},
		{"launch", func(h *harness) { h.launcher.err = errors.New("all strategies failed") }, StepLaunch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, app("alpha", true))
			tt.setup(h)
			u, err := New(h.opts)
			if err != nil {
				t.Fatal(err)
			}
			out := u.UpdateApp(context.Background(), app("alpha", true))
			if out.Status != report.Failed || out.Step != tt.step {
				t.Fatalf("unexpected outcome %+v", out)
			}
		})
	}
}

func TestUpdateAppArchiveFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, app("alpha", true))
	h.opts.Archiver = &fakeArchiver{c: h.calls, err: errors.New("bucket missing")}

	u, err := New(h.opts)
	if err != nil {
		t.Fatal(err)
	}
	out := u.UpdateApp(context.Background(), app("alpha", true))
	if out.Status != report.Updated {
		t.Fatalf("archive failures must not fail the update: %+v", out)
	}
	if h.calls.log[2] != "archive alpha v1.2.3" {
		t.Fatalf("archive should run after download: %v", h.calls.log)
	}
}

func TestSkipInstalledUsesRecordedVersion(t *testing.T) {
	h := newHarness(t, app("alpha", true), app("beta", true))
	st, err := state.Load(filepath.Join(t.TempDir(), "update_state.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Record("alpha", state.Entry{Version: "v1.2.3"}); err != nil {
		t.Fatal(err)
	}
	if err := st.Record("beta", state.Entry{Version: "v1.2.2"}); err != nil {
		t.Fatal(err)
	}
	h.opts.State = st
	h.opts.SkipInstalled = true
	h.opts.Now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }

	summary, err := h.run(t)
	if err != nil || !summary.OK() {
		t.Fatalf("unexpected result %+v %v", summary, err)
	}
	if summary.Outcomes[0].Status != report.Skipped || summary.Outcomes[1].Status != report.Updated {
		t.Fatalf("unexpected outcomes %+v", summary.Outcomes)
	}
	beta, _ := st.Get("beta")
	if beta.Version != "v1.2.3" || beta.LaunchedAt.Year() != 2026 {
		t.Fatalf("state not updated after launch: %+v", beta)
	}
}

func TestNewRequiresComponents(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected an error without components")
	}
	h := newHarness(t)
	h.opts.SkipInstalled = true
	if _, err := New(h.opts); err == nil {
		t.Fatal("skip_installed without state should be rejected")
	}
}

func TestCheckResolvesWithoutDownloading(t *testing.T) {
	h := newHarness(t, app("alpha", true), app("beta", false))
	u, err := New(h.opts)
	if err != nil {
		t.Fatal(err)
	}
	results, err := u.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(results) != 2 || results[1].Latest != "v1.2.3" || results[1].Enabled {
		t.Fatalf("unexpected results %+v", results)
	}
	for _, c := range h.calls.log {
		if !strings.HasPrefix(c, "resolve ") {
			t.Fatalf("check must only resolve, saw %q", c)
		}
	}
}
