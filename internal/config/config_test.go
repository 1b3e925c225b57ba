package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCarriesBuiltInApps(t *testing.T) {
	cfg := Default()
	if len(cfg.Apps) != 6 {
		t.Fatalf("expected 6 built-in apps, got %d", len(cfg.Apps))
	}
	app, ok := cfg.App("NoteGen")
	if !ok {
		t.Fatal("lookup should be case-insensitive")
	}
	if app.TagTemplate != "note-gen-v{version}" {
		t.Fatalf("unexpected NoteGen tag template %q", app.TagTemplate)
	}
	if cfg.DownloadDir == "" {
		t.Fatal("download dir should default to the executable directory")
	}
}

func TestLoadFromFileReplacesAppTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "update-agent.yaml")
	content := `
download_dir: ` + dir + `
update_delay: 1s
max_retries: 5
proxy_prefix: ""
apps:
  - key: joplin
    name: Joplin
    listing_url: https://github.com/laurent22/joplin/releases
    process_name: Joplin.exe
    filename_template: Joplin-Setup-{version}.exe
    enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DownloadDir != dir {
		t.Fatalf("DownloadDir = %q, want %q", cfg.DownloadDir, dir)
	}
	if cfg.UpdateDelay != time.Second {
		t.Fatalf("UpdateDelay = %s, want 1s", cfg.UpdateDelay)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.ProxyPrefix != "" {
		t.Fatalf("ProxyPrefix = %q, want empty", cfg.ProxyPrefix)
	}
	if cfg.SettleDelay != 2*time.Second {
		t.Fatalf("SettleDelay default lost: %s", cfg.SettleDelay)
	}
	if len(cfg.Apps) != 1 {
		t.Fatalf("configured table should replace defaults, got %d apps", len(cfg.Apps))
	}
	app := cfg.Apps[0]
	if app.Key != "joplin" || app.Enabled || app.TagTemplate != "" {
		t.Fatalf("unexpected app %+v", app)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("UPDATE_AGENT_MAX_RETRIES", "7")
	t.Setenv("UPDATE_AGENT_LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "update-agent.yaml")
	if err := os.WriteFile(path, []byte("log_format: json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != 7 {
		t.Fatalf("MaxRetries = %d, want 7 from env", cfg.MaxRetries)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug from env", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("LogFormat = %q, want json from file", cfg.LogFormat)
	}
	if len(cfg.Apps) != 6 {
		t.Fatalf("built-in apps should be kept without an apps key, got %d", len(cfg.Apps))
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("an explicitly named config file that does not exist should fail")
	}
}

func TestSelectApps(t *testing.T) {
	cfg := Default()

	all, err := cfg.SelectApps(nil)
	if err != nil || len(all) != len(cfg.Apps) {
		t.Fatalf("SelectApps(nil) = %d apps, err %v", len(all), err)
	}

	picked, err := cfg.SelectApps([]string{"trilium", "obsidian"})
	if err != nil {
		t.Fatalf("SelectApps: %v", err)
	}
	if len(picked) != 2 || picked[0].Key != "obsidian" || picked[1].Key != "trilium" {
		t.Fatalf("expected configured order obsidian, trilium; got %+v", picked)
	}

	if _, err := cfg.SelectApps([]string{"nope"}); err == nil {
		t.Fatal("unknown key should fail")
	}
}

func TestPathResolvesAgainstDownloadDir(t *testing.T) {
	cfg := Default()
	cfg.DownloadDir = filepath.Join("opt", "agent")
	if got := cfg.Path("update_log.txt"); got != filepath.Join("opt", "agent", "update_log.txt") {
		t.Fatalf("Path = %q", got)
	}
	abs := filepath.Join(t.TempDir(), "x.log")
	if got := cfg.Path(abs); got != abs {
		t.Fatalf("absolute path should be kept, got %q", got)
	}
}
