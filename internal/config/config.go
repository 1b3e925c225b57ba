package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent mimics a desktop browser; release pages serve reduced
// markup to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// AppProfile describes one application the agent keeps up to date.
type AppProfile struct {
	Key         string `mapstructure:"key" yaml:"key"`
	Name        string `mapstructure:"name" yaml:"name"`
	ListingURL  string `mapstructure:"listing_url" yaml:"listing_url"`
	ProcessName string `mapstructure:"process_name" yaml:"process_name"`

	// FilenameTemplate accepts {version}, {version_clean} (both without the
	// leading v) and {tag} (with it).
	FilenameTemplate string `mapstructure:"filename_template" yaml:"filename_template"`

	// TagTemplate builds the release tag used in the download URL.
	// Empty means "v{version}".
	TagTemplate string `mapstructure:"tag_template" yaml:"tag_template,omitempty"`

	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DisplayName returns Name, falling back to Key.
func (p AppProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Key
}

// ArchiveConfig selects an optional store that receives a copy of every
// downloaded installer.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"` // local, s3, gcs, azure, b2; empty disables
	Prefix   string `mapstructure:"prefix"`

	// local
	LocalPath string `mapstructure:"local_path"`

	// s3, gcs, azure (container), b2
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`

	// s3 keys, b2 account id / application key
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`

	// gcs
	CredentialsFile string `mapstructure:"credentials_file"`

	// azure
	ConnectionString string `mapstructure:"connection_string"`
}

// Config holds all agent configuration.
type Config struct {
	DownloadDir string `mapstructure:"download_dir"`

	// Delays
	UpdateDelay time.Duration `mapstructure:"update_delay"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`

	// HTTP
	MaxRetries          int           `mapstructure:"max_retries"`
	ListingRetries      int           `mapstructure:"listing_retries"`
	ListingTimeout      time.Duration `mapstructure:"listing_timeout"`
	// DownloadTimeout bounds connecting, waiting for headers and each idle
	// gap in the body, never the whole transfer.
	DownloadTimeout     time.Duration `mapstructure:"download_timeout"`
	ConnectivityURL     string        `mapstructure:"connectivity_url"`
	ConnectivityTimeout time.Duration `mapstructure:"connectivity_timeout"`
	ProxyPrefix         string        `mapstructure:"proxy_prefix"`
	UserAgent           string        `mapstructure:"user_agent"`

	MinInstallerSize int64  `mapstructure:"min_installer_size"`
	SnapshotFile     string `mapstructure:"snapshot_file"`
	StateFile        string `mapstructure:"state_file"`
	SkipInstalled    bool   `mapstructure:"skip_installed"`

	// Logging
	LogFile       string `mapstructure:"log_file"`
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	Archive ArchiveConfig `mapstructure:"archive"`
	Apps    []AppProfile  `mapstructure:"apps"`
}

// Default returns configuration with the built-in application table.
func Default() *Config {
	return &Config{
		DownloadDir:         ExecutableDir(),
		UpdateDelay:         5 * time.Second,
		SettleDelay:         2 * time.Second,
		MaxRetries:          3,
		ListingRetries:      2,
		ListingTimeout:      30 * time.Second,
		DownloadTimeout:     60 * time.Second,
		ConnectivityURL:     "https://github.com",
		ConnectivityTimeout: 10 * time.Second,
		ProxyPrefix:         "https://gh-proxy.com/",
		UserAgent:           DefaultUserAgent,
		MinInstallerSize:    1000000,
		SnapshotFile:        "github_page.html",
		StateFile:           "update_state.yaml",
		LogFile:             "update_log.txt",
		LogLevel:            "info",
		LogFormat:           "text",
		LogMaxSizeMB:        10,
		LogMaxBackups:       3,
		Apps:                DefaultApps(),
	}
}

// DefaultApps returns the built-in application table.
func DefaultApps() []AppProfile {
	return []AppProfile{
		{
			Key:              "obsidian",
			Name:             "Obsidian",
			ListingURL:       "https://github.com/obsidianmd/obsidian-releases/releases",
			ProcessName:      "Obsidian.exe",
			FilenameTemplate: "Obsidian-{version}.exe",
			Enabled:          true,
		},
		{
			Key:              "notegen",
			Name:             "NoteGen",
			ListingURL:       "https://github.com/codexu/note-gen/releases",
			ProcessName:      "NoteGen.exe",
			FilenameTemplate: "NoteGen_{version_clean}_x64-setup.exe",
			TagTemplate:      "note-gen-v{version}",
			Enabled:          true,
		},
		{
			Key:              "yank_note",
			Name:             "Yank Note",
			ListingURL:       "https://github.com/purocean/yn/releases",
			ProcessName:      "Yank-Note.exe",
			FilenameTemplate: "Yank-Note-win-x64-{version}.exe",
			Enabled:          true,
		},
		{
			Key:              "joplin",
			Name:             "Joplin",
			ListingURL:       "https://github.com/laurent22/joplin/releases",
			ProcessName:      "Joplin.exe",
			FilenameTemplate: "Joplin-Setup-{version}.exe",
			Enabled:          true,
		},
		{
			Key:              "siyuan",
			Name:             "SiYuan",
			ListingURL:       "https://github.com/siyuan-note/siyuan/releases/latest",
			ProcessName:      "siyuan.exe",
			FilenameTemplate: "siyuan-{version}-win.exe",
			Enabled:          true,
		},
		{
			Key:              "trilium",
			Name:             "Trilium Notes",
			ListingURL:       "https://github.com/TriliumNext/Trilium/releases",
			ProcessName:      "TriliumNotes.exe",
			FilenameTemplate: "TriliumNotes-v{version}-windows-x64.exe",
			Enabled:          true,
		},
	}
}

// Load reads configuration from file and environment. A missing config
// file is not an error; the defaults are used.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("update-agent")
		v.SetConfigType("yaml")
		v.AddConfigPath(ExecutableDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("UPDATE_AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// A configured table replaces the built-in one instead of merging into
	// it element by element.
	if v.IsSet("apps") {
		cfg.Apps = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = ExecutableDir()
	}

	return cfg, nil
}

// setDefaults registers scalar defaults so environment overrides work for
// keys that never appear in the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("download_dir", cfg.DownloadDir)
	v.SetDefault("update_delay", cfg.UpdateDelay)
	v.SetDefault("settle_delay", cfg.SettleDelay)
	v.SetDefault("max_retries", cfg.MaxRetries)
	v.SetDefault("listing_retries", cfg.ListingRetries)
	v.SetDefault("listing_timeout", cfg.ListingTimeout)
	v.SetDefault("download_timeout", cfg.DownloadTimeout)
	v.SetDefault("connectivity_url", cfg.ConnectivityURL)
	v.SetDefault("connectivity_timeout", cfg.ConnectivityTimeout)
	v.SetDefault("proxy_prefix", cfg.ProxyPrefix)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("min_installer_size", cfg.MinInstallerSize)
	v.SetDefault("snapshot_file", cfg.SnapshotFile)
	v.SetDefault("state_file", cfg.StateFile)
	v.SetDefault("skip_installed", cfg.SkipInstalled)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)
	v.SetDefault("archive.provider", "")
}

// Path resolves name against the download directory unless it is absolute.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DownloadDir, name)
}

// App returns the profile with the given key.
func (c *Config) App(key string) (AppProfile, bool) {
	for _, app := range c.Apps {
		if strings.EqualFold(app.Key, key) {
			return app, true
		}
	}
	return AppProfile{}, false
}

// SelectApps narrows the application table to the given keys, keeping the
// configured order. An empty key list selects every application.
func (c *Config) SelectApps(keys []string) ([]AppProfile, error) {
	if len(keys) == 0 {
		out := make([]AppProfile, len(c.Apps))
		copy(out, c.Apps)
		return out, nil
	}

	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		if _, ok := c.App(key); !ok {
			return nil, fmt.Errorf("unknown application %q", key)
		}
		wanted[strings.ToLower(key)] = true
	}

	var out []AppProfile
	for _, app := range c.Apps {
		if wanted[strings.ToLower(app.Key)] {
			out = append(out, app)
		}
	}
	return out, nil
}

// ExecutableDir returns the directory containing the running binary,
// falling back to the working directory.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
