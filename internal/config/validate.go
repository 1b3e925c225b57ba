package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var knownArchiveProviders = map[string]bool{
	"local": true,
	"s3":    true,
	"gcs":   true,
	"azure": true,
	"b2":    true,
}

// ValidationResult splits validation errors into fatals (the run cannot
// proceed) and warnings (the value was corrected or is merely suspicious).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether any fatal error was found.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// ValidateTiered checks the config. Out-of-range numbers are clamped to safe
// values and reported as warnings.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.DownloadDir == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("download_dir must not be empty"))
	}

	if err := checkHTTPURL("connectivity_url", c.ConnectivityURL); err != nil {
		r.Fatals = append(r.Fatals, err)
	}
	if c.ProxyPrefix != "" {
		if err := checkHTTPURL("proxy_prefix", c.ProxyPrefix); err != nil {
			r.Fatals = append(r.Fatals, err)
		}
	}

	seen := make(map[string]bool, len(c.Apps))
	for i, app := range c.Apps {
		label := app.Key
		if label == "" {
			label = fmt.Sprintf("apps[%d]", i)
		}
		if app.Key == "" {
			r.Fatals = append(r.Fatals, fmt.Errorf("%s: key is required", label))
		} else if seen[strings.ToLower(app.Key)] {
			r.Fatals = append(r.Fatals, fmt.Errorf("%s: duplicate application key", label))
		}
		seen[strings.ToLower(app.Key)] = true

		if err := checkHTTPURL(label+": listing_url", app.ListingURL); err != nil {
			r.Fatals = append(r.Fatals, err)
		}
		if app.ProcessName == "" {
			r.Fatals = append(r.Fatals, fmt.Errorf("%s: process_name is required", label))
		}
		if app.FilenameTemplate == "" {
			r.Fatals = append(r.Fatals, fmt.Errorf("%s: filename_template is required", label))
		} else if !strings.Contains(app.FilenameTemplate, "{version") && !strings.Contains(app.FilenameTemplate, "{tag}") {
			r.Warnings = append(r.Warnings, fmt.Errorf("%s: filename_template %q has no version placeholder", label, app.FilenameTemplate))
		}
	}

	if c.Archive.Provider != "" && !knownArchiveProviders[strings.ToLower(c.Archive.Provider)] {
		r.Fatals = append(r.Fatals, fmt.Errorf("archive.provider %q is not valid (use local, s3, gcs, azure or b2)", c.Archive.Provider))
	}

	if c.MaxRetries < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_retries %d is below minimum 1, clamping", c.MaxRetries))
		c.MaxRetries = 1
	} else if c.MaxRetries > 10 {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_retries %d exceeds maximum 10, clamping", c.MaxRetries))
		c.MaxRetries = 10
	}

	if c.ListingRetries < 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("listing_retries %d is negative, clamping", c.ListingRetries))
		c.ListingRetries = 0
	}

	c.UpdateDelay = clampDuration(&r, "update_delay", c.UpdateDelay, 0, 10*time.Minute)
	c.SettleDelay = clampDuration(&r, "settle_delay", c.SettleDelay, 0, 5*time.Minute)
	c.ListingTimeout = clampDuration(&r, "listing_timeout", c.ListingTimeout, time.Second, 10*time.Minute)
	c.DownloadTimeout = clampDuration(&r, "download_timeout", c.DownloadTimeout, time.Second, time.Hour)
	c.ConnectivityTimeout = clampDuration(&r, "connectivity_timeout", c.ConnectivityTimeout, time.Second, 5*time.Minute)

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	return r
}

// Validate runs ValidateTiered and logs every problem.
func (c *Config) Validate() ValidationResult {
	result := c.ValidateTiered()
	for _, err := range result.Fatals {
		slog.Error("config validation", "error", err)
	}
	for _, err := range result.Warnings {
		slog.Warn("config validation", "error", err)
	}
	return result
}

func checkHTTPURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is not a valid URL: %w", field, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q has no host", field, raw)
	}
	return nil
}

func clampDuration(r *ValidationResult, field string, d, min, max time.Duration) time.Duration {
	if d < min {
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %s is below minimum %s, clamping", field, d, min))
		return min
	}
	if d > max {
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %s exceeds maximum %s, clamping", field, d, max))
		return max
	}
	return d
}
