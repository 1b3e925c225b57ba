// Package fetch downloads release installers to the local download
// directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/desktop-updater/update-agent/internal/httputil"
	"github.com/desktop-updater/update-agent/internal/logging"
	"github.com/desktop-updater/update-agent/internal/release"
)

// ChunkSize is the read buffer used while streaming a download.
const ChunkSize = 8192

// DefaultIdleTimeout is how long a download may go without receiving data.
const DefaultIdleTimeout = 60 * time.Second

// Options configures a Fetcher.
type Options struct {
	// Client performs the download. It should not set an overall Timeout,
	// which would cut off large installers. Nil means a streaming client
	// with DefaultIdleTimeout transport deadlines.
	Client *http.Client

	// IdleTimeout aborts an attempt that receives no data for this long.
	// Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	// ProxyPrefix is prepended to every download URL.
	ProxyPrefix string

	// MaxRetries is the total number of attempts. Values below 1 mean 1.
	MaxRetries int

	// Sleep waits between attempts. Nil means httputil.Sleep.
	Sleep httputil.SleepFunc

	Logger *slog.Logger
}

// Request identifies the installer to download.
type Request struct {
	AppKey           string
	ListingURL       string
	FilenameTemplate string
	TagTemplate      string
	Version          release.Version
	Dir              string
	Progress         ProgressFunc
}

// Result describes a completed download.
type Result struct {
	Path     string
	URL      string
	Bytes    int64
	Declared int64 // -1 when the server sent no content length
	Attempts int
}

// Fetcher downloads installers with retry.
type Fetcher struct {
	client      *http.Client
	idleTimeout time.Duration
	proxyPrefix string
	maxRetries  int
	sleep       httputil.SleepFunc
	log         *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		client = httputil.NewStreamingClient(DefaultIdleTimeout, "")
	}
	idleTimeout := opts.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = httputil.Sleep
	}
	return &Fetcher{
		client:      client,
		idleTimeout: idleTimeout,
		proxyPrefix: opts.ProxyPrefix,
		maxRetries:  maxRetries,
		sleep:       sleep,
		log:         logging.Or(opts.Logger, "fetch"),
	}
}

// Fetch downloads the installer for req. Transient failures are retried
// with exponential backoff and empty results are retried immediately, both
// up to the configured attempt limit. Other failures return at once.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	filename := Filename(req.FilenameTemplate, req.Version)
	url := DownloadURL(f.proxyPrefix, req.ListingURL, req.Version.Tag(req.TagTemplate), filename)
	dest := filepath.Join(req.Dir, filename)
	log := f.log.With(logging.KeyApp, req.AppKey, logging.KeyVersion, req.Version.String())

	if err := os.MkdirAll(req.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	log.Info("downloading installer", "url", url, "path", dest)

	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 {
			log.Info("retrying download", "attempt", attempt+1, "maxAttempts", f.maxRetries)
		}

		start := time.Now()
		written, declared, err := f.download(ctx, url, dest, newProgressTracker(req.Progress, req.AppKey, attempt+1, 0))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var te *transientError
			if !errors.As(err, &te) {
				return nil, err
			}
			lastErr = err
			log.Warn("download attempt failed", "attempt", attempt+1, logging.KeyError, err)
			if attempt < f.maxRetries-1 {
				if err := f.sleep(ctx, httputil.Backoff(attempt)); err != nil {
					return nil, err
				}
			}
			continue
		}

		info, statErr := os.Stat(dest)
		if statErr != nil || info.Size() == 0 {
			lastErr = errEmptyDownload
			log.Warn("downloaded file is empty", "attempt", attempt+1, "path", dest)
			continue
		}

		if declared >= 0 && info.Size() != declared {
			log.Warn("downloaded size differs from declared length, keeping file",
				"bytes", info.Size(), "declared", declared)
		}

		log.Info("download complete",
			"path", dest,
			"bytes", info.Size(),
			logging.KeyDurationMs, time.Since(start).Milliseconds(),
		)
		return &Result{
			Path:     dest,
			URL:      url,
			Bytes:    written,
			Declared: declared,
			Attempts: attempt + 1,
		}, nil
	}

	return nil, &DownloadExhaustedError{URL: url, Attempts: f.maxRetries, Err: lastErr}
}

// download performs one attempt and returns bytes written and the declared
// content length. The attempt is cancelled once no data has arrived for the
// idle timeout; a slow but steady transfer is never cut off.
func (f *Fetcher) download(ctx context.Context, url, dest string, progress *progressTracker) (int64, int64, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	idle := time.AfterFunc(f.idleTimeout, func() { cancel(errStalled) })
	defer idle.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, -1, fmt.Errorf("build download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, -1, transient("download request: %w", stallCause(ctx, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, -1, transient("download failed with status %d", resp.StatusCode)
	}

	declared := resp.ContentLength
	progress.total = declared

	file, err := os.Create(dest)
	if err != nil {
		return 0, declared, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	var written int64
	buffer := make([]byte, ChunkSize)
	for {
		n, readErr := resp.Body.Read(buffer)
		idle.Reset(f.idleTimeout)
		if n > 0 {
			if _, err := file.Write(buffer[:n]); err != nil {
				return written, declared, fmt.Errorf("failed to write file: %w", err)
			}
			written += int64(n)
			progress.update(written)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, declared, transient("failed to read response: %w", stallCause(ctx, readErr))
		}
	}

	if err := file.Close(); err != nil {
		return written, declared, fmt.Errorf("failed to close file: %w", err)
	}
	return written, declared, nil
}

// stallCause replaces err with errStalled when the idle timer fired.
func stallCause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, errStalled) {
		return fmt.Errorf("%w: %v", errStalled, err)
	}
	return err
}
