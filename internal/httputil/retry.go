package httputil

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/desktop-updater/update-agent/internal/logging"
)

var log = logging.L("httputil")

// RetryConfig controls Get. Delays follow Backoff with random jitter.
type RetryConfig struct {
	MaxRetries int     // extra attempts after the first
	Jitter     float64 // ±fraction of each delay, e.g. 0.3

	// Sleep waits between attempts. Nil means Sleep.
	Sleep SleepFunc
}

// DefaultRetryConfig returns defaults for release-listing requests.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, Jitter: 0.3}
}

// Backoff returns the delay after the given zero-based failed attempt:
// 1s, 2s, 4s, ...
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	return time.Second << attempt
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Get fetches url, retrying transport errors, 429 and 5xx responses. Any
// other response is returned to the caller as is. When retries run out on
// a bad status the error is a *StatusError.
func Get(ctx context.Context, client *http.Client, url string, cfg RetryConfig) (*http.Response, error) {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := jitter(Backoff(attempt-1), cfg.Jitter)
			log.Debug("retrying request", "attempt", attempt+1, "delay", delay, "url", url, logging.KeyError, lastErr)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	log.Warn("all retries exhausted", "url", url, "attempts", cfg.MaxRetries+1, logging.KeyError, lastErr)
	return nil, lastErr
}

func jitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	return time.Duration(float64(d) * (1 + frac*(2*rand.Float64()-1)))
}
