package fetch

import (
	"errors"
	"fmt"
)

// errEmptyDownload marks an attempt that completed without leaving a
// non-empty file behind.
var errEmptyDownload = errors.New("downloaded file is missing or empty")

// errStalled marks an attempt cancelled because no data arrived within the
// idle timeout.
var errStalled = errors.New("download stalled")

// DownloadExhaustedError is returned when every download attempt failed.
type DownloadExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *DownloadExhaustedError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *DownloadExhaustedError) Unwrap() error { return e.Err }

// transientError wraps failures worth retrying with backoff: transport
// errors, bad status codes and interrupted bodies.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func transient(format string, args ...any) error {
	return &transientError{err: fmt.Errorf(format, args...)}
}
