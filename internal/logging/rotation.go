package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// RotatingWriter appends to a log file and rolls it over by size. Backups
// keep the file extension (update_log.1.txt, update_log.2.txt, ...) so they
// still open in a text editor. Safe for concurrent use.
type RotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	size       int64
	closed     bool
}

// NewRotatingWriter opens filePath for appending. The file is rolled over
// once a write would take it past maxSizeMB, keeping at most maxBackups old
// files. Non-positive values select 10 MB and 3 backups.
func NewRotatingWriter(filePath string, maxSizeMB int, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	rw := &RotatingWriter{
		filePath:   filePath,
		maxSize:    int64(maxSizeMB) << 20,
		maxBackups: maxBackups,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.closed {
		return 0, os.ErrClosed
	}
	if rw.file == nil {
		if err := rw.open(); err != nil {
			return 0, err
		}
	}
	// A record larger than the limit still goes into a fresh file.
	if rw.size > 0 && rw.size+int64(len(p)) > rw.maxSize {
		if err := rw.rollover(); err != nil {
			// Keep logging into the oversized file rather than losing records.
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
			if rw.file == nil {
				return 0, fmt.Errorf("log rotation: %w", err)
			}
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// Close closes the file. Later writes fail with os.ErrClosed.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.closed = true
	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = f
	rw.size = info.Size()
	return nil
}

// rollover moves the current file to the first backup and opens a new one.
// When the backups cannot be shifted the current file is reopened.
func (rw *RotatingWriter) rollover() error {
	err := rw.file.Close()
	rw.file = nil
	if err == nil {
		err = rw.shiftBackups()
	}
	if openErr := rw.open(); openErr != nil {
		return errors.Join(err, openErr)
	}
	return err
}

func (rw *RotatingWriter) shiftBackups() error {
	if err := os.Remove(rw.backupPath(rw.maxBackups)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for i := rw.maxBackups - 1; i >= 1; i-- {
		if err := os.Rename(rw.backupPath(i), rw.backupPath(i+1)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := os.Rename(rw.filePath, rw.backupPath(1)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// backupPath inserts the backup index before the extension.
func (rw *RotatingWriter) backupPath(index int) string {
	ext := filepath.Ext(rw.filePath)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(rw.filePath, ext), index, ext)
}

// Mirror writes every record to the log file and, best effort, to the
// console. Console errors are ignored: an agent started without a console
// (scheduled task, service) must keep its file log.
func Mirror(console, file io.Writer) io.Writer {
	return &mirror{console: console, file: file}
}

type mirror struct {
	console io.Writer
	file    io.Writer
}

func (m *mirror) Write(p []byte) (int, error) {
	_, _ = m.console.Write(p)
	return m.file.Write(p)
}
