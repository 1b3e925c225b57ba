// Package report collects per-application results of an update run.
package report

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"
)

// Status is the result of processing one application.
type Status string

const (
	Updated Status = "updated"
	Skipped Status = "skipped"
	Failed  Status = "failed"
)

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case Updated, Skipped, Failed:
		return true
	}
	return false
}

// Succeeded reports whether s counts toward the success total.
func (s Status) Succeeded() bool {
	return s == Updated || s == Skipped
}

// Entry is the recorded result for one application.
type Entry struct {
	App       string
	Name      string
	Status    Status
	Version   string
	Step      string // step that failed, empty otherwise
	Message   string
	UpdatedAt time.Time
}

// Report keeps entries in the order applications were first recorded.
type Report struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
	now     func() time.Time
}

// New creates an empty report.
func New() *Report {
	return &Report{index: make(map[string]int), now: time.Now}
}

// Record stores e, replacing an earlier entry for the same application.
// Invalid statuses are stored as Failed.
func (r *Report) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !e.Status.IsValid() {
		e.Status = Failed
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = r.now()
	}
	if i, ok := r.index[e.App]; ok {
		r.entries[i] = e
		return
	}
	r.index[e.App] = len(r.entries)
	r.entries = append(r.entries, e)
}

// Get returns the entry for app.
func (r *Report) Get(app string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[app]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// All returns a copy of every entry in record order.
func (r *Report) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Counts returns how many entries succeeded and how many were recorded.
func (r *Report) Counts() (succeeded, total int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Status.Succeeded() {
			succeeded++
		}
	}
	return succeeded, len(r.entries)
}

// Overall returns Failed if any entry failed, Updated if any was updated
// and Skipped otherwise, including for an empty report.
func (r *Report) Overall() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	worst := Skipped
	for _, e := range r.entries {
		if rank(e.Status) > rank(worst) {
			worst = e.Status
		}
	}
	return worst
}

func rank(s Status) int {
	switch s {
	case Skipped:
		return 0
	case Updated:
		return 1
	default:
		return 2
	}
}

// WriteTable prints one aligned line per entry followed by the totals.
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "APP\tSTATUS\tVERSION\tDETAIL")
	for _, e := range r.All() {
		detail := e.Message
		if e.Step != "" {
			detail = e.Step + ": " + e.Message
		}
		version := e.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Status, version, detail)
	}
	succeeded, total := r.Counts()
	fmt.Fprintf(tw, "\n%d/%d succeeded\n", succeeded, total)
	return tw.Flush()
}
