package process

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot caches the image names of all running processes.
type Snapshot struct {
	names map[string]bool // lowercase process names
}

// NewSnapshot lists the running processes.
func NewSnapshot() (*Snapshot, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(procs))
	skipped := 0
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			skipped++
			continue
		}
		names[strings.ToLower(name)] = true
	}

	if skipped > 0 {
		log.Debug("process snapshot skipped processes", "skipped", skipped, "total", len(procs))
	}

	return &Snapshot{names: names}, nil
}

// SnapshotOf builds a snapshot from a fixed list of names.
func SnapshotOf(names ...string) *Snapshot {
	s := &Snapshot{names: make(map[string]bool, len(names))}
	for _, n := range names {
		s.names[strings.ToLower(n)] = true
	}
	return s
}

// IsRunning reports whether a process with the given image name exists.
// Matching ignores case, as Windows image names do.
func (s *Snapshot) IsRunning(name string) bool {
	return s.names[strings.ToLower(name)]
}

// Len returns the number of distinct process names.
func (s *Snapshot) Len() int {
	return len(s.names)
}
