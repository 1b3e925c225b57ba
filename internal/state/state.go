// Package state remembers which installer version was last launched for
// each application.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry records the last launched installer for one application.
type Entry struct {
	Version    string    `yaml:"version"`
	Installer  string    `yaml:"installer"`
	LaunchedAt time.Time `yaml:"launched_at"`
}

type document struct {
	Apps map[string]Entry `yaml:"apps"`
}

// Store is a YAML-backed map of application key to Entry. Every Record
// rewrites the file.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Load opens the state file at path. A missing file yields an empty store.
func Load(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("state path is empty")
	}
	s := &Store{path: path, doc: document{Apps: map[string]Entry{}}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("unmarshal state %s: %w", path, err)
	}
	if s.doc.Apps == nil {
		s.doc.Apps = map[string]Entry{}
	}
	return s, nil
}

// Get returns the entry for key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.doc.Apps[key]
	return e, ok
}

// Record stores e for key and persists the file.
func (s *Store) Record(key string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Apps[key] = e
	return s.save()
}

func (s *Store) save() error {
	data, err := yaml.Marshal(&s.doc)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
