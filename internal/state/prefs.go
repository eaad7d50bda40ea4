package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Preferences remembers the user's last choices so later runs can
// default to them.
type Preferences struct {
	LastTemplate  string `json:"last_template,omitempty"`
	LastBackend   string `json:"last_backend,omitempty"`
	LastPython    string `json:"last_python,omitempty"`
	SetupCount    int    `json:"setup_count"`
	FirstRun      bool   `json:"first_run"`
	LastUpdatedAt string `json:"last_updated_at,omitempty"`
}

// PrefStore loads and saves preferences. A corrupt file is moved aside
// and replaced with defaults rather than failing the run.
type PrefStore struct {
	path string
}

// NewPrefStore returns a store at path.
func NewPrefStore(path string) *PrefStore {
	return &PrefStore{path: path}
}

// DefaultPrefsPath is ~/.config/pysetup/preferences.json.
func DefaultPrefsPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "pysetup", "preferences.json"), nil
}

// Load reads preferences, creating defaults when the file is missing or
// unreadable as JSON. The corrupt original is preserved next to the
// store as <name>.corrupt.
func (s *PrefStore) Load() (Preferences, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Preferences{FirstRun: true}, nil
		}
		return Preferences{}, fmt.Errorf("load preferences: %w", err)
	}
	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		os.Rename(s.path, s.path+".corrupt")
		return Preferences{FirstRun: true}, nil
	}
	return p, nil
}

// Save writes preferences atomically.
func (s *PrefStore) Save(p Preferences) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	if err := WriteFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	return nil
}

// RecordSetup updates preferences after a completed run.
func (s *PrefStore) RecordSetup(template, backend, python string) error {
	p, err := s.Load()
	if err != nil {
		return err
	}
	p.LastTemplate = template
	p.LastBackend = backend
	p.LastPython = python
	p.SetupCount++
	p.FirstRun = false
	p.LastUpdatedAt = Timestamp(Now())
	return s.Save(p)
}
