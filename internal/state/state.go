// Package state persists the per-project run record and the per-user
// setup history and preferences. Every write goes to a temporary file
// in the target directory followed by a rename, so a crash mid-write
// never corrupts the previous valid document.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ProjectDirName is the metadata directory created under the project.
const ProjectDirName = ".pysetup"

// RunRecord is the per-project state document written by the final
// setup phase.
type RunRecord struct {
	RunID         string             `json:"run_id"`
	Template      string             `json:"template"`
	PythonVersion string             `json:"python_version"`
	Backend       string             `json:"backend"`
	Status        string             `json:"status"` // "committed"
	Packages      []InstalledPackage `json:"packages,omitempty"`
	CreatedAt     string             `json:"created_at"` // RFC3339
}

// InstalledPackage mirrors what the installer reported.
type InstalledPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Backend string `json:"backend"`
}

// PersistError wraps a failed state or history write.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// WriteFileAtomic writes data to a sibling temp file and renames it
// over path. The parent directory is created if needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ProjectStore reads and writes the run record under one project.
type ProjectStore struct {
	dir string // project root
}

// NewProjectStore returns a store rooted at the project directory.
func NewProjectStore(projectDir string) *ProjectStore {
	return &ProjectStore{dir: projectDir}
}

// Path returns the state file location.
func (s *ProjectStore) Path() string {
	return filepath.Join(s.dir, ProjectDirName, "state.json")
}

// Save writes the run record atomically.
func (s *ProjectStore) Save(rec RunRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &PersistError{Path: s.Path(), Err: err}
	}
	if err := WriteFileAtomic(s.Path(), append(data, '\n'), 0o644); err != nil {
		return &PersistError{Path: s.Path(), Err: err}
	}
	return nil
}

// Load reads the run record. A missing file returns os.ErrNotExist.
func (s *ProjectStore) Load() (RunRecord, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return RunRecord{}, err
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return RunRecord{}, &PersistError{Path: s.Path(), Err: err}
	}
	return rec, nil
}

// Snapshot captures the current record bytes so a compensating action
// can put them back. existed is false when no record is on disk.
func (s *ProjectStore) Snapshot() (data []byte, existed bool, err error) {
	data, err = os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &PersistError{Path: s.Path(), Err: err}
	}
	return data, true, nil
}

// Restore puts back a snapshot taken before Save. Re-running setup over
// a previously committed project must leave the old record in place
// when the re-run fails, so a snapshot that existed is rewritten rather
// than deleted.
func (s *ProjectStore) Restore(data []byte, existed bool) error {
	if !existed {
		return s.Delete()
	}
	if err := WriteFileAtomic(s.Path(), data, 0o644); err != nil {
		return &PersistError{Path: s.Path(), Err: err}
	}
	return nil
}

// Delete removes the run record and, when it is left empty, the
// metadata directory. Used as the compensating action of the
// persistence phase.
func (s *ProjectStore) Delete() error {
	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	// Best effort: drop the directory if nothing else lives there.
	os.Remove(filepath.Join(s.dir, ProjectDirName))
	return nil
}

// Now is stubbed in tests.
var Now = func() time.Time { return time.Now().UTC() }
