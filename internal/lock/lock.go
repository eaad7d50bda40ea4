// Package lock serializes setup runs against one target project. Two
// concurrent runs on the same path would interleave phase side effects
// and compensations, so the orchestrator takes a flock-based lock under
// the project's metadata directory for the duration of a run.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrLocked is returned when another process is setting up the project.
var ErrLocked = errors.New("another setup run holds the project lock")

// Meta is the JSON sidecar describing the lock holder.
type Meta struct {
	PID        int    `json:"pid"`
	AcquiredAt string `json:"acquired_at"` // RFC3339
}

// Lock is an acquired project lock.
type Lock struct {
	Path string
	file *os.File
}

// Acquire takes the exclusive lock for the project directory. It does
// not block: a held lock yields ErrLocked with the holder's PID.
func Acquire(projectDir string) (*Lock, error) {
	path := filepath.Join(projectDir, ".pysetup", "lock")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir for lock: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			holder := 0
			if meta, metaErr := readMeta(path); metaErr == nil {
				holder = meta.PID
			}
			return nil, fmt.Errorf("%w (holder PID %d)", ErrLocked, holder)
		}
		return nil, fmt.Errorf("flock: %w", err)
	}

	meta := Meta{PID: os.Getpid(), AcquiredAt: time.Now().UTC().Format(time.RFC3339)}
	data, _ := json.Marshal(meta)
	if err := os.WriteFile(path+".meta", data, 0o644); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("write lock meta: %w", err)
	}

	return &Lock{Path: path, file: f}, nil
}

// Release drops the lock and removes its metadata.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("flock LOCK_UN: %w", err)
	}
	err := l.file.Close()
	l.file = nil
	os.Remove(l.Path + ".meta")
	return err
}

func readMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return Meta{}, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}
