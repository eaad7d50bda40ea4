package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// HistoryEntry is one completed or failed setup run in the per-user
// history document.
type HistoryEntry struct {
	RunID     string  `json:"run_id"`
	Template  string  `json:"template"`
	Path      string  `json:"path"`
	Backend   string  `json:"backend"`
	Success   bool    `json:"success"`
	Duration  float64 `json:"duration_seconds"`
	Timestamp string  `json:"timestamp"` // RFC3339
}

// historyDoc is the on-disk shape.
type historyDoc struct {
	Entries []HistoryEntry `json:"entries"`
}

// History is the process-wide setup history, one JSON document per
// user. All mutation goes through atomic rewrite of the whole file.
type History struct {
	path string
}

// NewHistory returns a History stored at path.
func NewHistory(path string) *History {
	return &History{path: path}
}

// DefaultHistoryPath is ~/.config/pysetup/history.json.
func DefaultHistoryPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "pysetup", "history.json"), nil
}

// Path returns the backing file location.
func (h *History) Path() string { return h.path }

func (h *History) load() (historyDoc, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return historyDoc{}, nil
		}
		return historyDoc{}, err
	}
	var doc historyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return historyDoc{}, &PersistError{Path: h.path, Err: err}
	}
	return doc, nil
}

func (h *History) save(doc historyDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &PersistError{Path: h.path, Err: err}
	}
	if err := WriteFileAtomic(h.path, append(data, '\n'), 0o644); err != nil {
		return &PersistError{Path: h.path, Err: err}
	}
	return nil
}

// Append adds one entry to the end of the history.
func (h *History) Append(e HistoryEntry) error {
	doc, err := h.load()
	if err != nil {
		return err
	}
	doc.Entries = append(doc.Entries, e)
	return h.save(doc)
}

// RemoveLast removes the most recent entry if it belongs to runID. Used
// as the compensating action after a failed final phase; a history that
// never gained the entry is left untouched.
func (h *History) RemoveLast(runID string) error {
	doc, err := h.load()
	if err != nil {
		return err
	}
	n := len(doc.Entries)
	if n == 0 || doc.Entries[n-1].RunID != runID {
		return nil
	}
	doc.Entries = doc.Entries[:n-1]
	return h.save(doc)
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (h *History) Recent(n int) ([]HistoryEntry, error) {
	doc, err := h.load()
	if err != nil {
		return nil, err
	}
	entries := doc.Entries
	out := make([]HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if n > 0 && len(out) == n {
			break
		}
	}
	return out, nil
}

// Timestamp formats t the way history entries store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
