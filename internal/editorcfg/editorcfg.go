// Package editorcfg generates the project's .vscode documents and
// reconciles them with whatever the user already has via the deep-merge
// engine. Every write captures the pre-write bytes first so the phase
// can be compensated exactly: previous content restored, or the file
// removed when it did not exist.
package editorcfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lyndonlyu/pysetup/internal/mergedoc"
)

// Dir is the editor settings directory under the project root.
const Dir = ".vscode"

// Input is the generated overlay the template supplies.
type Input struct {
	Settings   map[string]any
	Extensions []string
	Launch     map[string]any // optional launch.json document
	PythonPath string         // sandbox interpreter, defaults the interpreter setting
}

// MergeError reports a pre-existing settings document that could not be
// parsed. The phase fails; nothing is overwritten blindly.
type MergeError struct {
	Path string
	Err  error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("existing %s is not valid JSON: %v", e.Path, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

type backup struct {
	path    string
	data    []byte
	existed bool
}

// Writer applies editor configuration to one project and can restore
// the exact prior state.
type Writer struct {
	projectDir string
	dirExisted bool
	backups    []backup
}

// NewWriter returns a Writer for the project directory.
func NewWriter(projectDir string) *Writer {
	return &Writer{projectDir: projectDir}
}

// Apply merges the generated documents over the user's existing ones
// and writes the results. It returns the written paths and the settings
// keys whose user values the template overrode.
func (w *Writer) Apply(in Input) ([]string, []mergedoc.Override, error) {
	dir := filepath.Join(w.projectDir, Dir)
	if _, err := os.Stat(dir); err == nil {
		w.dirExisted = true
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}

	var written []string
	var overrides []mergedoc.Override

	settings := w.settingsOverlay(in)
	if len(settings) > 0 {
		path := filepath.Join(dir, "settings.json")
		existing, err := w.readExisting(path)
		if err != nil {
			return written, nil, err
		}
		if base, ok := existing.(map[string]any); ok {
			overrides = mergedoc.Overrides(base, settings)
		}
		if err := w.mergeAndWrite(path, existing, settings); err != nil {
			return written, nil, err
		}
		written = append(written, path)
	}

	if len(in.Extensions) > 0 {
		path := filepath.Join(dir, "extensions.json")
		existing, err := w.readExisting(path)
		if err != nil {
			return written, nil, err
		}
		recs := make([]any, len(in.Extensions))
		for i, ext := range in.Extensions {
			recs[i] = ext
		}
		overlay := map[string]any{"recommendations": recs}
		if err := w.mergeAndWrite(path, existing, overlay); err != nil {
			return written, nil, err
		}
		written = append(written, path)
	}

	if len(in.Launch) > 0 {
		path := filepath.Join(dir, "launch.json")
		existing, err := w.readExisting(path)
		if err != nil {
			return written, nil, err
		}
		if err := w.mergeAndWrite(path, existing, in.Launch); err != nil {
			return written, nil, err
		}
		written = append(written, path)
	}

	return written, overrides, nil
}

func (w *Writer) settingsOverlay(in Input) map[string]any {
	overlay := make(map[string]any, len(in.Settings)+1)
	for k, v := range in.Settings {
		overlay[k] = v
	}
	if in.PythonPath != "" {
		if _, set := overlay["python.defaultInterpreterPath"]; !set {
			overlay["python.defaultInterpreterPath"] = in.PythonPath
		}
	}
	return overlay
}

// readExisting parses the current document at path, recording its bytes
// for restore. Missing file yields a nil document.
func (w *Writer) readExisting(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.backups = append(w.backups, backup{path: path})
			return nil, nil
		}
		return nil, err
	}
	w.backups = append(w.backups, backup{path: path, data: data, existed: true})

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &MergeError{Path: path, Err: err}
	}
	return doc, nil
}

func (w *Writer) mergeAndWrite(path string, existing any, overlay any) error {
	merged := overlay
	if existing != nil {
		merged = mergedoc.Merge(existing, overlay)
	}
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Restore puts every touched file back to its pre-Apply content, in
// reverse write order, and removes the settings directory when Apply
// created it. It keeps going past individual failures and reports the
// first one.
func (w *Writer) Restore() error {
	var firstErr error
	for i := len(w.backups) - 1; i >= 0; i-- {
		b := w.backups[i]
		var err error
		if b.existed {
			err = os.WriteFile(b.path, b.data, 0o644)
		} else {
			err = os.Remove(b.path)
			if errors.Is(err, os.ErrNotExist) {
				err = nil
			}
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.backups = nil
	if !w.dirExisted {
		// Only succeeds when empty, which is exactly when it is ours.
		os.Remove(filepath.Join(w.projectDir, Dir))
	}
	return firstErr
}
