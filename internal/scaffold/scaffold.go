// Package scaffold generates the plain project files a fresh setup
// needs: pyproject.toml and .gitignore. Like the editor config writer
// it captures pre-write content so the phase can be rolled back to the
// exact prior state.
package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Metadata feeds the generated pyproject.toml project section.
type Metadata struct {
	Name        string
	Description string
	Author      string
	Email       string
}

// Input describes what to generate.
type Input struct {
	Metadata      Metadata
	Dependencies  []string // core specifiers
	PythonVersion string   // constraint string, e.g. "3.10+"
}

type backup struct {
	path    string
	data    []byte
	existed bool
}

// Writer generates scaffold files in one project directory.
type Writer struct {
	projectDir string
	backups    []backup
}

// NewWriter returns a Writer for the project directory.
func NewWriter(projectDir string) *Writer {
	return &Writer{projectDir: projectDir}
}

// Apply writes pyproject.toml (always, backing up any existing one) and
// .gitignore (only when absent, matching long-standing behavior of not
// clobbering a user's ignore rules). Returns the written paths.
func (w *Writer) Apply(in Input) ([]string, error) {
	var written []string

	pyproject := filepath.Join(w.projectDir, "pyproject.toml")
	if err := w.capture(pyproject); err != nil {
		return written, err
	}
	if err := os.WriteFile(pyproject, []byte(renderPyproject(in)), 0o644); err != nil {
		return written, err
	}
	written = append(written, pyproject)

	gitignore := filepath.Join(w.projectDir, ".gitignore")
	if _, err := os.Stat(gitignore); errors.Is(err, os.ErrNotExist) {
		if err := w.capture(gitignore); err != nil {
			return written, err
		}
		if err := os.WriteFile(gitignore, []byte(gitignoreTemplate), 0o644); err != nil {
			return written, err
		}
		written = append(written, gitignore)
	}

	return written, nil
}

// Restore puts captured files back, newest first.
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
	return firstErr
}

func (w *Writer) capture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.backups = append(w.backups, backup{path: path})
			return nil
		}
		return err
	}
	w.backups = append(w.backups, backup{path: path, data: data, existed: true})
	return nil
}

// renderPyproject emits a PEP 621 project table. TOML this flat is
// written directly; the values are quoted with strconv-safe escaping.
func renderPyproject(in Input) string {
	var b strings.Builder
	b.WriteString("[project]\n")
	fmt.Fprintf(&b, "name = %q\n", in.Metadata.Name)
	b.WriteString("version = \"0.1.0\"\n")
	fmt.Fprintf(&b, "description = %q\n", in.Metadata.Description)
	fmt.Fprintf(&b, "requires-python = %q\n", ">="+minVersion(in.PythonVersion))
	b.WriteString("readme = \"README.md\"\n")

	if in.Metadata.Author != "" {
		b.WriteString("authors = [\n")
		if in.Metadata.Email != "" {
			fmt.Fprintf(&b, "    { name = %q, email = %q },\n", in.Metadata.Author, in.Metadata.Email)
		} else {
			fmt.Fprintf(&b, "    { name = %q },\n", in.Metadata.Author)
		}
		b.WriteString("]\n")
	}

	if len(in.Dependencies) > 0 {
		b.WriteString("dependencies = [\n")
		for _, dep := range in.Dependencies {
			fmt.Fprintf(&b, "    %q,\n", dep)
		}
		b.WriteString("]\n")
	}
	return b.String()
}

// minVersion extracts the lower bound from a constraint string:
// "3.10+" -> "3.10", "3.9-3.12" -> "3.9", ">=3.11" -> "3.11".
func minVersion(constraint string) string {
	s := strings.TrimSpace(constraint)
	s = strings.TrimPrefix(s, ">=")
	s = strings.TrimSuffix(s, "+")
	if i := strings.IndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	return s
}

const gitignoreTemplate = `# Python
__pycache__/
*.py[cod]
*$py.class
*.so

# Virtual environments
venv/
.venv/
env/
*.egg-info/

# Distribution / build
dist/
build/
*.egg

# Testing
.pytest_cache/
.coverage
htmlcov/
.tox/

# IDE
.idea/
*.swp

# OS
.DS_Store
Thumbs.db

# Project metadata
.pysetup/
`
