// Package venv creates and validates the project's isolated Python
// runtime directory. Creation is the first phase of a setup run; its
// compensating action is a recursive delete of the directory.
package venv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/lyndonlyu/pysetup/internal/execx"
)

// DirName is the sandbox directory created under the project root.
const DirName = ".venv"

const (
	probeTimeout  = 10 * time.Second
	createTimeout = 120 * time.Second
)

// Handle identifies a created sandbox.
type Handle struct {
	Dir     string // absolute sandbox directory
	Python  string // interpreter inside the sandbox
	Version string // concrete interpreter version, e.g. "3.11.4"
}

// CreationError reports why the sandbox could not be created.
type CreationError struct {
	Reason string // "interpreter", "version", "subprocess", "layout"
	Err    error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("sandbox creation failed (%s): %v", e.Reason, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// Manager creates and removes sandboxes through a process runner.
type Manager struct {
	runner execx.Runner
}

// NewManager returns a Manager backed by the given runner.
func NewManager(runner execx.Runner) *Manager {
	return &Manager{runner: runner}
}

// Create discovers a suitable interpreter, builds the venv under
// projectDir and validates the resulting layout.
func (m *Manager) Create(ctx context.Context, projectDir string, c Constraint) (Handle, error) {
	exe, version, err := m.discover(ctx, c)
	if err != nil {
		return Handle{}, err
	}

	dir := filepath.Join(projectDir, DirName)
	res, err := m.runner.Run(ctx, execx.Cmd{
		Path:    exe,
		Args:    []string{"-m", "venv", dir},
		Timeout: createTimeout,
	})
	if err != nil {
		return Handle{}, &CreationError{Reason: "subprocess", Err: err}
	}
	if res.ExitCode != 0 {
		return Handle{}, &CreationError{
			Reason: "subprocess",
			Err:    fmt.Errorf("%s -m venv exited %d: %s", exe, res.ExitCode, strings.TrimSpace(res.Output)),
		}
	}

	h := Handle{Dir: dir, Python: interpreterPath(dir), Version: version}
	if err := validateLayout(h); err != nil {
		return Handle{}, &CreationError{Reason: "layout", Err: err}
	}
	return h, nil
}

// Remove deletes the sandbox directory tree. Missing directories are
// not an error, so the compensating action stays idempotent.
func (m *Manager) Remove(h Handle) error {
	if h.Dir == "" {
		return nil
	}
	return os.RemoveAll(h.Dir)
}

// discover walks candidate interpreter names from most to least
// specific and returns the first whose reported version satisfies the
// constraint.
func (m *Manager) discover(ctx context.Context, c Constraint) (string, string, error) {
	var candidates []string
	if c.Min != "" {
		candidates = append(candidates, "python"+c.Min)
	}
	candidates = append(candidates, "python3", "python")

	var lastVersion string
	for _, name := range candidates {
		path, err := m.runner.LookPath(name)
		if err != nil {
			continue
		}
		version, err := m.interpreterVersion(ctx, path)
		if err != nil {
			continue
		}
		lastVersion = version
		if c.Satisfies(version) {
			return path, version, nil
		}
	}
	if lastVersion != "" {
		return "", "", &CreationError{
			Reason: "version",
			Err:    fmt.Errorf("requested %s, found %s", c, lastVersion),
		}
	}
	return "", "", &CreationError{
		Reason: "interpreter",
		Err:    fmt.Errorf("no python interpreter on PATH satisfies %s", c),
	}
}

func (m *Manager) interpreterVersion(ctx context.Context, exe string) (string, error) {
	res, err := m.runner.Run(ctx, execx.Cmd{
		Path:    exe,
		Args:    []string{"-c", "import platform; print(platform.python_version())"},
		Timeout: probeTimeout,
	})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("version probe exited %d", res.ExitCode)
	}
	return strings.TrimSpace(res.Output), nil
}

func interpreterPath(dir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(dir, "Scripts", "python.exe")
	}
	return filepath.Join(dir, "bin", "python")
}

func validateLayout(h Handle) error {
	if _, err := os.Stat(filepath.Join(h.Dir, "pyvenv.cfg")); err != nil {
		return fmt.Errorf("missing pyvenv.cfg: %w", err)
	}
	if _, err := os.Stat(h.Python); err != nil {
		return fmt.Errorf("missing interpreter %s: %w", h.Python, err)
	}
	return nil
}
