// Package execx runs external package-manager and interpreter processes
// with a hard per-invocation timeout and combined output capture.
// Commands are argument vectors, never shell strings, and the binary
// must be on a fixed allow-list.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Cmd describes one process invocation.
type Cmd struct {
	Path    string // executable name or absolute path
	Args    []string
	Dir     string // working directory; empty = inherit
	Timeout time.Duration
}

// Result captures the process outcome.
type Result struct {
	ExitCode int
	Output   string // combined stdout+stderr
	Duration time.Duration
	TimedOut bool
}

// Runner executes commands. Tests substitute a fake implementation.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
	LookPath(name string) (string, error)
}

// allowedBinaries are the only executables a ProcRunner will start.
// Matched on the basename so venv interpreter paths resolve too.
var allowedBinaries = map[string]bool{
	"python":  true,
	"python3": true,
	"pip":     true,
	"uv":      true,
	"poetry":  true,
}

func allowed(path string) bool {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".exe")
	if allowedBinaries[base] {
		return true
	}
	// Versioned interpreters like python3.12.
	return strings.HasPrefix(base, "python3.")
}

// ProcRunner is the os/exec-backed Runner.
type ProcRunner struct{}

// NewProcRunner returns a Runner backed by os/exec.
func NewProcRunner() *ProcRunner {
	return &ProcRunner{}
}

// Run starts the command and waits for it to exit or for the timeout to
// elapse. A non-zero exit is not an error at this layer; callers
// classify Result.ExitCode and Result.Output themselves.
func (r *ProcRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	if !allowed(c.Path) {
		return Result{}, fmt.Errorf("execx: binary not allowed: %s", c.Path)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Output:   combined.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() != nil {
			result.TimedOut = ctx.Err() == context.DeadlineExceeded
			return result, ctx.Err()
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("execx: %s: %w", c.Path, err)
	}
	return result, nil
}

// LookPath resolves an allow-listed binary on PATH.
func (r *ProcRunner) LookPath(name string) (string, error) {
	if !allowed(name) {
		return "", fmt.Errorf("execx: binary not allowed: %s", name)
	}
	return exec.LookPath(name)
}
