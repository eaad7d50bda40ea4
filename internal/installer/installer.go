// Package installer installs dependency specifiers into a project
// sandbox through one of several package-manager backends. Backends are
// probed for availability and selected from a fixed preference order;
// transient (network-shaped) failures are retried with linear backoff.
package installer

import (
	"context"
	"fmt"
	"time"

	"github.com/lyndonlyu/pysetup/internal/execx"
	"github.com/lyndonlyu/pysetup/internal/retry"
)

// Request describes one installation of a package set into a sandbox.
type Request struct {
	Packages   []string // specifiers, e.g. "fastapi>=0.104.0"
	Python     string   // sandbox interpreter path
	ProjectDir string
	Timeout    time.Duration // hard bound per attempt
}

// Package is one installed distribution reported by the backend.
type Package struct {
	Name    string
	Version string
}

// Result is the outcome of an install, successful or not. Backend names
// the tool that actually ran, which may differ from the caller's
// preference after a fallback.
type Result struct {
	Backend   string
	Requested []string
	Installed []Package
	Duration  time.Duration
	Output    string
}

// Backend is one package-installation tool.
type Backend interface {
	Name() string
	// Available reports whether the backend's executable is resolvable.
	Available() bool
	// install performs a single attempt.
	install(ctx context.Context, req Request) (execx.Result, error)
}

// TransientError is a network-shaped installation failure that survived
// the retry bound.
type TransientError struct {
	Backend  string
	Attempts int
	Output   string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s install failed after %d attempts (transient): %s", e.Backend, e.Attempts, excerpt(e.Output))
}

// TerminalError is an installation failure retrying cannot fix, e.g. an
// unresolvable package specifier.
type TerminalError struct {
	Backend string
	Output  string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s install failed: %s", e.Backend, excerpt(e.Output))
}

func excerpt(out string) string {
	const max = 400
	if len(out) > max {
		return "..." + out[len(out)-max:]
	}
	if out == "" {
		return "(no output)"
	}
	return out
}

// preferenceOrder is the fixed fallback order when the preferred
// backend is unavailable.
var preferenceOrder = []string{"uv", "pip", "poetry"}

// Backends returns all known backends over the given runner.
func Backends(runner execx.Runner) []Backend {
	return []Backend{
		&uvBackend{runner: runner},
		&pipBackend{runner: runner},
		&poetryBackend{runner: runner},
	}
}

// Select returns the first available backend, trying preferred first and
// then the fixed preference order. The candidate slice may be a subset
// of all backends (the orchestrator passes only those the template
// supports); fallback names absent from it are skipped. The returned
// warning is non-empty when the preferred backend was substituted;
// selection is never silent. An error is returned when no backend is
// available.
func Select(preferred string, backends []Backend) (Backend, string, error) {
	byName := make(map[string]Backend, len(backends))
	for _, b := range backends {
		byName[b.Name()] = b
	}

	order := make([]string, 0, len(preferenceOrder)+1)
	if preferred != "" {
		order = append(order, preferred)
	}
	for _, name := range preferenceOrder {
		if name != preferred {
			order = append(order, name)
		}
	}

	for _, name := range order {
		b, known := byName[name]
		if !known {
			if name == preferred {
				return nil, "", fmt.Errorf("installer: unknown backend %q", name)
			}
			continue
		}
		if !b.Available() {
			continue
		}
		warning := ""
		if preferred != "" && name != preferred {
			warning = fmt.Sprintf("backend %q is not available, falling back to %q", preferred, name)
		}
		return b, warning, nil
	}
	return nil, "", fmt.Errorf("installer: no package-manager backend available")
}

// Installer runs a backend under the retry policy.
type Installer struct {
	backend Backend
	policy  retry.Policy
}

// New returns an Installer for the backend with the given policy.
func New(backend Backend, policy retry.Policy) *Installer {
	return &Installer{backend: backend, policy: policy}
}

// Install performs the installation, retrying transient failures up to
// the policy bound. It returns the result of the last attempt; on
// failure the error is *TransientError or *TerminalError.
func (i *Installer) Install(ctx context.Context, req Request) (Result, error) {
	result := Result{
		Backend:   i.backend.Name(),
		Requested: req.Packages,
	}
	if len(req.Packages) == 0 {
		return result, nil
	}

	start := time.Now()
	attempts := 0
	err := i.policy.Do(ctx, func(n int) (retry.Kind, error) {
		attempts++
		res, runErr := i.backend.install(ctx, req)
		result.Output = res.Output

		if runErr == nil && res.ExitCode == 0 {
			result.Installed = parseInstalled(res.Output, i.backend.Name())
			return retry.Transient, nil
		}

		kind := retry.Classify(runErr, res.ExitCode, res.Output, res.TimedOut)
		if kind == retry.Terminal {
			return retry.Terminal, &TerminalError{Backend: i.backend.Name(), Output: res.Output}
		}
		return kind, &TransientError{Backend: i.backend.Name(), Attempts: attempts, Output: res.Output}
	})
	result.Duration = time.Since(start)

	if err != nil {
		// Make sure the surfaced transient error carries the final
		// attempt count, not the one it was created with.
		if te, ok := err.(*TransientError); ok {
			te.Attempts = attempts
		}
		return result, err
	}
	return result, nil
}
