// Package setup runs the transactional phase sequence that turns a bare
// project directory into a configured Python environment. Every phase
// that commits registers a compensating action; any later failure
// unwinds those actions so the directory looks untouched afterwards.
package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lyndonlyu/pysetup/internal/installer"
	"github.com/lyndonlyu/pysetup/internal/rollback"
	"github.com/lyndonlyu/pysetup/internal/template"
)

// State is the lifecycle of one run.
type State int

const (
	Pending State = iota
	Running
	Committed
	RolledBack
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// ErrCancelled marks a run aborted between phases at the user's request.
var ErrCancelled = errors.New("setup cancelled")

// Phase is one sequential unit of work. Run performs the forward
// effect and returns the compensating action for it, or nil when the
// phase leaves nothing to undo.
type Phase struct {
	Name string
	Run  func(ctx context.Context) (undo func() error, err error)
}

// Context carries the mutable state of a single run. It is owned by one
// orchestrator for one run and never reused.
type Context struct {
	RunID      string
	ProjectDir string
	Template   template.Template
	Backend    string // backend that actually ran, set by the install phase
	Python     string // concrete interpreter version, set by the sandbox phase
	Installed  []installer.Package
	Warnings   []string
	Committed  int
	Started    time.Time
}

// Warn records a non-fatal condition for the final report.
func (c *Context) Warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// RunError is the failure of a run: the phase that failed, the original
// cause, and any compensating actions that themselves failed during
// unwind. The original cause stays the primary error.
type RunError struct {
	Phase          string
	State          State
	Err            error
	UnwindFailures []rollback.Failure
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("phase %q failed: %v", e.Phase, e.Err)
	if len(e.UnwindFailures) > 0 {
		var labels []string
		for _, f := range e.UnwindFailures {
			labels = append(labels, f.Label)
		}
		msg += fmt.Sprintf(" (cleanup incomplete: %s)", strings.Join(labels, ", "))
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

// CleanupComplete reports whether every compensating action succeeded.
func (e *RunError) CleanupComplete() bool { return len(e.UnwindFailures) == 0 }

// Report summarizes a finished run for the caller.
type Report struct {
	RunID           string
	State           State
	Backend         string
	Python          string
	Installed       []installer.Package
	Warnings        []string
	Duration        time.Duration
	FailedPhase     string
	Reason          string
	CleanupComplete bool
}

// Progress is an optional per-phase callback, invoked before each phase
// starts.
type Progress func(name string, ordinal, total int)

// Execute drives the phases in order. A phase error, or a cancellation
// observed at a phase boundary, unwinds every registered compensating
// action in reverse order and surfaces the original cause as *RunError.
func Execute(ctx context.Context, run *Context, phases []Phase, progress Progress) (*Report, error) {
	run.Started = time.Now()
	ledger := rollback.New()

	for i, ph := range phases {
		if err := ctx.Err(); err != nil {
			return fail(run, ledger, ph.Name, fmt.Errorf("%w before phase %q: %v", ErrCancelled, ph.Name, err))
		}
		if progress != nil {
			progress(ph.Name, i+1, len(phases))
		}
		undo, err := ph.Run(ctx)
		if err != nil {
			return fail(run, ledger, ph.Name, err)
		}
		if undo != nil {
			ledger.Register(ph.Name, undo)
		}
		run.Committed++
	}

	ledger.Discard()
	return &Report{
		RunID:           run.RunID,
		State:           Committed,
		Backend:         run.Backend,
		Python:          run.Python,
		Installed:       run.Installed,
		Warnings:        run.Warnings,
		Duration:        time.Since(run.Started),
		CleanupComplete: true,
	}, nil
}

func fail(run *Context, ledger *rollback.Ledger, phase string, cause error) (*Report, error) {
	failures := ledger.Unwind()
	for _, f := range failures {
		run.Warn("cleanup of %q failed: %v", f.Label, f.Err)
	}
	runErr := &RunError{Phase: phase, State: Failed, Err: cause, UnwindFailures: failures}
	return &Report{
		RunID:           run.RunID,
		State:           Failed,
		Backend:         run.Backend,
		Python:          run.Python,
		Warnings:        run.Warnings,
		Duration:        time.Since(run.Started),
		FailedPhase:     phase,
		Reason:          cause.Error(),
		CleanupComplete: len(failures) == 0,
	}, runErr
}
