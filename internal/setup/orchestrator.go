package setup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/lyndonlyu/pysetup/internal/editorcfg"
	"github.com/lyndonlyu/pysetup/internal/execx"
	"github.com/lyndonlyu/pysetup/internal/installer"
	"github.com/lyndonlyu/pysetup/internal/lock"
	"github.com/lyndonlyu/pysetup/internal/retry"
	"github.com/lyndonlyu/pysetup/internal/scaffold"
	"github.com/lyndonlyu/pysetup/internal/state"
	"github.com/lyndonlyu/pysetup/internal/template"
	"github.com/lyndonlyu/pysetup/internal/venv"
)

// Phase names, in execution order.
const (
	PhaseSandbox = "sandbox creation"
	PhaseInstall = "dependency install"
	PhaseConfig  = "editor config generation"
	PhasePersist = "state persistence"
)

// Options configures one setup run.
type Options struct {
	ProjectDir string
	Template   template.Template
	Backend    string   // preferred backend name, "" = first available
	SkipGroups []string // optional dependency groups to leave out
	Timeout    time.Duration

	// Collaborators. Zero values get production defaults; tests inject
	// fakes.
	Runner   execx.Runner
	History  *state.History // nil = no history updates
	Prefs    *state.PrefStore
	Policy   retry.Policy
	Progress Progress
}

// Orchestrator owns one run against one project directory.
type Orchestrator struct {
	opts   Options
	runner execx.Runner
	venv   *venv.Manager
}

// NewOrchestrator validates the options and prepares a run.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.ProjectDir == "" {
		return nil, errors.New("project directory is required")
	}
	if err := opts.Template.Validate(); err != nil {
		return nil, err
	}
	if opts.Backend != "" && !opts.Template.SupportsBackend(opts.Backend) {
		return nil, fmt.Errorf("template %q does not support backend %q", opts.Template.Slug, opts.Backend)
	}
	if opts.Runner == nil {
		opts.Runner = execx.NewProcRunner()
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Minute
	}
	return &Orchestrator{
		opts:   opts,
		runner: opts.Runner,
		venv:   venv.NewManager(opts.Runner),
	}, nil
}

// Run executes the full phase sequence. The project lock is held for
// the whole run so two runs against the same target serialize.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	constraint, err := venv.ParseConstraint(o.opts.Template.PythonVersion)
	if err != nil {
		return nil, fmt.Errorf("template python version: %w", err)
	}

	l, err := lock.Acquire(o.opts.ProjectDir)
	if err != nil {
		return nil, err
	}
	defer l.Release()

	run := &Context{
		RunID:      uuid.New().String(),
		ProjectDir: o.opts.ProjectDir,
		Template:   o.opts.Template,
		Backend:    o.opts.Backend,
	}
	return Execute(ctx, run, o.phases(run, constraint), o.opts.Progress)
}

// phases builds the fixed sequence. Each closure hands artifacts to the
// next through run and captured locals.
func (o *Orchestrator) phases(run *Context, constraint venv.Constraint) []Phase {
	var handle venv.Handle

	sandbox := Phase{Name: PhaseSandbox, Run: func(ctx context.Context) (func() error, error) {
		h, err := o.venv.Create(ctx, run.ProjectDir, constraint)
		if err != nil {
			return nil, err
		}
		handle = h
		run.Python = h.Version
		return func() error { return o.venv.Remove(handle) }, nil
	}}

	install := Phase{Name: PhaseInstall, Run: func(ctx context.Context) (func() error, error) {
		// Only backends the template declares are candidates, so the
		// fallback never installs through a tool the template rules out.
		var candidates []installer.Backend
		for _, b := range installer.Backends(o.runner) {
			if run.Template.SupportsBackend(b.Name()) {
				candidates = append(candidates, b)
			}
		}
		backend, warning, err := installer.Select(o.opts.Backend, candidates)
		if err != nil {
			return nil, err
		}
		if warning != "" {
			run.Warn("%s", warning)
		}
		res, err := installer.New(backend, o.opts.Policy).Install(ctx, installer.Request{
			Packages:   run.Template.Packages(o.selectedGroups()),
			Python:     handle.Python,
			ProjectDir: run.ProjectDir,
			Timeout:    o.opts.Timeout,
		})
		if err != nil {
			return nil, err
		}
		run.Backend = res.Backend
		run.Installed = res.Installed
		// Installed packages live inside the sandbox, so removing it
		// is the complete compensation.
		return func() error { return o.venv.Remove(handle) }, nil
	}}

	config := Phase{Name: PhaseConfig, Run: func(ctx context.Context) (func() error, error) {
		ec := editorcfg.NewWriter(run.ProjectDir)
		sc := scaffold.NewWriter(run.ProjectDir)
		undo := func() error {
			return errors.Join(sc.Restore(), ec.Restore())
		}

		_, overrides, err := ec.Apply(editorcfg.Input{
			Settings:   run.Template.Editor.Settings,
			Extensions: run.Template.Editor.Extensions,
			Launch:     run.Template.Editor.Launch,
			PythonPath: handle.Python,
		})
		if err != nil {
			undo()
			return nil, err
		}
		for _, ov := range overrides {
			run.Warn("template overrides editor setting %s (%v -> %v)", ov.Path, ov.Old, ov.New)
		}

		if _, err := sc.Apply(scaffold.Input{
			Metadata: scaffold.Metadata{
				Name:        filepath.Base(run.ProjectDir),
				Description: run.Template.Description,
			},
			Dependencies:  run.Template.Dependencies["core"],
			PythonVersion: run.Template.PythonVersion,
		}); err != nil {
			undo()
			return nil, err
		}
		return undo, nil
	}}

	persist := Phase{Name: PhasePersist, Run: func(ctx context.Context) (func() error, error) {
		store := state.NewProjectStore(run.ProjectDir)
		prior, priorExisted, err := store.Snapshot()
		if err != nil {
			return nil, err
		}
		rec := state.RunRecord{
			RunID:         run.RunID,
			Template:      run.Template.Slug,
			PythonVersion: run.Python,
			Backend:       run.Backend,
			Status:        "committed",
			Packages:      installedRecords(run),
			CreatedAt:     state.Timestamp(state.Now()),
		}
		if err := store.Save(rec); err != nil {
			return nil, err
		}
		undo := func() error { return store.Restore(prior, priorExisted) }

		if o.opts.History != nil {
			entry := state.HistoryEntry{
				RunID:     run.RunID,
				Template:  run.Template.Slug,
				Path:      run.ProjectDir,
				Backend:   run.Backend,
				Success:   true,
				Duration:  time.Since(run.Started).Seconds(),
				Timestamp: state.Timestamp(state.Now()),
			}
			if err := o.opts.History.Append(entry); err != nil {
				store.Restore(prior, priorExisted)
				return nil, err
			}
			history := o.opts.History
			runID := run.RunID
			undo = func() error {
				return errors.Join(history.RemoveLast(runID), store.Restore(prior, priorExisted))
			}
		}

		if o.opts.Prefs != nil {
			if err := o.opts.Prefs.RecordSetup(run.Template.Slug, run.Backend, run.Python); err != nil {
				run.Warn("could not update preferences: %v", err)
			}
		}
		return undo, nil
	}}

	return []Phase{sandbox, install, config, persist}
}

func (o *Orchestrator) selectedGroups() []string {
	skip := make(map[string]bool, len(o.opts.SkipGroups))
	for _, g := range o.opts.SkipGroups {
		skip[g] = true
	}
	var groups []string
	for _, g := range o.opts.Template.Groups() {
		if !skip[g] {
			groups = append(groups, g)
		}
	}
	return groups
}

func installedRecords(run *Context) []state.InstalledPackage {
	pkgs := make([]state.InstalledPackage, 0, len(run.Installed))
	for _, p := range run.Installed {
		pkgs = append(pkgs, state.InstalledPackage{Name: p.Name, Version: p.Version, Backend: run.Backend})
	}
	return pkgs
}
