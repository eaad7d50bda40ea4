package setup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lyndonlyu/pysetup/internal/execx"
	"github.com/lyndonlyu/pysetup/internal/installer"
	"github.com/lyndonlyu/pysetup/internal/state"
	"github.com/lyndonlyu/pysetup/internal/template"
)

func okPhase(name string, log *[]string) Phase {
	return Phase{Name: name, Run: func(ctx context.Context) (func() error, error) {
		*log = append(*log, "run "+name)
		return func() error {
			*log = append(*log, "undo "+name)
			return nil
		}, nil
	}}
}

func TestAllPhasesCommit(t *testing.T) {
	var log []string
	run := &Context{RunID: "r1"}

	report, err := Execute(context.Background(), run, []Phase{
		okPhase("a", &log), okPhase("b", &log), okPhase("c", &log),
	}, nil)

	assert.NoError(t, err)
	assert.Equal(t, Committed, report.State)
	assert.True(t, report.CleanupComplete)
	assert.Equal(t, 3, run.Committed)
	assert.Equal(t, []string{"run a", "run b", "run c"}, log)
}

func TestFailureUnwindsInReverseOrder(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	phases := []Phase{
		okPhase("a", &log), okPhase("b", &log), okPhase("c", &log),
		{Name: "d", Run: func(ctx context.Context) (func() error, error) {
			return nil, boom
		}},
	}

	report, err := Execute(context.Background(), &Context{}, phases, nil)

	var runErr *RunError
	assert.ErrorAs(t, err, &runErr)
	assert.Equal(t, "d", runErr.Phase)
	assert.ErrorIs(t, err, boom)
	assert.True(t, runErr.CleanupComplete())
	assert.Equal(t, Failed, report.State)
	assert.Equal(t, "d", report.FailedPhase)
	assert.Equal(t, []string{"run a", "run b", "run c", "undo c", "undo b", "undo a"}, log)
}

func TestUnwindContinuesPastFailingAction(t *testing.T) {
	var log []string
	phases := []Phase{
		okPhase("a", &log),
		{Name: "b", Run: func(ctx context.Context) (func() error, error) {
			log = append(log, "run b")
			return func() error {
				log = append(log, "undo b")
				return errors.New("undo failed")
			}, nil
		}},
		okPhase("c", &log),
		{Name: "d", Run: func(ctx context.Context) (func() error, error) {
			return nil, errors.New("boom")
		}},
	}

	report, err := Execute(context.Background(), &Context{}, phases, nil)

	var runErr *RunError
	assert.ErrorAs(t, err, &runErr)
	assert.False(t, runErr.CleanupComplete())
	assert.Len(t, runErr.UnwindFailures, 1)
	assert.Equal(t, "b", runErr.UnwindFailures[0].Label)
	assert.False(t, report.CleanupComplete)
	assert.Equal(t, []string{"run a", "run b", "run c", "undo c", "undo b", "undo a"}, log)
}

func TestCancellationObservedAtPhaseBoundary(t *testing.T) {
	var log []string
	ctx, cancel := context.WithCancel(context.Background())
	phases := []Phase{
		okPhase("a", &log),
		{Name: "b", Run: func(ctx context.Context) (func() error, error) {
			log = append(log, "run b")
			cancel()
			return func() error {
				log = append(log, "undo b")
				return nil
			}, nil
		}},
		okPhase("c", &log),
	}

	report, err := Execute(ctx, &Context{}, phases, nil)

	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, Failed, report.State)
	assert.Equal(t, "c", report.FailedPhase)
	assert.Equal(t, []string{"run a", "run b", "undo b", "undo a"}, log)
}

func TestNilUndoIsNotRegistered(t *testing.T) {
	var undone bool
	phases := []Phase{
		{Name: "a", Run: func(ctx context.Context) (func() error, error) {
			return nil, nil
		}},
		{Name: "b", Run: func(ctx context.Context) (func() error, error) {
			return func() error { undone = true; return nil }, nil
		}},
		{Name: "c", Run: func(ctx context.Context) (func() error, error) {
			return nil, errors.New("boom")
		}},
	}

	_, err := Execute(context.Background(), &Context{}, phases, nil)

	assert.Error(t, err)
	assert.True(t, undone)
}

// fakeRunner simulates interpreter discovery, venv creation and a
// package-manager invocation without spawning processes.
type fakeRunner struct {
	installOutput string
	installExit   int
	installCalls  int
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	switch name {
	case "python3":
		return "/usr/bin/python3", nil
	case "uv":
		return "/usr/local/bin/uv", nil
	}
	return "", errors.New("not found")
}

func (f *fakeRunner) Run(ctx context.Context, c execx.Cmd) (execx.Result, error) {
	if len(c.Args) > 0 && c.Args[0] == "-c" {
		return execx.Result{Output: "3.11.5\n"}, nil
	}
	if len(c.Args) > 0 && c.Args[0] == "-m" && c.Args[1] == "venv" {
		dir := c.Args[2]
		if err := os.MkdirAll(filepath.Join(dir, "bin"), 0o755); err != nil {
			return execx.Result{}, err
		}
		os.WriteFile(filepath.Join(dir, "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0o644)
		os.WriteFile(filepath.Join(dir, "bin", "python"), []byte("#!/bin/sh\n"), 0o755)
		return execx.Result{}, nil
	}
	f.installCalls++
	return execx.Result{ExitCode: f.installExit, Output: f.installOutput}, nil
}

func testTemplate() template.Template {
	return template.Template{
		Name:          "Test",
		Slug:          "test-web",
		Description:   "test template",
		PythonVersion: "3.10+",
		Backends:      []string{"uv", "pip"},
		Dependencies:  map[string][]string{"core": {"fastapi>=0.100"}},
		Editor: template.Editor{
			Settings:   map[string]any{"editor.formatOnSave": true},
			Extensions: []string{"ms-python.python"},
		},
	}
}

func TestRunCommitsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	history := state.NewHistory(filepath.Join(t.TempDir(), "history.json"))
	runner := &fakeRunner{installOutput: "Successfully installed fastapi-0.104.0\n"}

	orch, err := NewOrchestrator(Options{
		ProjectDir: dir,
		Template:   testTemplate(),
		Runner:     runner,
		History:    history,
	})
	assert.NoError(t, err)

	report, err := orch.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Committed, report.State)
	assert.Equal(t, "uv", report.Backend)
	assert.Equal(t, "3.11.5", report.Python)
	assert.Equal(t, []installer.Package{{Name: "fastapi", Version: "0.104.0"}}, report.Installed)

	assert.DirExists(t, filepath.Join(dir, ".venv"))
	assert.FileExists(t, filepath.Join(dir, ".vscode", "settings.json"))
	assert.FileExists(t, filepath.Join(dir, "pyproject.toml"))
	assert.FileExists(t, filepath.Join(dir, ".pysetup", "state.json"))

	entries, err := history.Recent(10)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.True(t, entries[0].Success)
	assert.Equal(t, report.RunID, entries[0].RunID)
}

func TestRunRollsBackOnTerminalInstallFailure(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(t.TempDir(), "history.json")
	runner := &fakeRunner{
		installExit:   1,
		installOutput: "ERROR: No matching distribution found for fastapi\n",
	}

	orch, err := NewOrchestrator(Options{
		ProjectDir: dir,
		Template:   testTemplate(),
		Runner:     runner,
		History:    state.NewHistory(historyPath),
	})
	assert.NoError(t, err)

	report, err := orch.Run(context.Background())

	var runErr *RunError
	assert.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseInstall, runErr.Phase)
	var terminal *installer.TerminalError
	assert.ErrorAs(t, err, &terminal)
	assert.True(t, runErr.CleanupComplete())

	assert.Equal(t, Failed, report.State)
	assert.Equal(t, PhaseInstall, report.FailedPhase)
	assert.Equal(t, 1, runner.installCalls)

	assert.NoDirExists(t, filepath.Join(dir, ".venv"))
	assert.NoDirExists(t, filepath.Join(dir, ".vscode"))
	assert.NoFileExists(t, filepath.Join(dir, "pyproject.toml"))
	assert.NoFileExists(t, filepath.Join(dir, ".pysetup", "state.json"))
	assert.NoFileExists(t, historyPath)
}

func TestNewOrchestratorRejectsUnsupportedBackend(t *testing.T) {
	_, err := NewOrchestrator(Options{
		ProjectDir: t.TempDir(),
		Template:   testTemplate(),
		Backend:    "poetry",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does not support")
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "rolled back", RolledBack.String())
}

func TestFailedRerunKeepsPriorStateRecord(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{installOutput: "Successfully installed fastapi-0.104.0\n"}

	orch, err := NewOrchestrator(Options{
		ProjectDir: dir,
		Template:   testTemplate(),
		Runner:     runner,
	})
	assert.NoError(t, err)
	report, err := orch.Run(context.Background())
	assert.NoError(t, err)
	firstRunID := report.RunID

	// A history path whose parent is a regular file makes the append,
	// and with it the persistence phase, fail after the record write.
	blocker := filepath.Join(t.TempDir(), "blocker")
	assert.NoError(t, os.WriteFile(blocker, nil, 0o644))
	badHistory := state.NewHistory(filepath.Join(blocker, "history.json"))

	orch, err = NewOrchestrator(Options{
		ProjectDir: dir,
		Template:   testTemplate(),
		Runner:     runner,
		History:    badHistory,
	})
	assert.NoError(t, err)
	_, err = orch.Run(context.Background())

	var runErr *RunError
	assert.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhasePersist, runErr.Phase)

	rec, err := state.NewProjectStore(dir).Load()
	assert.NoError(t, err)
	assert.Equal(t, firstRunID, rec.RunID)
}

func TestRunHonorsTemplateBackendSet(t *testing.T) {
	dir := t.TempDir()
	tpl := testTemplate()
	tpl.Backends = []string{"pip"}
	// uv resolves on PATH but the template only declares pip.
	runner := &fakeRunner{installOutput: "Successfully installed fastapi-0.104.0\n"}

	orch, err := NewOrchestrator(Options{
		ProjectDir: dir,
		Template:   tpl,
		Runner:     runner,
	})
	assert.NoError(t, err)

	report, err := orch.Run(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "pip", report.Backend)
}
