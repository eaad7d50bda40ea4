package installer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyndonlyu/pysetup/internal/execx"
	"github.com/lyndonlyu/pysetup/internal/retry"
)

// fakeRunner scripts process results and records every invocation.
type fakeRunner struct {
	calls     []execx.Cmd
	results   []execx.Result
	errs      []error
	available map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, cmd execx.Cmd) (execx.Result, error) {
	n := len(f.calls)
	f.calls = append(f.calls, cmd)
	res := execx.Result{}
	if n < len(f.results) {
		res = f.results[n]
	} else if len(f.results) > 0 {
		res = f.results[len(f.results)-1]
	}
	var err error
	if n < len(f.errs) {
		err = f.errs[n]
	}
	return res, err
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.available[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, Delay: time.Millisecond}
}

func TestInstallSuccessParsesPackages(t *testing.T) {
	fr := &fakeRunner{results: []execx.Result{
		{ExitCode: 0, Output: "Successfully installed fastapi-0.104.1 uvicorn-0.24.0"},
	}}
	inst := New(&pipBackend{runner: fr}, fastPolicy(3))

	res, err := inst.Install(context.Background(), Request{
		Packages: []string{"fastapi>=0.104.0", "uvicorn[standard]>=0.24.0"},
		Python:   "/proj/.venv/bin/python",
	})
	require.NoError(t, err)
	assert.Equal(t, "pip", res.Backend)
	assert.Equal(t, []Package{
		{Name: "fastapi", Version: "0.104.1"},
		{Name: "uvicorn", Version: "0.24.0"},
	}, res.Installed)
	require.Len(t, fr.calls, 1)
	assert.Equal(t, "/proj/.venv/bin/python", fr.calls[0].Path)
	assert.Equal(t, []string{"-m", "pip", "install", "--disable-pip-version-check", "fastapi>=0.104.0", "uvicorn[standard]>=0.24.0"}, fr.calls[0].Args)
}

func TestInstallEmptyPackageSetIsNoop(t *testing.T) {
	fr := &fakeRunner{}
	inst := New(&pipBackend{runner: fr}, fastPolicy(3))
	res, err := inst.Install(context.Background(), Request{})
	assert.NoError(t, err)
	assert.Empty(t, fr.calls)
	assert.Equal(t, "pip", res.Backend)
}

func TestInstallTransientFailureHitsRetryBound(t *testing.T) {
	fr := &fakeRunner{results: []execx.Result{
		{ExitCode: 1, Output: "ConnectionResetError: connection reset by peer"},
	}}
	inst := New(&pipBackend{runner: fr}, fastPolicy(3))

	_, err := inst.Install(context.Background(), Request{Packages: []string{"requests"}})
	require.Error(t, err)
	var te *TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.Len(t, fr.calls, 3)
}

func TestInstallTerminalFailureAttemptedOnce(t *testing.T) {
	fr := &fakeRunner{results: []execx.Result{
		{ExitCode: 1, Output: "ERROR: No matching distribution found for nosuchpkg"},
	}}
	inst := New(&pipBackend{runner: fr}, fastPolicy(3))

	_, err := inst.Install(context.Background(), Request{Packages: []string{"nosuchpkg"}})
	require.Error(t, err)
	var te *TerminalError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "pip", te.Backend)
	assert.Len(t, fr.calls, 1)
}

func TestInstallTimeoutRetriedAsTransient(t *testing.T) {
	fr := &fakeRunner{
		results: []execx.Result{
			{TimedOut: true},
			{ExitCode: 0, Output: "Successfully installed requests-2.31.0"},
		},
		errs: []error{context.DeadlineExceeded, nil},
	}
	inst := New(&pipBackend{runner: fr}, fastPolicy(3))

	res, err := inst.Install(context.Background(), Request{Packages: []string{"requests"}})
	require.NoError(t, err)
	assert.Len(t, fr.calls, 2)
	assert.Equal(t, []Package{{Name: "requests", Version: "2.31.0"}}, res.Installed)
}

func TestInstallTransientThenSuccess(t *testing.T) {
	fr := &fakeRunner{results: []execx.Result{
		{ExitCode: 1, Output: "ReadTimeoutError: read timed out"},
		{ExitCode: 0, Output: "Successfully installed flask-3.0.0"},
	}}
	inst := New(&pipBackend{runner: fr}, fastPolicy(3))

	res, err := inst.Install(context.Background(), Request{Packages: []string{"flask"}})
	require.NoError(t, err)
	assert.Len(t, fr.calls, 2)
	assert.Equal(t, "flask", res.Installed[0].Name)
}

func TestUvBackendCommandShape(t *testing.T) {
	fr := &fakeRunner{results: []execx.Result{{ExitCode: 0}}}
	inst := New(&uvBackend{runner: fr}, fastPolicy(1))

	_, err := inst.Install(context.Background(), Request{
		Packages: []string{"flask"},
		Python:   "/proj/.venv/bin/python",
	})
	require.NoError(t, err)
	require.Len(t, fr.calls, 1)
	assert.Equal(t, "uv", fr.calls[0].Path)
	assert.Equal(t, []string{"pip", "install", "--python", "/proj/.venv/bin/python", "flask"}, fr.calls[0].Args)
}

func TestPoetryBackendConfiguresThenInstalls(t *testing.T) {
	fr := &fakeRunner{results: []execx.Result{
		{ExitCode: 0},
		{ExitCode: 0, Output: "  - Installing fastapi (0.104.1)\n  - Installing pydantic (2.5.0)"},
	}}
	inst := New(&poetryBackend{runner: fr}, fastPolicy(1))

	res, err := inst.Install(context.Background(), Request{
		Packages:   []string{"fastapi"},
		ProjectDir: "/proj",
	})
	require.NoError(t, err)
	require.Len(t, fr.calls, 2)
	assert.Equal(t, []string{"config", "virtualenvs.create", "false", "--local"}, fr.calls[0].Args)
	assert.Equal(t, []string{"install", "--no-interaction"}, fr.calls[1].Args)
	assert.Equal(t, "/proj", fr.calls[1].Dir)
	assert.Len(t, res.Installed, 2)
}

func TestSelectPrefersRequestedBackend(t *testing.T) {
	fr := &fakeRunner{available: map[string]bool{"uv": true, "poetry": true, "python3": true}}
	b, warning, err := Select("poetry", Backends(fr))
	require.NoError(t, err)
	assert.Equal(t, "poetry", b.Name())
	assert.Empty(t, warning)
}

func TestSelectFallsBackWithWarning(t *testing.T) {
	fr := &fakeRunner{available: map[string]bool{"python3": true}}
	b, warning, err := Select("uv", Backends(fr))
	require.NoError(t, err)
	assert.Equal(t, "pip", b.Name())
	assert.Contains(t, warning, `"uv"`)
	assert.Contains(t, warning, `"pip"`)
}

func TestSelectNoBackendAvailable(t *testing.T) {
	fr := &fakeRunner{}
	_, _, err := Select("uv", Backends(fr))
	assert.Error(t, err)
}

func TestSelectUnknownBackend(t *testing.T) {
	fr := &fakeRunner{available: map[string]bool{"python3": true}}
	_, _, err := Select("conda", Backends(fr))
	assert.Error(t, err)
}

func TestSelectSkipsBackendsOutsideCandidateSet(t *testing.T) {
	// The caller may pass only the backends a template supports; the
	// fallback order must not reach outside that set.
	fr := &fakeRunner{available: map[string]bool{"uv": true, "poetry": true, "python3": true}}
	var candidates []Backend
	for _, b := range Backends(fr) {
		if b.Name() == "poetry" {
			candidates = append(candidates, b)
		}
	}

	b, warning, err := Select("", candidates)
	require.NoError(t, err)
	assert.Equal(t, "poetry", b.Name())
	assert.Empty(t, warning)
}

func TestSelectNoCandidateAvailable(t *testing.T) {
	fr := &fakeRunner{available: map[string]bool{"uv": true, "python3": true}}
	var candidates []Backend
	for _, b := range Backends(fr) {
		if b.Name() == "poetry" {
			candidates = append(candidates, b)
		}
	}

	_, _, err := Select("", candidates)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no package-manager backend")
}

func TestSpecifierName(t *testing.T) {
	assert.Equal(t, "fastapi", SpecifierName("fastapi>=0.104.0"))
	assert.Equal(t, "uvicorn", SpecifierName("uvicorn[standard]>=0.24.0"))
	assert.Equal(t, "pytest", SpecifierName("pytest"))
	assert.Equal(t, "black", SpecifierName("black==23.0"))
}
