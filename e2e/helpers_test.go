package e2e_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// TestEnv is a temporary isolated environment for one test: its own
// HOME (so history and preferences do not leak between tests), a fresh
// project directory, and a PATH containing only the mock interpreter
// and package-manager scripts.
type TestEnv struct {
	Home    string
	Project string
	MockBin string
	T       *testing.T
}

func newTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed, cannot locate test source file")
	}
	mockBin := filepath.Join(filepath.Dir(thisFile), "testdata", "mockbin")
	for _, name := range []string{"python3", "uv"} {
		script := filepath.Join(mockBin, name)
		if _, err := os.Stat(script); err != nil {
			t.Fatalf("mock script %s not found: %v", script, err)
		}
		if err := os.Chmod(script, 0o755); err != nil {
			t.Fatalf("chmod %s: %v", script, err)
		}
	}

	return &TestEnv{
		Home:    t.TempDir(),
		Project: t.TempDir(),
		MockBin: mockBin,
		T:       t,
	}
}

// runPysetup executes the compiled binary with the given arguments.
func (e *TestEnv) runPysetup(args ...string) (stdout, stderr string, exitCode int) {
	return e.runPysetupWithEnv(nil, args...)
}

// runPysetupWithEnv executes pysetup with extra environment variables
// for mock control. PATH is restricted to the mock bin directory so
// interpreter discovery only ever finds the test scripts.
func (e *TestEnv) runPysetupWithEnv(env map[string]string, args ...string) (stdout, stderr string, exitCode int) {
	e.T.Helper()

	cmd := exec.Command(pysetupBin, args...)
	cmd.Dir = e.Project

	cmdEnv := []string{
		"HOME=" + e.Home,
		"PATH=" + e.MockBin,
		"USER=" + os.Getenv("USER"),
	}
	for k, v := range env {
		cmdEnv = append(cmdEnv, k+"="+v)
	}
	cmd.Env = cmdEnv

	var out, errBuf strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	err := cmd.Run()
	exitCode = 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			e.T.Fatalf("failed to run pysetup: %v", err)
		}
	}
	return out.String(), errBuf.String(), exitCode
}
