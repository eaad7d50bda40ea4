package installer

import (
	"context"

	"github.com/lyndonlyu/pysetup/internal/execx"
)

// pipBackend installs with the sandbox interpreter's bundled pip.
type pipBackend struct {
	runner execx.Runner
}

func (b *pipBackend) Name() string { return "pip" }

// Available is true whenever a python interpreter resolves; pip ships
// inside the sandbox itself.
func (b *pipBackend) Available() bool {
	if _, err := b.runner.LookPath("python3"); err == nil {
		return true
	}
	_, err := b.runner.LookPath("python")
	return err == nil
}

func (b *pipBackend) install(ctx context.Context, req Request) (execx.Result, error) {
	args := append([]string{"-m", "pip", "install", "--disable-pip-version-check"}, req.Packages...)
	return b.runner.Run(ctx, execx.Cmd{
		Path:    req.Python,
		Args:    args,
		Dir:     req.ProjectDir,
		Timeout: req.Timeout,
	})
}

// uvBackend installs with uv against the sandbox interpreter.
type uvBackend struct {
	runner execx.Runner
}

func (b *uvBackend) Name() string { return "uv" }

func (b *uvBackend) Available() bool {
	_, err := b.runner.LookPath("uv")
	return err == nil
}

func (b *uvBackend) install(ctx context.Context, req Request) (execx.Result, error) {
	args := append([]string{"pip", "install", "--python", req.Python}, req.Packages...)
	return b.runner.Run(ctx, execx.Cmd{
		Path:    "uv",
		Args:    args,
		Dir:     req.ProjectDir,
		Timeout: req.Timeout,
	})
}

// poetryBackend installs through poetry, which reads the generated
// pyproject.toml rather than the specifier list.
type poetryBackend struct {
	runner execx.Runner
}

func (b *poetryBackend) Name() string { return "poetry" }

func (b *poetryBackend) Available() bool {
	_, err := b.runner.LookPath("poetry")
	return err == nil
}

func (b *poetryBackend) install(ctx context.Context, req Request) (execx.Result, error) {
	// Point poetry at the existing sandbox instead of creating its own.
	cfg, err := b.runner.Run(ctx, execx.Cmd{
		Path:    "poetry",
		Args:    []string{"config", "virtualenvs.create", "false", "--local"},
		Dir:     req.ProjectDir,
		Timeout: req.Timeout,
	})
	if err != nil || cfg.ExitCode != 0 {
		return cfg, err
	}
	return b.runner.Run(ctx, execx.Cmd{
		Path:    "poetry",
		Args:    []string{"install", "--no-interaction"},
		Dir:     req.ProjectDir,
		Timeout: req.Timeout,
	})
}
