package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/gotox/internal/config"
	"github.com/vk/gotox/internal/ctxlog"
	"github.com/vk/gotox/internal/interp"
	"github.com/vk/gotox/internal/pyenv"
)

// runEnv provisions and executes a single environment end to end.
func (e *Executor) runEnv(ctx context.Context, env *config.Environment) (out Result) {
	logger := ctxlog.FromContext(ctx).With("env", env.Name)
	start := time.Now()

	result := Result{Name: env.Name, Status: StatusPassed}
	defer func() {
		result.Duration = time.Since(start)
		out = result
	}()

	envDir := filepath.Join(e.opts.WorkDir, env.Name)
	ic := e.interpContext(env, envDir)

	logger.Info("▶️ Starting environment", "description", env.Description)

	deps, err := expandAll(ic, env.Deps)
	if err != nil {
		return failWith(&result, fmt.Errorf("expanding deps: %w", err))
	}
	err = e.provisioner.Ensure(ctx, pyenv.Request{
		Name:        env.Name,
		EnvDir:      envDir,
		BasePython:  env.BasePython,
		Deps:        deps,
		Recreate:    env.Recreate,
		SkipInstall: e.opts.SkipInstall || env.SkipInstall,
		Stdout:      e.opts.OutW,
		Stderr:      e.opts.OutW,
	})
	if err != nil {
		return failWith(&result, err)
	}

	procEnv, err := e.processEnv(env, ic, envDir)
	if err != nil {
		return failWith(&result, err)
	}

	workDir := e.model.ConfigDir
	if env.ChangeDir != "" {
		if workDir, err = ic.Expand(env.ChangeDir); err != nil {
			return failWith(&result, fmt.Errorf("expanding changedir: %w", err))
		}
	}

	// commands_pre and commands stop at the first failure; commands_post
	// always run, like teardown.
	mainLines := append(append([]string(nil), env.CommandsPre...), env.Commands...)
	e.runPhase(ctx, env, ic, mainLines, procEnv, workDir, &result)
	e.runPhase(ctx, env, ic, env.CommandsPost, procEnv, workDir, &result)

	if result.Status == StatusPassed {
		logger.Info("✅ Environment passed", "duration", time.Since(start).Round(time.Millisecond))
	} else {
		logger.Error("Environment failed.",
			"command", result.FailedCommand, "exit_code", result.ExitCode, "error", result.Err)
	}
	return result
}

// runPhase executes raw command lines in order and stops the phase at the
// first failure. Only the first failure of the whole run is recorded on the
// result, so a teardown phase running after a failed main phase cannot mask
// the original failure.
func (e *Executor) runPhase(
	ctx context.Context,
	env *config.Environment,
	ic *interp.Context,
	lines []string,
	procEnv []string,
	workDir string,
	result *Result,
) {
	logger := ctxlog.FromContext(ctx).With("env", env.Name)

	for _, line := range lines {
		argv, err := ic.ExpandCommand(line)
		if err != nil {
			failWith(result, fmt.Errorf("in %q: %w", line, err))
			return
		}
		if len(argv) == 0 {
			continue
		}

		resolved, err := e.resolveExecutable(argv[0], env, ic)
		if err != nil {
			failWith(result, err)
			return
		}
		argv[0] = resolved

		logger.Info("Running command.", "argv", argv)
		code, err := e.opts.Runner.Run(ctx, pyenv.Command{
			Argv:   argv,
			Dir:    workDir,
			Env:    procEnv,
			Stdout: e.opts.OutW,
			Stderr: e.opts.OutW,
		})
		if err != nil {
			failWith(result, fmt.Errorf("running %q: %w", line, err))
			return
		}
		if code != 0 {
			if result.Status == StatusPassed {
				result.Status = StatusFailed
				result.FailedCommand = line
				result.ExitCode = code
			}
			return
		}
	}
}

// resolveExecutable locates a command's program: the environment's bin
// directory wins; otherwise the name must match an allowlist_externals
// pattern to be left for PATH resolution.
func (e *Executor) resolveExecutable(name string, env *config.Environment, ic *interp.Context) (string, error) {
	// Explicit paths (absolute or containing a separator) bypass lookup.
	if filepath.Base(name) != name {
		return name, nil
	}

	candidate := filepath.Join(ic.EnvBinDir, name)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, nil
	}

	for _, pattern := range env.AllowExternals {
		expanded, err := ic.Expand(pattern)
		if err != nil {
			return "", err
		}
		if ok, _ := filepath.Match(expanded, name); ok || expanded == name {
			return name, nil
		}
	}
	return "", fmt.Errorf(
		"command %q is not present in %s and does not match allowlist_externals", name, ic.EnvBinDir)
}

// interpContext builds the substitution context for one environment.
func (e *Executor) interpContext(env *config.Environment, envDir string) *interp.Context {
	return &interp.Context{
		ToxIniDir: e.model.ConfigDir,
		WorkDir:   e.opts.WorkDir,
		EnvName:   env.Name,
		EnvDir:    envDir,
		EnvBinDir: pyenv.BinDir(envDir),
		EnvPython: pyenv.PythonPath(envDir),
		Posargs:   e.opts.Posargs,
		LookupVar: func(section, key string) (string, bool) {
			sec, ok := e.model.Sections[section]
			if !ok {
				return "", false
			}
			v, ok := sec[key]
			return v, ok
		},
	}
}

// expandAll applies substitution to every element of a list.
func expandAll(ic *interp.Context, values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		expanded, err := ic.Expand(v)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded)
	}
	return out, nil
}

// failWith marks a result failed with an internal error, keeping the first
// recorded failure.
func failWith(result *Result, err error) Result {
	if result.Status == StatusPassed {
		result.Status = StatusFailed
		result.Err = err
	}
	return *result
}
