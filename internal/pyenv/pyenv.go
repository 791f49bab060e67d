// Package pyenv provisions the isolated Python virtual environments that
// commands run inside: one directory per environment under the work root,
// created with `basepython -m venv` and populated with `pip install`.
//
// Installation is skipped when the recorded dependency fingerprint matches,
// so repeated runs only pay for provisioning when the dep list changes.
package pyenv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/vk/gotox/internal/ctxlog"
)

// fingerprintFile records the dependency fingerprint inside an env dir.
const fingerprintFile = "gotox-deps.sha256"

// basePythonFile records which interpreter created an env dir, so switching
// basepython rebuilds it.
const basePythonFile = "gotox-basepython"

// DefaultBasePython is used when an environment declares no interpreter.
const DefaultBasePython = "python3"

// Provisioner creates and refreshes virtual environments through a Runner.
type Provisioner struct {
	runner Runner
}

// NewProvisioner creates a Provisioner that launches processes via runner.
func NewProvisioner(runner Runner) *Provisioner {
	return &Provisioner{runner: runner}
}

// BinDir returns the scripts directory of an environment directory.
func BinDir(envDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(envDir, "Scripts")
	}
	return filepath.Join(envDir, "bin")
}

// PythonPath returns the interpreter path inside an environment directory.
func PythonPath(envDir string) string {
	name := "python"
	if runtime.GOOS == "windows" {
		name = "python.exe"
	}
	return filepath.Join(BinDir(envDir), name)
}

// Request describes one environment to provision.
type Request struct {
	Name       string
	EnvDir     string
	BasePython string

	// Deps are the fully substituted package specifiers to install.
	Deps []string

	// Recreate forces the env dir to be rebuilt from scratch.
	Recreate bool

	// SkipInstall leaves the dependency set alone even when it changed.
	SkipInstall bool

	Stdout io.Writer
	Stderr io.Writer
}

// Ensure makes the requested environment exist and match its dependency
// set. It is idempotent: an up-to-date environment is left untouched.
func (p *Provisioner) Ensure(ctx context.Context, req Request) error {
	logger := ctxlog.FromContext(ctx).With("env", req.Name)

	basePython := req.BasePython
	if basePython == "" {
		basePython = DefaultBasePython
	}

	recreate := req.Recreate
	bpPath := filepath.Join(req.EnvDir, basePythonFile)
	if have, err := os.ReadFile(bpPath); err == nil && strings.TrimSpace(string(have)) != basePython {
		logger.Info("Interpreter changed, rebuilding environment.",
			"was", strings.TrimSpace(string(have)), "now", basePython)
		recreate = true
	}
	if recreate {
		logger.Info("Recreating environment directory.", "dir", req.EnvDir)
		if err := os.RemoveAll(req.EnvDir); err != nil {
			return fmt.Errorf("recreating %s: %w", req.EnvDir, err)
		}
	}

	python := PythonPath(req.EnvDir)
	if _, err := os.Stat(python); err != nil {
		logger.Info("Creating virtual environment.", "dir", req.EnvDir, "basepython", basePython)
		code, err := p.runner.Run(ctx, Command{
			Argv:   []string{basePython, "-m", "venv", req.EnvDir},
			Stdout: req.Stdout,
			Stderr: req.Stderr,
		})
		if err != nil {
			return fmt.Errorf("creating virtualenv for %s: %w", req.Name, err)
		}
		if code != 0 {
			return fmt.Errorf("creating virtualenv for %s: %s exited with code %d", req.Name, basePython, code)
		}
		if err := os.WriteFile(bpPath, []byte(basePython+"\n"), 0o644); err != nil {
			return fmt.Errorf("recording interpreter for %s: %w", req.Name, err)
		}
	}

	if req.SkipInstall {
		logger.Debug("Dependency installation skipped by configuration.")
		return nil
	}

	want := Fingerprint(req.Deps)
	fpPath := filepath.Join(req.EnvDir, fingerprintFile)
	if have, err := os.ReadFile(fpPath); err == nil && strings.TrimSpace(string(have)) == want {
		logger.Debug("Dependencies already up to date.", "fingerprint", want)
		return nil
	}

	if len(req.Deps) > 0 {
		logger.Info("Installing dependencies.", "count", len(req.Deps))
		argv := append([]string{python, "-m", "pip", "install"}, req.Deps...)
		code, err := p.runner.Run(ctx, Command{
			Argv:   argv,
			Stdout: req.Stdout,
			Stderr: req.Stderr,
		})
		if err != nil {
			return fmt.Errorf("installing dependencies for %s: %w", req.Name, err)
		}
		if code != 0 {
			return fmt.Errorf("installing dependencies for %s: pip exited with code %d", req.Name, code)
		}
	}

	if err := os.MkdirAll(req.EnvDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(fpPath, []byte(want+"\n"), 0o644); err != nil {
		return fmt.Errorf("recording dependency fingerprint for %s: %w", req.Name, err)
	}
	return nil
}

// Fingerprint hashes a dependency list, order-insensitively.
func Fingerprint(deps []string) string {
	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}
