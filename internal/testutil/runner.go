package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vk/gotox/internal/pyenv"
)

// rule maps a command-line substring to a scripted outcome.
type rule struct {
	substr string
	code   int
	err    error
}

// FakeRunner is a pyenv.Runner that records every spawn instead of running
// it. It mimics the side effects the executor depends on: `-m venv` creates
// the interpreter file inside the env dir, and `-m pip install` drops a stub
// console script per installed package, so command resolution behaves as it
// would against a real environment.
type FakeRunner struct {
	mu    sync.Mutex
	calls []pyenv.Command
	rules []rule
}

// NewFakeRunner creates an empty FakeRunner; every command succeeds until
// scripted otherwise.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// Fail makes any command whose line contains substr exit with code.
func (r *FakeRunner) Fail(substr string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{substr: substr, code: code})
}

// FailWith makes any command whose line contains substr fail to spawn.
func (r *FakeRunner) FailWith(substr string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{substr: substr, err: err})
}

// Run implements pyenv.Runner.
func (r *FakeRunner) Run(ctx context.Context, cmd pyenv.Command) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	line := strings.Join(cmd.Argv, " ")
	var matched *rule
	for i := range r.rules {
		if strings.Contains(line, r.rules[i].substr) {
			matched = &r.rules[i]
			break
		}
	}
	r.mu.Unlock()

	if matched != nil {
		return matched.code, matched.err
	}

	if err := r.mimicSideEffects(cmd.Argv); err != nil {
		return -1, err
	}
	return 0, nil
}

// mimicSideEffects reproduces the filesystem traces of venv creation and
// pip installs.
func (r *FakeRunner) mimicSideEffects(argv []string) error {
	for i := 0; i+1 < len(argv); i++ {
		if argv[i] != "-m" {
			continue
		}
		switch argv[i+1] {
		case "venv":
			if i+2 < len(argv) {
				return fakeVenv(argv[i+2])
			}
		case "pip":
			if i+2 < len(argv) && argv[i+2] == "install" {
				return fakeInstall(filepath.Dir(argv[0]), argv[i+3:])
			}
		}
		return nil
	}
	return nil
}

func fakeVenv(envDir string) error {
	if err := os.MkdirAll(pyenv.BinDir(envDir), 0o755); err != nil {
		return err
	}
	return os.WriteFile(pyenv.PythonPath(envDir), []byte("#!fake python\n"), 0o755)
}

// fakeInstall creates one stub console script per package specifier,
// named after the part before any extras or version constraint.
func fakeInstall(binDir string, deps []string) error {
	for _, dep := range deps {
		if strings.HasPrefix(dep, "-") {
			continue
		}
		name := dep
		for _, sep := range []string{"[", "=", "<", ">", "~", "!", ";", "@"} {
			if cut := strings.Index(name, sep); cut >= 0 {
				name = name[:cut]
			}
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!fake script\n"), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns a copy of every recorded spawn.
func (r *FakeRunner) Calls() []pyenv.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pyenv.Command(nil), r.calls...)
}

// CommandLines returns every recorded spawn as a joined command line.
func (r *FakeRunner) CommandLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		lines = append(lines, strings.Join(c.Argv, " "))
	}
	return lines
}
