// Package executor orchestrates environment runs: it schedules the selected
// environments in dependency order, provisions each one, and executes its
// command sequences, failing fast within an environment on the first
// non-zero exit.
package executor

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/vk/gotox/internal/config"
	"github.com/vk/gotox/internal/ctxlog"
	"github.com/vk/gotox/internal/pyenv"
)

// Status is the final outcome of one environment.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result records the outcome of a single environment run.
type Result struct {
	Name     string
	Status   Status
	Duration time.Duration

	// FailedCommand and ExitCode identify the first failing command when
	// Status is StatusFailed and a command actually ran.
	FailedCommand string
	ExitCode      int

	// SkipReason explains a StatusSkipped result.
	SkipReason string

	// Err carries provisioning or spawn errors.
	Err error
}

// Options configures an Executor.
type Options struct {
	// WorkDir is the root under which environment directories live.
	WorkDir string

	// Posargs are the CLI positional arguments spliced in for {posargs}.
	Posargs []string

	// SkipInstall disables dependency provisioning for every environment.
	SkipInstall bool

	// Workers is the number of environments run concurrently. Values below
	// one behave as one (sequential execution).
	Workers int

	// OutW receives the stdout and stderr streams of spawned commands.
	OutW io.Writer

	// Runner launches subprocesses.
	Runner pyenv.Runner
}

// Executor runs a set of environments against a loaded configuration model.
type Executor struct {
	model       *config.Model
	provisioner *pyenv.Provisioner
	opts        Options
}

// New creates an Executor for the given model.
func New(model *config.Model, opts Options) *Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.WorkDir == "" {
		opts.WorkDir = filepath.Join(model.ConfigDir, ".tox")
	}
	if opts.Runner == nil {
		opts.Runner = pyenv.NewExecRunner()
	}
	return &Executor{
		model:       model,
		provisioner: pyenv.NewProvisioner(opts.Runner),
		opts:        opts,
	}
}

// node tracks one environment's place in the dependency schedule.
type node struct {
	env        *config.Environment
	dependents []*node

	mu          sync.Mutex
	pendingDeps int
	skipReason  string

	result Result
}

// Run executes the environments, dependencies first. Independent
// environments keep running after a failure; only the transitive dependents
// of a failed (or skipped) environment are skipped. Results come back in the
// order envs were given.
func (e *Executor) Run(ctx context.Context, envs []*config.Environment) []Result {
	logger := ctxlog.FromContext(ctx)

	nodes := make(map[string]*node, len(envs))
	for _, env := range envs {
		nodes[env.Name] = &node{env: env}
	}
	for _, n := range nodes {
		for _, dep := range n.env.DependsOn {
			if parent, in := nodes[dep]; in {
				parent.dependents = append(parent.dependents, n)
				n.pendingDeps++
			}
		}
	}

	readyChan := make(chan *node, len(nodes))
	var wg sync.WaitGroup
	wg.Add(len(nodes))

	for i := 0; i < e.opts.Workers; i++ {
		go e.worker(ctx, readyChan, &wg, i)
	}

	// Seed in the caller's order so a single worker preserves it.
	for _, env := range envs {
		n := nodes[env.Name]
		if n.pendingDeps == 0 {
			readyChan <- n
		}
	}

	wg.Wait()
	close(readyChan)

	results := make([]Result, 0, len(envs))
	for _, env := range envs {
		results = append(results, nodes[env.Name].result)
	}
	logger.Debug("Executor finished.", "envs", len(results))
	return results
}

// worker is the processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *node, wg *sync.WaitGroup, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "env", n.env.Name)

		n.mu.Lock()
		skip := n.skipReason
		n.mu.Unlock()

		switch {
		case ctx.Err() != nil:
			n.result = Result{Name: n.env.Name, Status: StatusSkipped, SkipReason: ctx.Err().Error()}
		case skip != "":
			workerLogger.Warn("Environment skipped.", "reason", skip)
			n.result = Result{Name: n.env.Name, Status: StatusSkipped, SkipReason: skip}
		default:
			workerLogger.Debug("Worker picked up environment.")
			n.result = e.runEnv(ctx, n.env)
		}

		failed := n.result.Status != StatusPassed
		for _, dependent := range n.dependents {
			dependent.mu.Lock()
			if failed && dependent.skipReason == "" {
				dependent.skipReason = "dependency " + n.env.Name + " " + string(n.result.Status)
			}
			dependent.pendingDeps--
			ready := dependent.pendingDeps == 0
			dependent.mu.Unlock()
			if ready {
				readyChan <- dependent
			}
		}
		wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// Failed reports whether any result is not a pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Status != StatusPassed {
			return true
		}
	}
	return false
}
