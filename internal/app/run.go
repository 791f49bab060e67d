package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/gotox/internal/ctxlog"
	"github.com/vk/gotox/internal/executor"
	"github.com/vk/gotox/internal/report"
)

// Run executes the main application logic: select environments, run them in
// dependency order, and render the outcome.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	if a.config.List {
		return a.listEnvs()
	}

	selected, err := a.model.SelectEnvs(a.config.Envs)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(selected))
	for _, env := range selected {
		names = append(names, env.Name)
	}
	a.logger.Info("🚀 Starting environments", "order", names, "workers", a.config.Workers)

	exec := executor.New(a.model, executor.Options{
		WorkDir:     a.config.WorkDir,
		Posargs:     a.config.Posargs,
		SkipInstall: a.config.SkipInstall,
		Workers:     a.config.Workers,
		OutW:        a.outW,
		Runner:      a.runner,
	})

	startedAt := time.Now()
	results := exec.Run(ctx, selected)
	a.logger.Info("🏁 Execution finished.", "duration", time.Since(startedAt).Round(time.Millisecond))

	rep := report.New(startedAt, results)
	rep.Summary(a.outW)

	if a.config.ReportPath != "" {
		if err := rep.WriteFile(a.config.ReportPath); err != nil {
			return err
		}
		a.logger.Info("Report written.", "path", a.config.ReportPath)
	}

	if executor.Failed(results) {
		failed := 0
		for _, r := range results {
			if r.Status != executor.StatusPassed {
				failed++
			}
		}
		return fmt.Errorf("%d of %d environments did not pass", failed, len(results))
	}
	return nil
}

// listEnvs prints the envlist order first, then any extra defined
// environments, with their descriptions.
func (a *App) listEnvs() error {
	inList := make(map[string]struct{}, len(a.model.EnvList))

	fmt.Fprintln(a.outW, "default environments:")
	for _, name := range a.model.EnvList {
		inList[name] = struct{}{}
		fmt.Fprintf(a.outW, "  %-14s %s\n", name, a.model.Envs[name].Description)
	}

	var extra []string
	for _, name := range a.model.EnvOrder {
		if _, ok := inList[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		fmt.Fprintln(a.outW, "additional environments:")
		for _, name := range extra {
			fmt.Fprintf(a.outW, "  %-14s %s\n", name, a.model.Envs[name].Description)
		}
	}
	return nil
}
