// Package report renders run outcomes: a human summary on the terminal and
// an optional machine-readable file in JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/gotox/internal/executor"
)

// EnvResult is the serializable outcome of a single environment.
type EnvResult struct {
	Name          string  `json:"name" yaml:"name"`
	Status        string  `json:"status" yaml:"status"`
	DurationSecs  float64 `json:"duration_seconds" yaml:"duration_seconds"`
	FailedCommand string  `json:"failed_command,omitempty" yaml:"failed_command,omitempty"`
	ExitCode      int     `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	SkipReason    string  `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
	Error         string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the serializable outcome of a whole run.
type Report struct {
	StartedAt    time.Time   `json:"started_at" yaml:"started_at"`
	DurationSecs float64     `json:"duration_seconds" yaml:"duration_seconds"`
	Passed       bool        `json:"passed" yaml:"passed"`
	Envs         []EnvResult `json:"envs" yaml:"envs"`
}

// New builds a Report from executor results.
func New(startedAt time.Time, results []executor.Result) *Report {
	r := &Report{
		StartedAt:    startedAt,
		DurationSecs: time.Since(startedAt).Seconds(),
		Passed:       !executor.Failed(results),
	}
	for _, res := range results {
		env := EnvResult{
			Name:          res.Name,
			Status:        string(res.Status),
			DurationSecs:  res.Duration.Seconds(),
			FailedCommand: res.FailedCommand,
			ExitCode:      res.ExitCode,
			SkipReason:    res.SkipReason,
		}
		if res.Err != nil {
			env.Error = res.Err.Error()
		}
		r.Envs = append(r.Envs, env)
	}
	return r
}

// Summary writes the per-environment outcome lines and the overall verdict.
func (r *Report) Summary(w io.Writer) {
	for _, env := range r.Envs {
		switch executor.Status(env.Status) {
		case executor.StatusPassed:
			fmt.Fprintf(w, "  ✅ %s: OK (%.2fs)\n", env.Name, env.DurationSecs)
		case executor.StatusSkipped:
			fmt.Fprintf(w, "  ⏭️ %s: SKIP (%s)\n", env.Name, env.SkipReason)
		default:
			detail := env.Error
			if env.FailedCommand != "" {
				detail = fmt.Sprintf("command %q exited with code %d", env.FailedCommand, env.ExitCode)
			}
			fmt.Fprintf(w, "  ❌ %s: FAIL (%.2fs) %s\n", env.Name, env.DurationSecs, detail)
		}
	}
	if r.Passed {
		fmt.Fprintln(w, "  congratulations :)")
	} else {
		fmt.Fprintln(w, "  evaluation failed :(")
	}
}

// WriteFile serializes the report to path, choosing the encoding from the
// file extension: .json, .yaml, or .yml.
func (r *Report) WriteFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(r, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r)
	default:
		return fmt.Errorf("unsupported report extension %q (want .json, .yaml, or .yml)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
