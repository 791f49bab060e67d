// Package testutil provides the shared harness for integration-style tests:
// fixture configs written to a temp dir, a fake process runner, and captured
// log output.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/gotox/internal/app"
)

// SafeBuffer is a thread-safe buffer for capturing output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Options tweaks a harness run.
type Options struct {
	// ConfigFile names the fixture file to load. Default "tox.ini".
	ConfigFile string

	Envs        []string
	Posargs     []string
	Workers     int
	ReportPath  string
	List        bool
	SkipInstall bool

	// Runner overrides the default FakeRunner, e.g. one with scripted
	// failures.
	Runner *FakeRunner
}

// Result holds the outcomes of a harness run.
type Result struct {
	// Dir is the temp directory the fixtures were written to.
	Dir string

	// Stdout is the app's user-facing output (summary, listings).
	Stdout string

	// LogOutput is the captured structured log stream.
	LogOutput string

	Err    error
	App    *app.App
	Runner *FakeRunner
}

// RunApp writes the fixture files into a temp dir and runs the application
// against them with a fake process runner. Startup panics are recovered into
// Result.Err, mirroring the real entrypoint.
func RunApp(t *testing.T, files map[string]string, opts Options) *Result {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = "tox.ini"
	}
	configPath := filepath.Join(tmpDir, configFile)

	runner := opts.Runner
	if runner == nil {
		runner = NewFakeRunner()
	}

	appConfig, err := app.NewConfig(app.Config{
		ConfigPath:  configPath,
		Envs:        opts.Envs,
		Posargs:     opts.Posargs,
		List:        opts.List,
		ReportPath:  opts.ReportPath,
		SkipInstall: opts.SkipInstall,
		Workers:     opts.Workers,
		LogFormat:   "text",
		LogLevel:    "debug",
	})
	require.NoError(t, err)

	loader, err := app.LoaderFor(configPath)
	require.NoError(t, err)

	stdout := &SafeBuffer{}
	logBuffer := &SafeBuffer{}

	result := &Result{Dir: tmpDir, Runner: runner}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(stdout, logBuffer, appConfig, loader, runner)
	}()

	if panicErr != nil {
		result.Err = fmt.Errorf("application startup panicked | %v", panicErr)
		result.LogOutput = logBuffer.String()
		return result
	}

	result.App = testApp
	result.Err = testApp.Run(context.Background())
	result.Stdout = stdout.String()
	result.LogOutput = logBuffer.String()

	if os.Getenv("GOTOX_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
