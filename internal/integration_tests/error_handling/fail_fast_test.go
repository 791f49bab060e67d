package error_handling

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/gotox/internal/testutil"
)

func TestFirstFailingCommandStopsTheEnvironment(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner()
	runner.Fail("ruff check", 1)

	res := testutil.RunApp(t, map[string]string{
		"tox.ini": `
[testenv:lint]
skip_install = true
allowlist_externals =
    codespell
    ruff
    black
commands =
    codespell .
    ruff check .
    black --check .
`,
	}, testutil.Options{Envs: []string{"lint"}, Runner: runner})

	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "1 of 1 environments did not pass")

	joined := strings.Join(runner.CommandLines(), "\n")
	require.Contains(t, joined, "codespell .")
	require.Contains(t, joined, "ruff check .")
	require.NotContains(t, joined, "black --check .", "commands after the failure must not run")
}

func TestCommandsPostRunAfterFailure(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner()
	runner.Fail("pytest", 2)

	res := testutil.RunApp(t, map[string]string{
		"tox.ini": `
[testenv:unit]
skip_install = true
allowlist_externals =
    pytest
    coverage
commands =
    pytest tests
commands_post =
    coverage report
`,
	}, testutil.Options{Envs: []string{"unit"}, Runner: runner})

	require.Error(t, res.Err)
	joined := strings.Join(runner.CommandLines(), "\n")
	require.Contains(t, joined, "coverage report", "commands_post is teardown and must always run")

	// The recorded failure is the original one, not anything from teardown.
	require.Contains(t, res.Stdout, `command "pytest tests" exited with code 2`)
}

func TestFailedDependencySkipsDependents(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner()
	runner.Fail("echo unit", 1)

	res := testutil.RunApp(t, map[string]string{
		"tox.ini": `
[tox]
envlist = lint, unit, integration

[testenv]
skip_install = true
allowlist_externals = echo

[testenv:lint]
commands = echo lint

[testenv:unit]
commands = echo unit

[testenv:integration]
commands = echo integration
depends = unit
`,
	}, testutil.Options{Runner: runner})

	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "2 of 3 environments did not pass")

	joined := strings.Join(runner.CommandLines(), "\n")
	require.Contains(t, joined, "echo lint", "independent environments still run after a failure")
	require.NotContains(t, joined, "echo integration")

	require.Contains(t, res.Stdout, "✅ lint")
	require.Contains(t, res.Stdout, "❌ unit")
	require.Contains(t, res.Stdout, "⏭️ integration")
	require.Contains(t, res.Stdout, "dependency unit failed")
}

func TestUnlistedExternalCommandIsRejected(t *testing.T) {
	t.Parallel()

	res := testutil.RunApp(t, map[string]string{
		"tox.ini": `
[testenv:unit]
skip_install = true
commands = rm -rf /
`,
	}, testutil.Options{Envs: []string{"unit"}})

	require.Error(t, res.Err)
	require.Contains(t, res.Stdout, "does not match allowlist_externals")

	joined := strings.Join(res.Runner.CommandLines(), "\n")
	require.NotContains(t, joined, "rm -rf", "the command must never be spawned")
}

func TestSpawnErrorFailsTheEnvironment(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner()
	runner.FailWith("echo hi", errors.New("fork/exec ./echo: no such file or directory"))

	res := testutil.RunApp(t, map[string]string{
		"tox.ini": `
[testenv:unit]
skip_install = true
allowlist_externals = echo
commands = echo hi
`,
	}, testutil.Options{Envs: []string{"unit"}, Runner: runner})

	require.Error(t, res.Err)
	require.Contains(t, res.Stdout, "no such file")
}

func TestInvalidConfigIsRejectedAtStartup(t *testing.T) {
	t.Parallel()

	res := testutil.RunApp(t, map[string]string{
		"tox.ini": `
[testenv:unit]
depends = ghost
commands = echo hi
`,
	}, testutil.Options{})

	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "application startup panicked")
	require.Contains(t, res.Err.Error(), `depends on undefined environment "ghost"`)
}

func TestDependencyCycleIsRejectedAtStartup(t *testing.T) {
	t.Parallel()

	res := testutil.RunApp(t, map[string]string{
		"tox.ini": `
[testenv:a]
depends = b
commands = echo a

[testenv:b]
depends = a
commands = echo b
`,
	}, testutil.Options{})

	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "dependency cycle")
}

func TestUnknownSubstitutionFailsTheEnvironment(t *testing.T) {
	t.Parallel()

	res := testutil.RunApp(t, map[string]string{
		"tox.ini": `
[testenv:unit]
skip_install = true
allowlist_externals = echo
commands = echo {bogus}
`,
	}, testutil.Options{Envs: []string{"unit"}})

	require.Error(t, res.Err)
	require.Contains(t, res.Stdout, "unknown substitution")
}
