package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vk/gotox/internal/testutil"
)

const reportINI = `
[tox]
envlist = lint, unit

[testenv]
skip_install = true
allowlist_externals = echo

[testenv:lint]
description = Check code against coding style standards
commands = echo lint

[testenv:unit]
description = Run unit tests
commands = echo unit

[testenv:integration]
description = Run integration tests
commands = echo integration
`

// reportShape mirrors the serialized report for decoding in assertions.
type reportShape struct {
	Passed bool `json:"passed" yaml:"passed"`
	Envs   []struct {
		Name     string `json:"name" yaml:"name"`
		Status   string `json:"status" yaml:"status"`
		ExitCode int    `json:"exit_code" yaml:"exit_code"`
	} `json:"envs" yaml:"envs"`
}

func TestJSONReport(t *testing.T) {
	t.Parallel()

	reportPath := filepath.Join(t.TempDir(), "report.json")
	res := testutil.RunApp(t, map[string]string{"tox.ini": reportINI},
		testutil.Options{ReportPath: reportPath})
	require.NoError(t, res.Err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var rep reportShape
	require.NoError(t, json.Unmarshal(data, &rep))
	require.True(t, rep.Passed)
	require.Len(t, rep.Envs, 2)
	require.Equal(t, "lint", rep.Envs[0].Name)
	require.Equal(t, "passed", rep.Envs[0].Status)
}

func TestYAMLReportRecordsFailure(t *testing.T) {
	t.Parallel()

	runner := testutil.NewFakeRunner()
	runner.Fail("echo unit", 3)

	reportPath := filepath.Join(t.TempDir(), "report.yaml")
	res := testutil.RunApp(t, map[string]string{"tox.ini": reportINI},
		testutil.Options{ReportPath: reportPath, Runner: runner})
	require.Error(t, res.Err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var rep reportShape
	require.NoError(t, yaml.Unmarshal(data, &rep))
	require.False(t, rep.Passed)
	require.Equal(t, "unit", rep.Envs[1].Name)
	require.Equal(t, "failed", rep.Envs[1].Status)
	require.Equal(t, 3, rep.Envs[1].ExitCode)
}

func TestSummaryVerdictLines(t *testing.T) {
	t.Parallel()

	res := testutil.RunApp(t, map[string]string{"tox.ini": reportINI}, testutil.Options{})
	require.NoError(t, res.Err)
	require.Contains(t, res.Stdout, "congratulations :)")

	runner := testutil.NewFakeRunner()
	runner.Fail("echo lint", 1)
	res = testutil.RunApp(t, map[string]string{"tox.ini": reportINI}, testutil.Options{Runner: runner})
	require.Error(t, res.Err)
	require.Contains(t, res.Stdout, "evaluation failed :(")
}

func TestListEnvironments(t *testing.T) {
	t.Parallel()

	res := testutil.RunApp(t, map[string]string{"tox.ini": reportINI}, testutil.Options{List: true})
	require.NoError(t, res.Err)

	require.Contains(t, res.Stdout, "default environments:")
	require.Contains(t, res.Stdout, "lint")
	require.Contains(t, res.Stdout, "Run unit tests")
	require.Contains(t, res.Stdout, "additional environments:")
	require.Contains(t, res.Stdout, "integration")

	// Listing must not provision or run anything.
	require.Empty(t, res.Runner.CommandLines())
}

func TestUnsupportedReportExtension(t *testing.T) {
	t.Parallel()

	res := testutil.RunApp(t, map[string]string{"tox.ini": reportINI},
		testutil.Options{ReportPath: filepath.Join(t.TempDir(), "report.xml")})
	require.Error(t, res.Err)
	require.Contains(t, res.Err.Error(), "unsupported report extension")
}
