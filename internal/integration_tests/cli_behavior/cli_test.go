package cli_behavior

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/vk/gotox/internal/app"
	"github.com/vk/gotox/internal/cli"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		args           []string
		expectExit     bool
		expectErr      bool
		expectedConfig *app.Config
		checkOutput    func(t *testing.T, output string)
	}{
		{
			name: "happy path with all flags",
			args: []string{
				"-e", "lint,unit",
				"--config=/test/tox.ini",
				"--workers=4",
				"--skip-install",
				"--report=/tmp/report.json",
				"--workdir=/tmp/work",
				"--log-level=debug",
				"--log-format=json",
				"--healthcheck-port=8080",
			},
			expectedConfig: &app.Config{
				ConfigPath:      "/test/tox.ini",
				Envs:            []string{"lint", "unit"},
				Workers:         4,
				SkipInstall:     true,
				ReportPath:      "/tmp/report.json",
				WorkDir:         "/tmp/work",
				LogLevel:        "debug",
				LogFormat:       "json",
				HealthcheckPort: 8080,
			},
		},
		{
			name: "positional path and defaults",
			args: []string{"/positional/tox.ini"},
			expectedConfig: &app.Config{
				ConfigPath: "/positional/tox.ini",
				Workers:    1,
				LogLevel:   "info",
				LogFormat:  "text",
			},
		},
		{
			name: "posargs after double dash",
			args: []string{"-c", "/test/tox.ini", "--", "-k", "test_scale", "--log-level=ignored-by-us"},
			expectedConfig: &app.Config{
				ConfigPath: "/test/tox.ini",
				Posargs:    []string{"-k", "test_scale", "--log-level=ignored-by-us"},
				Workers:    1,
				LogLevel:   "info",
				LogFormat:  "text",
			},
		},
		{
			name: "list shorthand",
			args: []string{"-l", "/test/tox.ini"},
			expectedConfig: &app.Config{
				ConfigPath: "/test/tox.ini",
				List:       true,
				Workers:    1,
				LogLevel:   "info",
				LogFormat:  "text",
			},
		},
		{
			name:       "help flag triggers clean exit",
			args:       []string{"-h"},
			expectExit: true,
			checkOutput: func(t *testing.T, output string) {
				require.True(t, strings.Contains(output, "Usage:"), "expected help text to be printed")
			},
		},
		{
			name:      "invalid log level returns an error",
			args:      []string{"--log-level=foo", "/test/tox.ini"},
			expectErr: true,
		},
		{
			name:      "invalid log format returns an error",
			args:      []string{"--log-format=xml", "/test/tox.ini"},
			expectErr: true,
		},
		{
			name:      "extra positional argument returns an error",
			args:      []string{"/test/tox.ini", "stray"},
			expectErr: true,
		},
		{
			name:      "unknown flag returns an error",
			args:      []string{"--this-is-not-a-valid-flag"},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := &bytes.Buffer{}
			config, shouldExit, err := cli.Parse(tc.args, out)

			if tc.expectErr {
				require.Error(t, err)
				var exitErr *cli.ExitError
				require.ErrorAs(t, err, &exitErr)
				require.Equal(t, 2, exitErr.Code)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expectExit, shouldExit)
			if tc.checkOutput != nil {
				tc.checkOutput(t, out.String())
			}
			if tc.expectedConfig != nil {
				if diff := cmp.Diff(tc.expectedConfig, config); diff != "" {
					t.Fatalf("config mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestParseDiscoversConfigUpward(t *testing.T) {
	// t.Chdir precludes t.Parallel.
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "tox.ini"), []byte("[tox]\n"), 0o644))
	nested := filepath.Join(tmpDir, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	out := &bytes.Buffer{}
	config, shouldExit, err := cli.Parse(nil, out)
	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Equal(t, filepath.Join(tmpDir, "tox.ini"), config.ConfigPath)
}
