package interp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func testContext() *Context {
	return &Context{
		ToxIniDir: "/proj",
		WorkDir:   "/proj/.tox",
		EnvName:   "unit",
		EnvDir:    "/proj/.tox/unit",
		EnvBinDir: "/proj/.tox/unit/bin",
		EnvPython: "/proj/.tox/unit/bin/python",
		Posargs:   nil,
		LookupVar: func(section, key string) (string, bool) {
			if section == "vars" && key == "src_path" {
				return "{toxinidir}/src", true
			}
			return "", false
		},
		LookupEnv: func(name string) (string, bool) {
			if name == "CHARM_BUILD_DIR" {
				return "/build", true
			}
			return "", false
		},
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		input     string
		posargs   []string
		expected  string
		expectErr string
	}{
		{
			name:     "plain text untouched",
			input:    "pytest -v tests/unit",
			expected: "pytest -v tests/unit",
		},
		{
			name:     "toxinidir",
			input:    "{toxinidir}/src",
			expected: "/proj/src",
		},
		{
			name:     "env placeholders",
			input:    "{envname} {envdir} {envbindir} {envpython}",
			expected: "unit /proj/.tox/unit /proj/.tox/unit/bin /proj/.tox/unit/bin/python",
		},
		{
			name:     "workdir",
			input:    "{workdir}",
			expected: "/proj/.tox",
		},
		{
			name:     "section reference resolves recursively",
			input:    "{[vars]src_path}/charm.py",
			expected: "/proj/src/charm.py",
		},
		{
			name:     "env var present",
			input:    "{env:CHARM_BUILD_DIR}",
			expected: "/build",
		},
		{
			name:     "env var default used when missing",
			input:    "{env:MISSING:fallback}",
			expected: "fallback",
		},
		{
			name:     "env var empty default",
			input:    "x{env:MISSING:}y",
			expected: "xy",
		},
		{
			name:      "env var missing without default",
			input:     "{env:MISSING}",
			expectErr: "MISSING is not set",
		},
		{
			name:     "nested default",
			input:    "{env:MISSING:{toxinidir}/lib}",
			expected: "/proj/lib",
		},
		{
			name:     "path separators",
			input:    "a{:}b{/}c",
			expected: "a" + string(os.PathListSeparator) + "b" + string(os.PathSeparator) + "c",
		},
		{
			name:     "escaped braces are literal",
			input:    `\{posargs\}`,
			expected: "{posargs}",
		},
		{
			name:     "posargs joined in plain expansion",
			input:    "pytest {posargs}",
			posargs:  []string{"-k", "test_x"},
			expected: "pytest -k test_x",
		},
		{
			name:     "posargs empty without default",
			input:    "pytest {posargs}",
			expected: "pytest ",
		},
		{
			name:     "posargs default",
			input:    "pytest {posargs:tests/unit}",
			expected: "pytest tests/unit",
		},
		{
			name:      "unknown placeholder",
			input:     "{bogus}",
			expectErr: "unknown substitution",
		},
		{
			name:      "unbalanced braces",
			input:     "{toxinidir",
			expectErr: "unbalanced braces",
		},
		{
			name:      "undefined section reference",
			input:     "{[vars]nope}",
			expectErr: "undefined reference",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ic := testContext()
			ic.Posargs = tc.posargs

			got, err := ic.Expand(tc.input)
			if tc.expectErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.expectErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestExpandRejectsCycles(t *testing.T) {
	t.Parallel()

	ic := testContext()
	ic.LookupVar = func(section, key string) (string, bool) {
		// a section value referring back to itself.
		return "{[vars]loop}", true
	}

	_, err := ic.Expand("{[vars]loop}")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nested too deeply")
}

func TestExpandCommand(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		posargs  []string
		expected []string
	}{
		{
			name:     "simple split",
			input:    "coverage run -m pytest",
			expected: []string{"coverage", "run", "-m", "pytest"},
		},
		{
			name:     "quoted argument stays one word",
			input:    `codespell --ignore-words "skip list.txt"`,
			expected: []string{"codespell", "--ignore-words", "skip list.txt"},
		},
		{
			name:     "posargs spliced as separate words",
			input:    "pytest {posargs} tests/unit",
			posargs:  []string{"-k", "my test"},
			expected: []string{"pytest", "-k", "my test", "tests/unit"},
		},
		{
			name:     "posargs empty disappears",
			input:    "pytest {posargs}",
			expected: []string{"pytest"},
		},
		{
			name:     "posargs default splits",
			input:    "pytest {posargs:-v tests}",
			expected: []string{"pytest", "-v", "tests"},
		},
		{
			name:     "posargs attached to a word joins",
			input:    "pytest --opts={posargs}",
			posargs:  []string{"-x", "-v"},
			expected: []string{"pytest", "--opts=-x -v"},
		},
		{
			name:     "placeholders expand before split",
			input:    "pyright {[vars]src_path}",
			expected: []string{"pyright", "/proj/src"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ic := testContext()
			ic.Posargs = tc.posargs

			got, err := ic.ExpandCommand(tc.input)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Fatalf("argv mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpandCommandPathPlaceholders(t *testing.T) {
	t.Parallel()

	ic := testContext()
	got, err := ic.ExpandCommand("{envpython} -m pip list")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.ToSlash("/proj/.tox/unit/bin/python"), "-m", "pip", "list"},
		[]string{filepath.ToSlash(got[0]), got[1], got[2], got[3]})
}

func TestMatchBrace(t *testing.T) {
	t.Parallel()

	end, err := matchBrace("{a{b}c}", 0)
	require.NoError(t, err)
	require.Equal(t, 6, end)
	require.Equal(t, "a{b}c", "{a{b}c}"[1:end])

	_, err = matchBrace("{unclosed", 0)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "unbalanced"))
}
