package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/gotox/internal/config"
	"github.com/vk/gotox/internal/interp"
)

// basePassEnv are host variables always passed through, independent of the
// environment's passenv list.
var basePassEnv = []string{
	"PATH", "HOME", "USER",
	"TMPDIR", "TEMP", "TMP",
	"LANG", "LANGUAGE", "LC_ALL",
	"LD_LIBRARY_PATH",
}

// processEnv computes the full process environment for an environment's
// commands: the passenv-filtered host environment, the virtualenv activation
// variables, then the interpolated setenv entries on top.
func (e *Executor) processEnv(env *config.Environment, ic *interp.Context, envDir string) ([]string, error) {
	vars := map[string]string{}

	patterns := append(append([]string(nil), basePassEnv...), env.PassEnv...)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if matchesAny(patterns, name) {
			vars[name] = value
		}
	}

	// Activate the virtualenv the way `source bin/activate` would.
	vars["VIRTUAL_ENV"] = envDir
	if path, ok := vars["PATH"]; ok {
		vars["PATH"] = ic.EnvBinDir + string(os.PathListSeparator) + path
	} else {
		vars["PATH"] = ic.EnvBinDir
	}

	// setenv entries may reference passed-through values via {env:...}.
	setenvNames := make([]string, 0, len(env.SetEnv))
	for name := range env.SetEnv {
		setenvNames = append(setenvNames, name)
	}
	sort.Strings(setenvNames)
	for _, name := range setenvNames {
		value, err := ic.Expand(env.SetEnv[name])
		if err != nil {
			return nil, fmt.Errorf("expanding setenv %s: %w", name, err)
		}
		vars[name] = value
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, name+"="+vars[name])
	}
	return out, nil
}

// matchesAny reports whether name matches any passenv entry; entries are
// exact names or glob patterns like CHARM_*.
func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if pattern == name {
			return true
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
