// Package iniconf loads classic tox.ini-style configuration files into the
// format-agnostic config model.
package iniconf

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/vk/gotox/internal/config"
	"github.com/vk/gotox/internal/ctxlog"
)

// Loader is the INI-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new INI configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// envSectionPrefix marks per-environment sections, e.g. [testenv:unit].
const envSectionPrefix = "testenv:"

// Load parses the INI file at path. Values are kept raw; substitution
// happens later with full per-environment context.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("INI loader started.", "path", path)

	file, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	model := &config.Model{
		Vars:      map[string]string{},
		Envs:      map[string]*config.Environment{},
		Sections:  map[string]map[string]string{},
		ConfigDir: filepath.Dir(absPath),
	}

	// Keep every section's raw keys around so {[section]key} references can
	// reach arbitrary sections, not just [vars].
	for _, sec := range file.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		model.Sections[sec.Name()] = sec.KeysHash()
	}

	if tox := model.Sections["tox"]; tox != nil {
		model.EnvList = splitList(tox["envlist"])
		model.SkipSDist = parseBool(tox["skipsdist"])
		model.MinVersion = strings.TrimSpace(tox["minversion"])
	}
	if vars := model.Sections["vars"]; vars != nil {
		model.Vars = vars
	}

	if base, ok := model.Sections["testenv"]; ok {
		env, err := parseEnvironment("testenv", base)
		if err != nil {
			return nil, err
		}
		model.Defaults = env
	}

	for _, sec := range file.Sections() {
		name, ok := strings.CutPrefix(sec.Name(), envSectionPrefix)
		if !ok || name == "" {
			continue
		}
		env, err := parseEnvironment(name, model.Sections[sec.Name()])
		if err != nil {
			return nil, err
		}
		env.Name = name
		env.MergeDefaults(model.Defaults)
		model.Envs[name] = env
		model.EnvOrder = append(model.EnvOrder, name)
	}

	// Environments named in the envlist but lacking a section of their own
	// run with the bare [testenv] defaults.
	for _, name := range model.EnvList {
		if _, exists := model.Envs[name]; exists {
			continue
		}
		env := &config.Environment{Name: name}
		env.MergeDefaults(model.Defaults)
		model.Envs[name] = env
		model.EnvOrder = append(model.EnvOrder, name)
	}

	logger.Debug("INI loading complete.",
		"envs", len(model.Envs), "envlist", model.EnvList, "vars", len(model.Vars))
	return model, nil
}

// parseEnvironment translates a testenv section's raw keys into the model.
func parseEnvironment(section string, keys map[string]string) (*config.Environment, error) {
	env := &config.Environment{
		Description: strings.TrimSpace(keys["description"]),
		BasePython:  strings.TrimSpace(keys["basepython"]),
		ChangeDir:   strings.TrimSpace(keys["changedir"]),
		SkipInstall: parseBool(keys["skip_install"]),
		Recreate:    parseBool(keys["recreate"]),
	}

	if v, ok := keys["deps"]; ok {
		env.Deps = splitLines(v)
	}
	if v, ok := keys["passenv"]; ok {
		env.PassEnv = splitList(v)
	}
	if v, ok := keys["depends"]; ok {
		env.DependsOn = splitList(v)
	}
	if v, ok := keys["commands"]; ok {
		env.Commands = splitCommands(v)
	}
	if v, ok := keys["commands_pre"]; ok {
		env.CommandsPre = splitCommands(v)
	}
	if v, ok := keys["commands_post"]; ok {
		env.CommandsPost = splitCommands(v)
	}
	if v, ok := keys["allowlist_externals"]; ok {
		env.AllowExternals = splitLines(v)
	} else if v, ok := keys["whitelist_externals"]; ok {
		env.AllowExternals = splitLines(v)
	}

	if v, ok := keys["setenv"]; ok {
		setenv, err := parseSetEnv(v)
		if err != nil {
			return nil, fmt.Errorf("section [%s]: %w", section, err)
		}
		env.SetEnv = setenv
	}

	return env, nil
}

// parseSetEnv parses KEY = value lines from a multiline setenv value.
func parseSetEnv(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, line := range splitLines(raw) {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed setenv entry %q (expected KEY=value)", line)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}

// splitLines splits a multiline value into trimmed, non-empty lines.
func splitLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

// splitList splits on newlines and commas, for keys like envlist and passenv
// that accept either separator.
func splitList(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		for _, item := range strings.Split(line, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// splitCommands splits a commands value into one raw command line per entry,
// joining lines continued with a trailing backslash.
func splitCommands(raw string) []string {
	var out []string
	var pending string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if cont, ok := strings.CutSuffix(line, "\\"); ok {
			pending += strings.TrimSpace(cont) + " "
			continue
		}
		out = append(out, strings.TrimSpace(pending+line))
		pending = ""
	}
	if strings.TrimSpace(pending) != "" {
		out = append(out, strings.TrimSpace(pending))
	}
	return out
}

// parseBool reports whether a raw config value spells an affirmative.
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
