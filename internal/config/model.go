package config

// Model is the unified, format-agnostic representation of an entire
// configuration file: global settings, substitution variables, the base
// environment, and all named environments.
type Model struct {
	// EnvList is the ordered default selection of environments to run.
	EnvList []string

	// Vars holds the free-form substitution variables from the [vars]
	// section, raw (uninterpolated).
	Vars map[string]string

	// Sections exposes every raw section of the source file so
	// {[section]key} references can reach beyond [vars].
	Sections map[string]map[string]string

	// Defaults is the base environment every named environment inherits
	// from. May be nil when the file defines no base section.
	Defaults *Environment

	// Envs maps environment names to their merged definitions.
	Envs map[string]*Environment

	// EnvOrder preserves the order environments were declared in.
	EnvOrder []string

	// SkipSDist disables source-distribution packaging for the whole run.
	SkipSDist bool

	// MinVersion is the declared minimum runner version, if any.
	MinVersion string

	// ConfigDir is the absolute directory containing the loaded file. It is
	// the anchor for {toxinidir} substitution.
	ConfigDir string
}

// Environment is the format-agnostic definition of a single named
// environment. All string values are raw and may contain substitution
// placeholders.
type Environment struct {
	Name        string
	Description string

	// BasePython is the interpreter used to create the virtual environment.
	BasePython string

	// Deps lists the packages installed into the environment.
	Deps []string

	// SetEnv holds variables exported into every command's process
	// environment.
	SetEnv map[string]string

	// PassEnv lists host environment variable names (or glob patterns)
	// passed through into the process environment.
	PassEnv []string

	// Commands are the raw command lines, run in order. CommandsPre run
	// before provisioning-dependent commands, CommandsPost always after.
	Commands     []string
	CommandsPre  []string
	CommandsPost []string

	// AllowExternals lists executable name patterns permitted to run from
	// the host PATH instead of the environment's bin directory.
	AllowExternals []string

	// ChangeDir is the working directory for commands. Empty means the
	// config file's directory.
	ChangeDir string

	// SkipInstall disables dependency installation for this environment.
	SkipInstall bool

	// DependsOn names environments that must pass before this one runs.
	DependsOn []string

	// Recreate forces the environment directory to be rebuilt from scratch.
	Recreate bool
}

// Clone returns a deep copy of the environment.
func (e *Environment) Clone() *Environment {
	if e == nil {
		return nil
	}
	out := *e
	out.Deps = append([]string(nil), e.Deps...)
	out.PassEnv = append([]string(nil), e.PassEnv...)
	out.Commands = append([]string(nil), e.Commands...)
	out.CommandsPre = append([]string(nil), e.CommandsPre...)
	out.CommandsPost = append([]string(nil), e.CommandsPost...)
	out.AllowExternals = append([]string(nil), e.AllowExternals...)
	out.DependsOn = append([]string(nil), e.DependsOn...)
	out.SetEnv = make(map[string]string, len(e.SetEnv))
	for k, v := range e.SetEnv {
		out.SetEnv[k] = v
	}
	return &out
}

// MergeDefaults fills the environment's unset fields from the base
// environment. List fields are replaced wholesale when the environment sets
// them; SetEnv and PassEnv merge, with the environment winning per key.
func (e *Environment) MergeDefaults(base *Environment) {
	if base == nil {
		return
	}
	if e.BasePython == "" {
		e.BasePython = base.BasePython
	}
	if e.Deps == nil {
		e.Deps = append([]string(nil), base.Deps...)
	}
	if e.Commands == nil {
		e.Commands = append([]string(nil), base.Commands...)
	}
	if e.CommandsPre == nil {
		e.CommandsPre = append([]string(nil), base.CommandsPre...)
	}
	if e.CommandsPost == nil {
		e.CommandsPost = append([]string(nil), base.CommandsPost...)
	}
	if e.AllowExternals == nil {
		e.AllowExternals = append([]string(nil), base.AllowExternals...)
	}
	if e.ChangeDir == "" {
		e.ChangeDir = base.ChangeDir
	}
	e.SkipInstall = e.SkipInstall || base.SkipInstall
	e.Recreate = e.Recreate || base.Recreate

	merged := make(map[string]string, len(base.SetEnv)+len(e.SetEnv))
	for k, v := range base.SetEnv {
		merged[k] = v
	}
	for k, v := range e.SetEnv {
		merged[k] = v
	}
	e.SetEnv = merged

	seen := make(map[string]struct{}, len(base.PassEnv)+len(e.PassEnv))
	var pass []string
	for _, name := range append(append([]string(nil), base.PassEnv...), e.PassEnv...) {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		pass = append(pass, name)
	}
	e.PassEnv = pass
}
