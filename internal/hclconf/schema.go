package hclconf

import "github.com/hashicorp/hcl/v2"

// fileRoot is the top-level structure of a native configuration file.
type fileRoot struct {
	Settings *settingsBlock `hcl:"settings,block"`
	Vars     *varsBlock     `hcl:"vars,block"`
	Defaults *envBody       `hcl:"defaults,block"`
	Envs     []*namedEnv    `hcl:"env,block"`
}

// settingsBlock mirrors the global [tox] section of the INI format.
type settingsBlock struct {
	EnvList    []string `hcl:"envlist,optional"`
	SkipSDist  bool     `hcl:"skip_sdist,optional"`
	MinVersion string   `hcl:"min_version,optional"`
}

// varsBlock holds free-form substitution variables as bare attributes.
type varsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// namedEnv captures an env block's label; its body is decoded separately so
// the defaults block and named environments share one schema.
type namedEnv struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// envBody is the shared schema for the defaults block and env block bodies.
type envBody struct {
	Description    string            `hcl:"description,optional"`
	BasePython     string            `hcl:"basepython,optional"`
	Deps           []string          `hcl:"deps,optional"`
	SetEnv         map[string]string `hcl:"setenv,optional"`
	PassEnv        []string          `hcl:"passenv,optional"`
	Commands       []string          `hcl:"commands,optional"`
	CommandsPre    []string          `hcl:"commands_pre,optional"`
	CommandsPost   []string          `hcl:"commands_post,optional"`
	AllowExternals []string          `hcl:"allowlist_externals,optional"`
	ChangeDir      string            `hcl:"changedir,optional"`
	SkipInstall    bool              `hcl:"skip_install,optional"`
	DependsOn      []string          `hcl:"depends_on,optional"`
	Recreate       bool              `hcl:"recreate,optional"`
}
