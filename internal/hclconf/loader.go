// Package hclconf loads the native HCL configuration format into the
// format-agnostic config model. It mirrors the semantics of the INI format;
// brace placeholders inside strings still go through the shared substitution
// engine, while ${toxinidir}-style HCL interpolation is resolved at load
// time via the eval context.
package hclconf

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/gotox/internal/config"
	"github.com/vk/gotox/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the HCL file at path and translates it into the model.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	configDir := filepath.Dir(absPath)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"toxinidir": cty.StringVal(configDir),
		},
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	model := &config.Model{
		Vars:      map[string]string{},
		Envs:      map[string]*config.Environment{},
		Sections:  map[string]map[string]string{},
		ConfigDir: configDir,
	}

	if root.Settings != nil {
		model.EnvList = root.Settings.EnvList
		model.SkipSDist = root.Settings.SkipSDist
		model.MinVersion = root.Settings.MinVersion
	}

	if root.Vars != nil {
		vars, err := decodeVars(root.Vars.Body, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("vars block in %s: %w", path, err)
		}
		model.Vars = vars
	}
	model.Sections["vars"] = model.Vars

	if root.Defaults != nil {
		model.Defaults = translateEnv("", root.Defaults)
	}

	for _, block := range root.Envs {
		if _, dup := model.Envs[block.Name]; dup {
			return nil, fmt.Errorf("duplicate env block %q in %s", block.Name, path)
		}
		var body envBody
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &body); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode env %q in %s: %w", block.Name, path, diags)
		}
		env := translateEnv(block.Name, &body)
		env.MergeDefaults(model.Defaults)
		model.Envs[block.Name] = env
		model.EnvOrder = append(model.EnvOrder, block.Name)
	}

	// Envlist entries without an env block of their own run with bare
	// defaults, matching the INI loader.
	for _, name := range model.EnvList {
		if _, exists := model.Envs[name]; exists {
			continue
		}
		env := &config.Environment{Name: name}
		env.MergeDefaults(model.Defaults)
		model.Envs[name] = env
		model.EnvOrder = append(model.EnvOrder, name)
	}

	logger.Debug("HCL loading complete.",
		"envs", len(model.Envs), "envlist", model.EnvList, "vars", len(model.Vars))
	return model, nil
}

// decodeVars evaluates every bare attribute of the vars block to a string.
func decodeVars(body hcl.Body, evalCtx *hcl.EvalContext) (map[string]string, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	vars := make(map[string]string, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating %s: %w", name, diags)
		}
		strVal, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, fmt.Errorf("variable %s is not convertible to string: %w", name, err)
		}
		vars[name] = strVal.AsString()
	}
	return vars, nil
}

// translateEnv converts a decoded env body into the agnostic model.
func translateEnv(name string, body *envBody) *config.Environment {
	return &config.Environment{
		Name:           name,
		Description:    body.Description,
		BasePython:     body.BasePython,
		Deps:           body.Deps,
		SetEnv:         body.SetEnv,
		PassEnv:        body.PassEnv,
		Commands:       body.Commands,
		CommandsPre:    body.CommandsPre,
		CommandsPost:   body.CommandsPost,
		AllowExternals: body.AllowExternals,
		ChangeDir:      body.ChangeDir,
		SkipInstall:    body.SkipInstall,
		DependsOn:      body.DependsOn,
		Recreate:       body.Recreate,
	}
}
