// Package config defines the format-agnostic model of an environment
// configuration file, along with the Loader interface implemented by the
// format-specific packages.
//
// The config.Model is the single source of truth for the executor: both the
// classic INI format and the native HCL format translate into it. Values in
// the model are stored raw; brace substitution happens at execution time,
// once the per-environment context (env dir, posargs, ...) is known.
package config
