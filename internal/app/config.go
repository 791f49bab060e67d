package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ConfigPath is the environment definition file (tox.ini or gotox.hcl).
	ConfigPath string

	// Envs are the requested environment names; empty means the envlist.
	Envs []string

	// Posargs are CLI arguments after `--`, spliced in for {posargs}.
	Posargs []string

	// List prints the available environments instead of running.
	List bool

	// WorkDir overrides the environment work root (default: .tox next to
	// the config file).
	WorkDir string

	// ReportPath, when set, receives a machine-readable run report.
	ReportPath string

	SkipInstall bool
	Workers     int

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &cfg, nil
}
