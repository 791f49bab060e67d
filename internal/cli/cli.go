package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/gotox/internal/app"
	"github.com/vk/gotox/internal/fsutil"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// configCandidates are the file names probed, in order, when no explicit
// configuration path is given.
var configCandidates = []string{"tox.ini", "gotox.hcl"}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	// Everything after a bare `--` belongs to the environments' commands.
	var posargs []string
	for i, arg := range args {
		if arg == "--" {
			posargs = args[i+1:]
			args = args[:i]
			break
		}
	}

	flagSet := flag.NewFlagSet("gotox", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
gotox - a declarative test-environment orchestration runner.

Usage:
  gotox [options] [CONFIG_PATH] [-- posargs...]

Arguments:
  CONFIG_PATH
    Path to a tox.ini or gotox.hcl file. When omitted, parent directories
    are searched for one.
  posargs
    Arguments after a bare -- are substituted for {posargs} in commands.

Options:
`)
		flagSet.PrintDefaults()
	}

	envsFlag := flagSet.String("envs", "", "Comma-separated list of environments to run. Default: the envlist.")
	eFlag := flagSet.String("e", "", "Comma-separated list of environments to run (shorthand).")
	configFlag := flagSet.String("config", "", "Path to the configuration file.")
	cFlag := flagSet.String("c", "", "Path to the configuration file (shorthand).")
	listFlag := flagSet.Bool("list", false, "List available environments and exit.")
	lFlag := flagSet.Bool("l", false, "List available environments and exit (shorthand).")
	workersFlag := flagSet.Int("workers", 1, "Number of environments run concurrently.")
	skipInstallFlag := flagSet.Bool("skip-install", false, "Skip dependency installation for all environments.")
	reportFlag := flagSet.String("report", "", "Write a run report to this path (.json, .yaml, or .yml).")
	workdirFlag := flagSet.String("workdir", "", "Root directory for environment directories. Default: .tox next to the config file.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *configFlag != "" {
		path = *configFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", flagSet.Arg(1))}
	}

	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		path, err = fsutil.FindConfig(cwd, configCandidates...)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
	}
	slog.Debug("Configuration path determined.", "path", path)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	envsSpec := *envsFlag
	if envsSpec == "" {
		envsSpec = *eFlag
	}
	var envs []string
	for _, name := range strings.Split(envsSpec, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			envs = append(envs, name)
		}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigPath:      path,
		Envs:            envs,
		Posargs:         posargs,
		List:            *listFlag || *lFlag,
		WorkDir:         *workdirFlag,
		ReportPath:      *reportFlag,
		SkipInstall:     *skipInstallFlag,
		Workers:         *workersFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
