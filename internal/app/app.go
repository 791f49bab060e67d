package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/gotox/internal/config"
	"github.com/vk/gotox/internal/ctxlog"
	"github.com/vk/gotox/internal/pyenv"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logW   io.Writer
	logger *slog.Logger
	config *Config
	model  *config.Model
	runner pyenv.Runner
}

// NewApp is the constructor for the main application. It loads and validates
// the configuration model up front; a failure to do so is a fatal startup
// error and panics, to be recovered at the entrypoint. A nil runner selects
// the real os/exec-backed one.
func NewApp(outW, logW io.Writer, appConfig *Config, loader config.Loader, runner pyenv.Runner) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	if err := model.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}
	logger.Debug("Configuration validation passed.")

	if runner == nil {
		runner = pyenv.NewExecRunner()
	}

	return &App{
		outW:   outW,
		logW:   logW,
		logger: logger,
		config: appConfig,
		model:  model,
		runner: runner,
	}
}

// Model returns the loaded configuration model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
