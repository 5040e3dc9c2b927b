package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebridge/internal/repositories"
	"github.com/desertthunder/tunebridge/internal/services"
	"github.com/desertthunder/tunebridge/internal/shared"
)

const configPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	store, closeStore, err := repositories.Open(ctx, config)
	if err != nil {
		logger.Warn("token storage unavailable, tokens will not persist", "driver", config.Storage.Driver, "error", err)
		store, closeStore = repositories.NewMemoryStore(), func() error { return nil }
	}
	defer closeStore()

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Store:      store,
		Adapters:   BuildAdapters(config, os.Stderr, logger),
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "tunebridge",
		Usage:    "Synchronize playlists between music providers",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		code := exitCode(err)
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
		} else {
			logger.Error("application error", "error", err)
		}
		closeStore()
		os.Exit(code)
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, shared.ErrNotImplemented):
		return 0
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrInvalidConfig), errors.Is(err, shared.ErrMissingConfig),
		errors.Is(err, shared.ErrUnknownProvider):
		return 2
	case services.IsAuthError(err), errors.Is(err, shared.ErrNotConnected):
		return 3
	case errors.Is(err, shared.ErrEmptySource), errors.Is(err, shared.ErrCancelled):
		return 4
	case errors.Is(err, shared.ErrTransport), errors.Is(err, shared.ErrTimeout), errors.Is(err, shared.ErrServiceUnavailable):
		return 5
	default:
		return 1
	}
}
