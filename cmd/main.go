package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
)

const configFile = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	configPath := resolveConfigPath()
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "spx",
		Usage:    "Browse and manage a Spotify library from the terminal",
		Version:  "0.1.0",
		Commands: runner.register(),
		After: func(ctx context.Context, cmd *cli.Command) error {
			return runner.Close()
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

// resolveConfigPath prefers ./config.toml and falls back to the user configuration directory.
func resolveConfigPath() string {
	if _, err := os.Stat(configFile); err == nil {
		return configFile
	}
	dir, err := shared.UserConfigDir()
	if err != nil {
		return configFile
	}
	return filepath.Join(dir, configFile)
}
