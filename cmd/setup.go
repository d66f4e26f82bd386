package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the configuration file when missing, applies any credentials given as flags and runs the
// credential database migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		return fmt.Errorf("%w: --config must not be empty", shared.ErrMissingArgument)
	}

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			return err
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.logger.Info("config file created", "path", configPath)
		if config, err = shared.LoadConfig(configPath); err != nil {
			return err
		}
	}

	changed := false
	if id := cmd.String("client-id"); id != "" {
		if err := shared.ValidateClientKey(id); err != nil {
			return fmt.Errorf("%w: client id: %v", shared.ErrInvalidFlag, err)
		}
		config.Credentials.Spotify.ClientID = id
		changed = true
	}
	if secret := cmd.String("client-secret"); secret != "" {
		if err := shared.ValidateClientKey(secret); err != nil {
			return fmt.Errorf("%w: client secret: %v", shared.ErrInvalidFlag, err)
		}
		config.Credentials.Spotify.ClientSecret = secret
		changed = true
	}
	if port := cmd.Int("port"); port != 0 {
		config.Credentials.Spotify.Port = port
		changed = true
	}
	if changed {
		if err := config.Validate(); err != nil {
			return err
		}
		if err := shared.SaveConfig(configPath, config); err != nil {
			return err
		}
		r.logger.Info("credentials saved", "path", configPath)
	}

	dbPath, err := config.DatabasePath()
	if err != nil {
		return err
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	r.logger.Info("initializing database", "path", dbPath)
	db, err := shared.OpenDatabase(dbPath, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	r.config = config
	r.configPath = configPath

	r.writePlain("✓ Configuration: %s\n", configPath)
	r.writePlain("✓ Credential database: %s\n", dbPath)
	if err := config.Validate(); err != nil {
		r.writePlainln("Add your Spotify client_id and client_secret to %s, then run: spx auth login", configPath)
		return nil
	}
	r.writePlainln("Register %s as a redirect URI, then run: spx auth login", config.RedirectURI())
	return nil
}
