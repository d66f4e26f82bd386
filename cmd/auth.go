package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/services"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the interactive authorization regardless of the cached token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(ctx)
	if err != nil {
		return err
	}

	token, err := s.flow.Login(r.oauthContext(ctx))
	if err != nil {
		return err
	}
	s.coordinator.Install(token)

	r.logger.Info("authorization successful", "scopes", len(token.Scopes))
	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token cached at %s\n\n", s.store.Path())
	r.writePlain("You can now use: spx playlists\n")
	return nil
}

// AuthStatus reports the cached token and, when it is usable, the signed-in user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(ctx)
	if err != nil {
		return err
	}

	r.writePlainHeader("Spotify Authorization")
	r.writePlain("Token cache: %s\n", s.store.Path())

	cached, ok := s.store.Load()
	if !ok {
		r.writePlain("Status: ✗ Not authenticated\n")
		return r.writePlain("\nRun: spx auth login\n")
	}

	now := time.Now()
	if !cached.Valid(now) {
		r.writePlain("Status: ⚠ Token expired %s ago\n", now.Sub(cached.Expiry).Round(time.Second))
		return r.writePlain("\nThe next command will renew it from the stored credential.\n")
	}

	r.writePlain("Status: ✓ Authenticated\n")
	r.writePlain("Expires in: %s\n", cached.ExpiresIn(now).Round(time.Second))
	r.writePlain("Scopes: %d granted\n", len(cached.Scopes))

	client, err := r.client(ctx)
	if err != nil {
		return err
	}
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch current user: %w", err)
	}
	return r.writePlain("User: %s (%s)\n", user.DisplayName, user.ID)
}

// AuthLogout removes the cached token and the durable credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(ctx)
	if err != nil {
		return err
	}

	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear token cache: %w", err)
	}
	if err := s.worker.Forget(ctx); err != nil && !services.IsMissingCredential(err) {
		return fmt.Errorf("failed to delete stored credential: %w", err)
	}

	r.spotify, r.engine = nil, nil
	r.logger.Info("signed out")
	return r.writePlain("✓ Signed out\n")
}
