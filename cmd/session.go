package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/spx/internal/auth"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/repositories"
	"github.com/desertthunder/spx/internal/services"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/desertthunder/spx/internal/tasks"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// session owns the long-lived collaborators behind an authenticated client.
type session struct {
	db          *sql.DB
	store       *auth.TokenStore
	worker      *services.CredentialWorker
	coordinator *services.RefreshCoordinator
	flow        *auth.Flow
	client      *services.SpotifyClient
	stop        context.CancelFunc
}

func (s *session) close() error {
	s.stop()
	<-s.worker.Done()
	return s.db.Close()
}

// oauthContext makes the oauth2 package use the runner's HTTP client for token requests.
func (r *Runner) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
}

// open wires the credential database, worker, token cache, refresh coordinator and API client.
//
// No network traffic happens here; [Runner.client] authenticates afterwards.
func (r *Runner) open(ctx context.Context) (*session, error) {
	if r.session != nil {
		return r.session, nil
	}

	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("%w (run `spx setup` to create %s)", err, r.configPath)
	}

	dbPath, err := r.config.DatabasePath()
	if err != nil {
		return nil, err
	}
	tokenPath, err := r.config.TokenCachePath()
	if err != nil {
		return nil, err
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	r.logger.Debug("opening credential database", "path", dbPath)
	db, err := shared.OpenDatabase(dbPath, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	if err != nil {
		return nil, err
	}

	spotify := r.config.Credentials.Spotify
	oauthCfg := auth.NewOAuthConfig(spotify.ClientID, spotify.ClientSecret, r.config.RedirectURI())

	workerCtx, stop := context.WithCancel(r.oauthContext(context.WithoutCancel(ctx)))
	worker := services.NewCredentialWorker(
		repositories.NewCredentialRepository(db),
		services.NewOAuthMinter(oauthCfg),
		r.logger,
	)
	worker.Start(workerCtx)

	store := auth.NewTokenStore(tokenPath, r.logger)
	coordinator := services.NewRefreshCoordinator(nil, worker.Commands(), r.config.Auth.RefreshTimeout.Duration, r.logger)
	coordinator.OnRefresh(func(token *models.AccessToken) {
		if err := store.Save(token.WithoutRefresh()); err != nil {
			r.logger.Warn("failed to cache refreshed token", "error", err)
		}
	})

	flow := auth.NewFlow(auth.FlowConfig{
		OAuth:           oauthCfg,
		Store:           store,
		Seeder:          worker,
		Renew:           coordinator.Mint,
		Port:            r.config.Port(),
		CallbackTimeout: r.config.Auth.CallbackTimeout.Duration,
		OpenBrowser:     r.config.Auth.OpenBrowser,
		Input:           r.input,
		Output:          r.output,
		Logger:          r.logger,
	})

	api := services.NewAPIService(r.config.API.BaseURL, r.httpClient, coordinator)
	retrier := services.NewRetrier(coordinator, r.limiter(), r.logger)

	r.session = &session{
		db:          db,
		store:       store,
		worker:      worker,
		coordinator: coordinator,
		flow:        flow,
		client:      services.NewSpotifyClient(api, retrier, coordinator, r.logger),
		stop:        stop,
	}
	return r.session, nil
}

// limiter paces outgoing requests. A non-positive rate disables pacing.
func (r *Runner) limiter() *rate.Limiter {
	rps := r.config.API.RequestsPerSecond
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(rps), max(r.config.API.Burst, 1))
}

// client returns an authenticated Spotify client, running the authorization flow when no usable
// token is cached.
func (r *Runner) client(ctx context.Context) (*services.SpotifyClient, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}

	s, err := r.open(ctx)
	if err != nil {
		return nil, err
	}

	token, err := s.flow.Authenticate(r.oauthContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}
	s.coordinator.Install(token)

	r.spotify = s.client
	r.engine = tasks.NewPlaylistEngine(s.client)
	return r.spotify, nil
}

// playlistEngine returns the task engine bound to the authenticated client.
func (r *Runner) playlistEngine(ctx context.Context) (*tasks.PlaylistEngine, error) {
	if _, err := r.client(ctx); err != nil {
		return nil, err
	}
	return r.engine, nil
}
