package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/server"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

// State is a step of the authorization flow.
type State int

const (
	StateIdle State = iota
	StateNeedAuth
	StateAwaitingCallback
	StateManualFallback
	StateTokenExchanged
	StatePersisted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNeedAuth:
		return "need_auth"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateManualFallback:
		return "manual_fallback"
	case StateTokenExchanged:
		return "token_exchanged"
	case StatePersisted:
		return "persisted"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// CredentialSeeder receives the durable refresh secret after a successful exchange.
type CredentialSeeder interface {
	Seed(ctx context.Context, refreshToken string, scopes []string) error
}

// RenewFunc mints a replacement for an expired cached token without user interaction.
type RenewFunc func(ctx context.Context) (*models.AccessToken, error)

// ListenFunc waits for one OAuth redirect on port and returns the full URL.
type ListenFunc func(ctx context.Context, port int, logger *log.Logger) (string, error)

// FlowConfig wires a [Flow] to its collaborators.
//
// Only OAuth and Store are required. Input and Output default to empty/discarding streams.
//
// When Seeder is set the refresh secret is handed to it and left out of the token cache; Renew
// should then be set so expired cached tokens can still be renewed.
type FlowConfig struct {
	OAuth           *oauth2.Config
	Store           *TokenStore
	Seeder          CredentialSeeder
	Renew           RenewFunc
	Port            int
	CallbackTimeout time.Duration
	OpenBrowser     bool
	Opener          shared.Opener
	Listen          ListenFunc
	Input           io.Reader
	Output          io.Writer
	Logger          *log.Logger
	Now             func() time.Time
}

// Flow drives the authorization-code exchange and keeps the token cache current.
type Flow struct {
	cfg    FlowConfig
	logger *log.Logger

	mu    sync.Mutex
	state State
}

// NewFlow creates a flow, filling in defaults for unset collaborators.
func NewFlow(cfg FlowConfig) *Flow {
	if cfg.Listen == nil {
		cfg.Listen = server.Listen
	}
	if cfg.Opener == nil {
		cfg.Opener = shared.OpenBrowser
	}
	if cfg.Input == nil {
		cfg.Input = strings.NewReader("")
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Port == 0 {
		cfg.Port = shared.DefaultPort
	}
	return &Flow{cfg: cfg, logger: shared.Component(cfg.Logger, "auth")}
}

// State reports the step the flow last entered.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) enter(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	f.logger.Debug("auth state", "state", s)
}

// Authenticate returns a usable token, reusing or refreshing the cached one when possible and running
// the interactive authorization otherwise.
func (f *Flow) Authenticate(ctx context.Context) (*models.AccessToken, error) {
	if token, ok := f.fromCache(ctx); ok {
		f.enter(StatePersisted)
		return token, nil
	}
	return f.Login(ctx)
}

// fromCache loads the cached token and refreshes it when expired.
func (f *Flow) fromCache(ctx context.Context) (*models.AccessToken, bool) {
	cached, ok := f.cfg.Store.Load()
	if !ok {
		f.logger.Info("no cached token found, need to authenticate")
		return nil, false
	}

	if cached.Valid(f.cfg.Now()) {
		return cached, true
	}

	var (
		refreshed *models.AccessToken
		err       error
	)
	switch {
	case f.cfg.Renew != nil:
		f.logger.Info("cached token is expired, renewing from stored credential")
		refreshed, err = f.cfg.Renew(ctx)
	case cached.RefreshToken != "":
		f.logger.Info("cached token is expired, refreshing")
		refreshed, err = f.refresh(ctx, cached)
	default:
		f.logger.Info("cached token is expired and has no refresh token")
		return nil, false
	}
	if err != nil {
		f.logger.Error("token refresh failed, need to re-authenticate", "error", err)
		return nil, false
	}

	stored, err := f.persist(ctx, refreshed)
	if err != nil {
		f.logger.Error("failed to save refreshed token", "error", err)
		return nil, false
	}
	return stored, true
}

func (f *Flow) refresh(ctx context.Context, cached *models.AccessToken) (*models.AccessToken, error) {
	// An empty access token forces the token source to hit the token endpoint.
	src := f.cfg.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: cached.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return models.NewAccessToken(tok, cached.Scopes), nil
}

// Login runs the interactive authorization regardless of the cache.
func (f *Flow) Login(ctx context.Context) (*models.AccessToken, error) {
	f.enter(StateNeedAuth)

	state := shared.GenerateState()
	authURL := f.cfg.OAuth.AuthCodeURL(state)

	out := f.cfg.Output
	fmt.Fprintln(out, "\nOpening authorization URL in your browser...")
	fmt.Fprintf(out, "%s\n\n", authURL)

	if f.cfg.OpenBrowser {
		if err := f.cfg.Opener(authURL); err != nil {
			f.logger.Warn("failed to open browser", "error", err)
			fmt.Fprintf(out, "Failed to open browser automatically: %v\n", err)
			fmt.Fprintln(out, "Please manually open the URL above in your browser.")
		}
	}

	code, err := f.awaitCallback(ctx, state)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			f.enter(StateFailed)
			return nil, ctxErr
		}
		f.enter(StateManualFallback)
		fmt.Fprintf(out, "Callback failed: %v. Falling back to manual input.\n", err)
		code, err = f.promptForCode(authURL, state)
		if err != nil {
			f.enter(StateFailed)
			return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
		}
	}

	tok, err := f.cfg.OAuth.Exchange(ctx, code)
	if err != nil {
		f.enter(StateFailed)
		return nil, fmt.Errorf("%w: token request failed: %v", shared.ErrAuthFailed, err)
	}
	token := models.NewAccessToken(tok, f.cfg.OAuth.Scopes)
	f.enter(StateTokenExchanged)

	stored, err := f.persist(ctx, token)
	if err != nil {
		f.enter(StateFailed)
		return nil, err
	}

	f.enter(StatePersisted)
	fmt.Fprintln(out, "Successfully authenticated with Spotify!")
	return stored, nil
}

func (f *Flow) awaitCallback(ctx context.Context, state string) (string, error) {
	f.enter(StateAwaitingCallback)
	fmt.Fprintf(f.cfg.Output, "Waiting for authorization callback on http://127.0.0.1:%d...\n\n", f.cfg.Port)

	waitCtx := ctx
	if f.cfg.CallbackTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, f.cfg.CallbackTimeout)
		defer cancel()
	}

	redirect, err := f.cfg.Listen(waitCtx, f.cfg.Port, f.logger)
	if err != nil {
		return "", err
	}
	return server.ParseAuthorizationCode(redirect, state)
}

func (f *Flow) promptForCode(authURL, state string) (string, error) {
	out := f.cfg.Output
	fmt.Fprintln(out, "Please open this URL in your browser:")
	fmt.Fprintf(out, "%s\n\n", authURL)
	fmt.Fprint(out, "Enter the URL you were redirected to: ")

	line, err := bufio.NewReader(f.cfg.Input).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return server.ParseAuthorizationCode(line, state)
}

// persist hands the refresh secret to the seeder and writes the token cache.
//
// The cache and the returned token keep the refresh secret only when there is no seeder or seeding failed.
func (f *Flow) persist(ctx context.Context, token *models.AccessToken) (*models.AccessToken, error) {
	cached := token
	if f.cfg.Seeder != nil && token.RefreshToken != "" {
		if err := f.cfg.Seeder.Seed(ctx, token.RefreshToken, token.Scopes); err != nil {
			f.logger.Warn("failed to store refresh credential", "error", err)
		} else {
			cached = token.WithoutRefresh()
		}
	}
	if err := f.cfg.Store.Save(cached); err != nil {
		return nil, err
	}
	return cached, nil
}
