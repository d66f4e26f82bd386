package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	commandBuffer      = 64
	defaultMintTimeout = 30 * time.Second
)

// CredentialStore persists the single long-lived credential.
type CredentialStore interface {
	Get(ctx context.Context) (*models.Credential, error)
	Save(ctx context.Context, credential *models.Credential) error
	RecordMint(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context) error
}

// Minter exchanges a long-lived secret for a new access token.
//
// The returned token carries the refresh secret to keep, which differs from secret when the provider rotates it.
type Minter interface {
	Mint(ctx context.Context, secret string, scopes []string) (*models.AccessToken, error)
}

// OAuthMinter mints tokens with the OAuth2 refresh-token grant.
type OAuthMinter struct {
	config *oauth2.Config
}

func NewOAuthMinter(config *oauth2.Config) *OAuthMinter {
	return &OAuthMinter{config: config}
}

func (m *OAuthMinter) Mint(ctx context.Context, secret string, scopes []string) (*models.AccessToken, error) {
	tok, err := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: secret}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token grant failed: %w", err)
	}
	return models.NewAccessToken(tok, scopes), nil
}

// SeedCredential stores a new long-lived secret, replacing any previous one.
type SeedCredential struct {
	RefreshToken string
	Scopes       []string
	Reply        chan<- error
}

func (SeedCredential) workerCommand() {}

// ForgetCredential deletes the stored secret.
type ForgetCredential struct {
	Reply chan<- error
}

func (ForgetCredential) workerCommand() {}

// CredentialWorker is the only owner of the long-lived credential. It serves [WorkerCommand]s on its own
// goroutine and answers token requests with access tokens stripped of the refresh secret.
type CredentialWorker struct {
	store       CredentialStore
	minter      Minter
	commands    chan WorkerCommand
	done        chan struct{}
	mintTimeout time.Duration
	logger      *log.Logger
}

// NewCredentialWorker creates a worker. Call [CredentialWorker.Run] or [CredentialWorker.Start] to serve commands.
func NewCredentialWorker(store CredentialStore, minter Minter, logger *log.Logger) *CredentialWorker {
	return &CredentialWorker{
		store:       store,
		minter:      minter,
		commands:    make(chan WorkerCommand, commandBuffer),
		done:        make(chan struct{}),
		mintTimeout: defaultMintTimeout,
		logger:      shared.Component(logger, "worker"),
	}
}

// Commands is the sending half handed to the [RefreshCoordinator].
func (w *CredentialWorker) Commands() chan<- WorkerCommand {
	return w.commands
}

// Done is closed once Run returns.
func (w *CredentialWorker) Done() <-chan struct{} {
	return w.done
}

// Start runs the worker on a new goroutine.
func (w *CredentialWorker) Start(ctx context.Context) {
	go w.Run(ctx)
}

// Run serves commands until ctx is cancelled.
func (w *CredentialWorker) Run(ctx context.Context) {
	defer close(w.done)
	w.logger.Debug("credential worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("credential worker stopped")
			return
		case cmd := <-w.commands:
			w.handle(ctx, cmd)
		}
	}
}

func (w *CredentialWorker) handle(ctx context.Context, cmd WorkerCommand) {
	switch c := cmd.(type) {
	case RequestToken:
		token, err := w.mint(ctx)
		reply(w.logger, c.Reply, TokenReply{Token: token, Err: err})
	case SeedCredential:
		reply(w.logger, c.Reply, w.seed(ctx, c.RefreshToken, c.Scopes))
	case ForgetCredential:
		reply(w.logger, c.Reply, w.store.Delete(ctx))
	default:
		w.logger.Warnf("unknown worker command %T", cmd)
	}
}

func (w *CredentialWorker) mint(ctx context.Context) (*models.AccessToken, error) {
	cred, err := w.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.mintTimeout)
	defer cancel()

	token, err := w.minter.Mint(ctx, cred.Secret(), cred.Scopes())
	if err != nil {
		return nil, err
	}

	if token.RefreshToken != "" && token.RefreshToken != cred.Secret() {
		w.logger.Info("refresh credential rotated")
		if err := w.store.Save(ctx, cred.Rotate(token.RefreshToken)); err != nil {
			w.logger.Error("failed to store rotated credential", "error", err)
		}
	}

	if err := w.store.RecordMint(ctx, cred.ID(), time.Now().UTC()); err != nil {
		w.logger.Warn("failed to record token mint", "error", err)
	}

	return token.WithoutRefresh(), nil
}

func (w *CredentialWorker) seed(ctx context.Context, secret string, scopes []string) error {
	cred := models.NewCredential(models.CredentialRefreshToken, secret, scopes)
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
	}
	return w.store.Save(ctx, cred)
}

func reply[T any](logger *log.Logger, ch chan<- T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
		logger.Warn("dropping reply: waiter is gone or reply channel is unbuffered")
	}
}

// Seed implements [auth.CredentialSeeder] by handing the secret to the worker goroutine.
func (w *CredentialWorker) Seed(ctx context.Context, refreshToken string, scopes []string) error {
	return w.call(ctx, func(reply chan<- error) WorkerCommand {
		return SeedCredential{RefreshToken: refreshToken, Scopes: scopes, Reply: reply}
	})
}

// Forget deletes the stored credential.
func (w *CredentialWorker) Forget(ctx context.Context) error {
	return w.call(ctx, func(reply chan<- error) WorkerCommand {
		return ForgetCredential{Reply: reply}
	})
}

func (w *CredentialWorker) call(ctx context.Context, build func(chan<- error) WorkerCommand) error {
	replies := make(chan error, 1)

	select {
	case w.commands <- build(replies):
	case <-w.done:
		return shared.ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-replies:
		return err
	case <-w.done:
		select {
		case err := <-replies:
			return err
		default:
			return shared.ErrWorkerStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsMissingCredential reports whether err means no credential has been stored yet.
func IsMissingCredential(err error) bool {
	return errors.Is(err, shared.ErrNoRefreshToken)
}
