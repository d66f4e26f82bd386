package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
)

const DefaultRefreshTimeout = 30 * time.Second

// TokenReply is the worker's answer to a [RequestToken]. Exactly one of Token and Err is set.
type TokenReply struct {
	Token *models.AccessToken
	Err   error
}

// WorkerCommand is a message sent to the [CredentialWorker].
type WorkerCommand interface {
	workerCommand()
}

// RequestToken asks the worker to mint a new access token.
//
// Reply must be buffered so the worker never blocks on a waiter that gave up.
type RequestToken struct {
	Reply chan<- TokenReply
}

func (RequestToken) workerCommand() {}

// RefreshCoordinator holds the foreground access token and renews it through the credential worker.
//
// The token is replaced as a whole pointer under a read/write lock, so readers always observe a
// single issuance. Concurrent refreshes are each total overwrites; the last one wins.
type RefreshCoordinator struct {
	mu    sync.RWMutex
	token *models.AccessToken

	commands  chan<- WorkerCommand
	timeout   time.Duration
	onRefresh func(*models.AccessToken)
	now       func() time.Time
	logger    *log.Logger
}

// NewRefreshCoordinator installs initial and wires the coordinator to the worker command channel.
//
// A timeout of zero uses [DefaultRefreshTimeout].
func NewRefreshCoordinator(initial *models.AccessToken, commands chan<- WorkerCommand, timeout time.Duration, logger *log.Logger) *RefreshCoordinator {
	if commands == nil {
		panic("services: RefreshCoordinator requires a worker command channel")
	}
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &RefreshCoordinator{
		token:    initial,
		commands: commands,
		timeout:  timeout,
		now:      time.Now,
		logger:   shared.Component(logger, "refresh"),
	}
}

// OnRefresh registers fn to be called with every token minted by [RefreshCoordinator.Refresh], e.g. to persist it.
func (c *RefreshCoordinator) OnRefresh(fn func(*models.AccessToken)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefresh = fn
}

// Token returns the currently installed token.
func (c *RefreshCoordinator) Token() *models.AccessToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Install replaces the current token with one obtained elsewhere. The refresh hook is not called.
func (c *RefreshCoordinator) Install(token *models.AccessToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *RefreshCoordinator) installRefreshed(token *models.AccessToken) {
	c.mu.Lock()
	c.token = token
	hook := c.onRefresh
	c.mu.Unlock()

	if hook != nil {
		hook(token)
	}
}

// CheckAndRequestRefresh refreshes only when the token is within [models.RefreshMargin] of expiry.
// It reports whether a refresh was performed.
func (c *RefreshCoordinator) CheckAndRequestRefresh(ctx context.Context) (bool, error) {
	current := c.Token()
	if !current.NeedsRefresh(c.now()) {
		return false, nil
	}

	if current != nil {
		c.logger.Infof("Token will expire in %s, renewing", current.ExpiresIn(c.now()).Round(time.Second))
	}
	if err := c.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Refresh asks the worker for a new token and installs it. On failure the current token is left untouched.
func (c *RefreshCoordinator) Refresh(ctx context.Context) error {
	token, err := c.Mint(ctx)
	if err != nil {
		return err
	}
	c.installRefreshed(token)
	c.logger.Debug("token refreshed", "expires_in", token.ExpiresIn(c.now()).Round(time.Second))
	return nil
}

// Mint asks the worker for a new token without installing it or calling the refresh hook.
func (c *RefreshCoordinator) Mint(ctx context.Context) (*models.AccessToken, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply := make(chan TokenReply, 1)

	select {
	case c.commands <- RequestToken{Reply: reply}:
	case <-ctx.Done():
		return nil, c.failure(ctx.Err())
	}

	select {
	case r := <-reply:
		if r.Err != nil {
			return nil, c.failure(r.Err)
		}
		if r.Token == nil {
			return nil, c.failure(errors.New("worker returned no token"))
		}
		return r.Token, nil
	case <-ctx.Done():
		return nil, c.failure(ctx.Err())
	}
}

func (c *RefreshCoordinator) failure(cause error) error {
	c.logger.Error("Failed to update token", "error", cause)
	if errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %v", shared.ErrRefreshFailed, shared.ErrTimeout, cause)
	}
	return fmt.Errorf("%w: %w", shared.ErrRefreshFailed, cause)
}
