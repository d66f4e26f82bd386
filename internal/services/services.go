package services

import (
	"context"

	"github.com/desertthunder/spx/internal/models"
)

// TokenProvider exposes the current foreground access token.
type TokenProvider interface {
	// Token returns the installed token. Callers must not modify it.
	Token() *models.AccessToken
}

// TokenRefresher replaces the foreground token with a freshly minted one.
type TokenRefresher interface {
	// Refresh blocks until a new token is installed or the refresh fails.
	Refresh(ctx context.Context) error
}

// TokenSource is both a [TokenProvider] and a [TokenRefresher], as implemented by [RefreshCoordinator].
type TokenSource interface {
	TokenProvider
	TokenRefresher
}

// StaticToken is a [TokenProvider] that always returns the same token.
type StaticToken struct {
	token *models.AccessToken
}

func NewStaticToken(token *models.AccessToken) StaticToken {
	return StaticToken{token: token}
}

func (s StaticToken) Token() *models.AccessToken {
	return s.token
}
