package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
)

// tokenRecord is the on-disk form of [models.AccessToken].
type tokenRecord struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	Scopes       []string  `json:"scopes"`
	ExpiresAt    time.Time `json:"expires_at"`
	ExpiresIn    int64     `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}

// TokenStore reads and writes a single cached token file.
type TokenStore struct {
	path   string
	logger *log.Logger
}

// NewTokenStore creates a store backed by the file at path.
func NewTokenStore(path string, logger *log.Logger) *TokenStore {
	return &TokenStore{path: path, logger: shared.Component(logger, "token_store")}
}

// Path returns the backing file path.
func (s *TokenStore) Path() string {
	return s.path
}

// Load reads the cached token. A missing or unparseable file is reported as a miss (false), never an error.
func (s *TokenStore) Load() (*models.AccessToken, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("no cached token", "path", s.path)
		} else {
			s.logger.Warn("failed to read token cache", "path", s.path, "error", err)
		}
		return nil, false
	}

	var record tokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn("failed to parse token cache", "path", s.path, "error", err)
		return nil, false
	}

	if record.AccessToken == "" {
		s.logger.Warn("token cache has no access token", "path", s.path)
		return nil, false
	}

	s.logger.Info("loaded cached authentication token")
	return &models.AccessToken{
		Secret:       record.AccessToken,
		TokenType:    record.TokenType,
		Scopes:       record.Scopes,
		Expiry:       record.ExpiresAt,
		RefreshToken: record.RefreshToken,
	}, true
}

// Save overwrites the cache with token. The file is written with owner-only permissions.
func (s *TokenStore) Save(token *models.AccessToken) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", shared.ErrInvalidInput)
	}

	record := tokenRecord{
		AccessToken:  token.Secret,
		TokenType:    token.TokenType,
		Scopes:       token.Scopes,
		ExpiresAt:    token.Expiry.UTC(),
		ExpiresIn:    int64(time.Until(token.Expiry).Seconds()),
		RefreshToken: token.RefreshToken,
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*.json")
	if err != nil {
		return fmt.Errorf("failed to create token cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token cache permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace token cache: %w", err)
	}

	s.logger.Debug("token saved", "path", s.path)
	return nil
}

// Clear removes the cached token. A missing file is not an error.
func (s *TokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}
	return nil
}
