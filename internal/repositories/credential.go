package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/models"
	"github.com/desertthunder/spx/internal/shared"
)

// CredentialRepository persists the single long-lived [models.Credential] in the credentials table.
//
// The table holds at most one row (slot 1). Saving a credential with a new ID replaces the row and
// resets its mint bookkeeping; saving one with the stored ID is a rotation and keeps it.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Save upserts the credential, assigning an ID when it has none.
func (r *CredentialRepository) Save(ctx context.Context, cred *models.Credential) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if cred.ID() == "" {
		cred.SetID(shared.GenerateID())
	}

	query := `
		INSERT INTO credentials (slot, id, kind, secret, scopes, created_at, updated_at, mint_count)
		VALUES (1, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(slot) DO UPDATE SET
			mint_count = CASE WHEN credentials.id = excluded.id THEN credentials.mint_count ELSE 0 END,
			last_minted_at = CASE WHEN credentials.id = excluded.id THEN credentials.last_minted_at ELSE NULL END,
			created_at = CASE WHEN credentials.id = excluded.id THEN credentials.created_at ELSE excluded.created_at END,
			id = excluded.id,
			kind = excluded.kind,
			secret = excluded.secret,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		cred.ID(), string(cred.Kind()), cred.Secret(), cred.ScopeString(), cred.CreatedAt(), cred.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Get returns the stored credential, or [shared.ErrNoRefreshToken] when none has been saved.
func (r *CredentialRepository) Get(ctx context.Context) (*models.Credential, error) {
	query := `
		SELECT id, kind, secret, scopes, created_at, updated_at, last_minted_at, mint_count
		FROM credentials
		WHERE slot = 1
	`

	var (
		id         string
		kind       string
		secret     string
		scopes     string
		createdAt  time.Time
		updatedAt  time.Time
		lastMinted sql.NullTime
		mintCount  int
	)

	err := r.db.QueryRowContext(ctx, query).Scan(&id, &kind, &secret, &scopes, &createdAt, &updatedAt, &lastMinted, &mintCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNoRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	var minted *time.Time
	if lastMinted.Valid {
		minted = &lastMinted.Time
	}

	return models.RestoreCredential(id, models.CredentialKind(kind), secret, scopes, createdAt, updatedAt, minted, mintCount), nil
}

// RecordMint bumps the mint counter of credential id.
func (r *CredentialRepository) RecordMint(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE credentials SET mint_count = mint_count + 1, last_minted_at = ? WHERE slot = 1 AND id = ?", at, id)
	if err != nil {
		return fmt.Errorf("failed to record mint: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("credential not found: %s", id)
	}

	return nil
}

// Delete removes the stored credential. Deleting when nothing is stored is not an error.
func (r *CredentialRepository) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM credentials WHERE slot = 1"); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Exists reports whether a credential is stored, without reading the secret.
func (r *CredentialRepository) Exists(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM credentials WHERE slot = 1)").Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check credential: %w", err)
	}
	return exists, nil
}
