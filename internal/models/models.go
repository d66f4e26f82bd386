// package models defines the data model for the Spotify access layer
package models

import (
	"fmt"
	"strings"
	"time"
)

// Model defines the base interface for persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// CredentialKind names what a [Credential] secret can be exchanged for.
type CredentialKind string

const (
	CredentialRefreshToken CredentialKind = "refresh_token"
)

// Credential is the durable secret used to mint access tokens without user interaction.
//
// Only the credential worker reads Secret.
type Credential struct {
	id        string
	kind      CredentialKind
	secret    string
	scopes    []string
	createdAt time.Time
	updatedAt time.Time
	lastMint  *time.Time
	mintCount int
}

var _ Model = (*Credential)(nil)

// NewCredential builds a credential with fresh timestamps. The ID is assigned on persistence.
func NewCredential(kind CredentialKind, secret string, scopes []string) *Credential {
	now := time.Now().UTC()
	return &Credential{
		kind:      kind,
		secret:    secret,
		scopes:    append([]string(nil), scopes...),
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreCredential rebuilds a credential from stored columns.
func RestoreCredential(id string, kind CredentialKind, secret, scopes string, createdAt, updatedAt time.Time, lastMint *time.Time, mintCount int) *Credential {
	var scopeList []string
	if scopes != "" {
		scopeList = strings.Fields(scopes)
	}
	return &Credential{
		id:        id,
		kind:      kind,
		secret:    secret,
		scopes:    scopeList,
		createdAt: createdAt,
		updatedAt: updatedAt,
		lastMint:  lastMint,
		mintCount: mintCount,
	}
}

func (c *Credential) ID() string { return c.id }
func (c *Credential) SetID(id string) { c.id = id }
func (c *Credential) Kind() CredentialKind { return c.kind }
func (c *Credential) Secret() string { return c.secret }
func (c *Credential) Scopes() []string { return append([]string(nil), c.scopes...) }
func (c *Credential) ScopeString() string { return strings.Join(c.scopes, " ") }
func (c *Credential) CreatedAt() time.Time { return c.createdAt }
func (c *Credential) UpdatedAt() time.Time { return c.updatedAt }
func (c *Credential) LastMinted() *time.Time { return c.lastMint }
func (c *Credential) MintCount() int { return c.mintCount }

// Validate checks that the credential carries a usable secret.
func (c *Credential) Validate() error {
	if c.kind == "" {
		return fmt.Errorf("credential kind is required")
	}
	if strings.TrimSpace(c.secret) == "" {
		return fmt.Errorf("credential secret is required")
	}
	return nil
}

// Rotate returns a copy of c holding a new secret, as issued by providers that rotate refresh tokens.
func (c *Credential) Rotate(secret string) *Credential {
	next := *c
	next.secret = secret
	next.scopes = c.Scopes()
	next.updatedAt = time.Now().UTC()
	return &next
}

// String never includes the secret.
func (c *Credential) String() string {
	return fmt.Sprintf("Credential{id=%s kind=%s scopes=%d mints=%d}", c.id, c.kind, len(c.scopes), c.mintCount)
}
