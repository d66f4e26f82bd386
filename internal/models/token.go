package models

import (
	"slices"
	"time"

	"golang.org/x/oauth2"
)

// RefreshMargin is how close to expiry a token may get before it is renewed.
const RefreshMargin = 5 * time.Minute

// AccessToken is a short-lived bearer credential plus its expiry.
//
// Values are immutable once built: holders replace the whole pointer, never individual fields,
// so the secret/expiry pairing observed by a reader always comes from a single issuance.
type AccessToken struct {
	Secret       string
	TokenType    string
	Scopes       []string
	Expiry       time.Time
	RefreshToken string
}

// NewAccessToken builds a token from an [oauth2.Token], taking scopes from the "scope" extra field when the
// provider returned one and falling back to requested otherwise.
func NewAccessToken(tok *oauth2.Token, requested []string) *AccessToken {
	if tok == nil {
		return nil
	}

	scopes := requested
	if raw, ok := tok.Extra("scope").(string); ok && raw != "" {
		scopes = splitScopes(raw)
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &AccessToken{
		Secret:       tok.AccessToken,
		TokenType:    tokenType,
		Scopes:       slices.Clone(scopes),
		Expiry:       tok.Expiry,
		RefreshToken: tok.RefreshToken,
	}
}

// OAuth2 converts t back into an [oauth2.Token].
func (t *AccessToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.Secret,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// ExpiresIn is the time remaining before expiry, negative when already expired.
func (t *AccessToken) ExpiresIn(now time.Time) time.Duration {
	return t.Expiry.Sub(now)
}

// NeedsRefresh reports whether t is nil, empty, or within [RefreshMargin] of expiry.
func (t *AccessToken) NeedsRefresh(now time.Time) bool {
	if t == nil || t.Secret == "" {
		return true
	}
	return t.ExpiresIn(now) <= RefreshMargin
}

// Valid is the negation of [AccessToken.NeedsRefresh].
func (t *AccessToken) Valid(now time.Time) bool {
	return !t.NeedsRefresh(now)
}

// WithoutRefresh returns a copy of t with the refresh secret cleared.
func (t *AccessToken) WithoutRefresh() *AccessToken {
	next := *t
	next.Scopes = slices.Clone(t.Scopes)
	next.RefreshToken = ""
	return &next
}

func splitScopes(raw string) []string {
	var out []string
	start := -1
	for i, r := range raw {
		if r == ' ' || r == ',' {
			if start >= 0 {
				out = append(out, raw[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, raw[start:])
	}
	return out
}
