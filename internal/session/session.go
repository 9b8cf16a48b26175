// Fieldsync - Offline-Durable Field Survey Submission
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package session supplies the credential the remote client sends with every
// request. A Provider is passed to the client explicitly; nothing here is
// package-level state.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSession means no credential has been configured.
	ErrNoSession = errors.New("no session token configured")

	// ErrSessionExpired means the configured JWT is past its exp claim.
	ErrSessionExpired = errors.New("session token expired")
)

// Provider returns the bearer token for the next remote request.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

// Token calls f.
func (f ProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticProvider holds one token that can be replaced at runtime, for example
// after the field worker signs in again.
//
// JWT tokens have their exp claim checked locally without verifying the
// signature; the server does the verification. Opaque tokens pass through.
type StaticProvider struct {
	mu     sync.RWMutex
	token  string
	expiry time.Time
	now    func() time.Time
}

// NewStaticProvider returns a provider for token, which may be empty.
func NewStaticProvider(token string) *StaticProvider {
	p := &StaticProvider{now: time.Now}
	p.Set(token)
	return p
}

// Set replaces the token.
func (p *StaticProvider) Set(token string) {
	token = strings.TrimSpace(token)
	expiry := jwtExpiry(token)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	p.expiry = expiry
}

// Token implements Provider.
func (p *StaticProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.token == "" {
		return "", ErrNoSession
	}
	if !p.expiry.IsZero() && !p.now().Before(p.expiry) {
		return "", ErrSessionExpired
	}
	return p.token, nil
}

// Expiry returns the exp claim of a JWT token, or the zero time.
func (p *StaticProvider) Expiry() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.expiry
}

// jwtExpiry returns the zero time for opaque tokens and tokens without exp.
func jwtExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

var _ Provider = (*StaticProvider)(nil)
