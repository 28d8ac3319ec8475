// Bookswap - Used Book Marketplace and Community Chat
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookswap

package emulator

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/bookswap/internal/cache"
	"github.com/tomtom215/bookswap/internal/logging"
	"github.com/tomtom215/bookswap/internal/models"
)

// ErrTokenRevoked is returned for tokens presented after sign-out.
var ErrTokenRevoked = errors.New("token has been revoked")

// Claims are the access token claims. Subject is the user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret  []byte
	timeout time.Duration
	revoked *cache.Cache[string, struct{}]
}

// NewTokens creates a token manager. An empty secret is replaced by a
// random one, so tokens do not survive a restart.
func NewTokens(secret string, timeout time.Duration) (*Tokens, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("session timeout must be positive, got %s", timeout)
	}
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		logging.Warn().Msg("No JWT secret configured, using a random secret for this run")
	}
	return &Tokens{
		secret:  []byte(secret),
		timeout: timeout,
		revoked: cache.NewWithSweep[string, struct{}](timeout, time.Minute),
	}, nil
}

// Timeout returns the token lifetime.
func (t *Tokens) Timeout() time.Duration { return t.timeout }

// Issue signs a token for user and returns it with its expiry.
func (t *Tokens) Issue(user models.User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(t.timeout)
	claims := &Claims{
		Email: user.Email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm, expiry and revocation.
func (t *Tokens) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	if _, gone := t.revoked.Get(claims.ID); gone {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// UserID verifies token and returns its subject.
func (t *Tokens) UserID(token string) (string, error) {
	claims, err := t.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Revoke rejects the token until it would have expired anyway.
func (t *Tokens) Revoke(claims *Claims) {
	ttl := t.timeout
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl > 0 {
		t.revoked.SetWithTTL(claims.ID, struct{}{}, ttl)
	}
}

// Close stops the revocation list cleanup.
func (t *Tokens) Close() {
	t.revoked.Close()
}
