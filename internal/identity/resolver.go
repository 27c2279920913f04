// Package identity supplies caller identities and the user directory. The
// core treats user ids as opaque strings; how a credential becomes an id is
// this package's concern and nobody else's.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devnotes/devnotes/internal/errs"
)

// Resolver turns an opaque credential into a stable user id. The boundary
// layer calls this once per request and passes the id into the core.
type Resolver interface {
	ResolveCaller(ctx context.Context, credential string) (string, error)
}

// TokenResolver resolves HMAC-signed JWTs whose subject is the user id.
type TokenResolver struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenResolver builds a resolver from a signing secret. ttl bounds tokens
// issued by Issue.
func NewTokenResolver(secret string, ttl time.Duration) (*TokenResolver, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("identity: token secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenResolver{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for userID, valid for the configured ttl.
func (r *TokenResolver) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("identity: user id is required")
	}
	now := r.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(r.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// ResolveCaller validates the token and returns its subject. Invalid, expired
// or foreign-keyed tokens all resolve to forbidden.
func (r *TokenResolver) ResolveCaller(_ context.Context, credential string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(credential, claims,
		func(*jwt.Token) (any, error) { return r.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return r.now() }),
	)
	if err != nil {
		return "", errs.Wrap(errs.Forbidden, "invalid credential", err)
	}
	if claims.Subject == "" {
		return "", errs.New(errs.Forbidden, "credential carries no subject")
	}
	return claims.Subject, nil
}
