// Package auth turns bearer tokens into actors. Tokens are HS256 JWTs; the
// demo directory can mint them from a username and password.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dharsanguruparan/jansevak/internal/model"
)

// ErrInvalidToken covers missing, malformed, expired or badly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Authenticator resolves a bearer token to the actor it represents.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Actor, error)
}

// Claims is the JWT body issued for an actor.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuthenticator issues and verifies HS256 tokens with a shared secret.
type JWTAuthenticator struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	now     func() time.Time
	revoked Revocations
}

// Option customises a JWTAuthenticator.
type Option func(*JWTAuthenticator)

// WithRevocations enables logout: revoked token ids are rejected until the
// token would have expired anyway.
func WithRevocations(r Revocations) Option {
	return func(a *JWTAuthenticator) { a.revoked = r }
}

// NewJWTAuthenticator builds an authenticator. ttl bounds issued tokens.
func NewJWTAuthenticator(secret []byte, issuer string, ttl time.Duration, opts ...Option) *JWTAuthenticator {
	a := &JWTAuthenticator{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Issue signs a token for actor.
func (a *JWTAuthenticator) Issue(actor model.Actor) (string, error) {
	if actor.ID == "" {
		return "", errors.New("issue token: empty actor id")
	}
	now := a.now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   actor.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies the signature, expiry, issuer and revocation state
// of token.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (model.Actor, error) {
	claims, err := a.parse(token)
	if err != nil {
		return model.Actor{}, err
	}
	if a.revoked != nil && claims.ID != "" {
		revoked, err := a.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return model.Actor{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return model.Actor{}, fmt.Errorf("%w: revoked", ErrInvalidToken)
		}
	}
	return model.Actor{ID: claims.Subject, Role: model.ParseRole(claims.Role)}, nil
}

// Revoke logs token out. Only valid tokens can be revoked; the id is kept
// until the token's own expiry.
func (a *JWTAuthenticator) Revoke(ctx context.Context, token string) error {
	if a.revoked == nil {
		return ErrRevocationDisabled
	}
	claims, err := a.parse(token)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return fmt.Errorf("%w: no token id", ErrInvalidToken)
	}
	return a.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (a *JWTAuthenticator) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
