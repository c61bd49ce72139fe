// Package auth authenticates Flight calls with bearer tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidAuthHeader is returned when the authorization header is not a bearer token.
	ErrInvalidAuthHeader = errors.New("authorization header must use Bearer scheme")

	// ErrTokenIsEmpty is returned for a missing or blank token.
	ErrTokenIsEmpty = errors.New("authorization token is empty")

	// ErrUnknownToken is returned by StaticTokens for tokens it does not hold.
	ErrUnknownToken = errors.New("unknown token")
)

// Authenticator validates bearer tokens and returns the caller identity.
// Implementations must be goroutine-safe.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (identity string, err error)
}

// Func adapts a validation function to Authenticator. A cancelled
// context fails before the function is called.
type Func func(token string) (identity string, err error)

func (f Func) Authenticate(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f(token)
}

// NoAuth returns an Authenticator accepting every call as "anonymous".
func NoAuth() Authenticator {
	return Func(func(string) (string, error) { return "anonymous", nil })
}

type staticTokens struct {
	tokens map[string]string
}

// StaticTokens returns an Authenticator over a fixed token -> identity map,
// as read from the server configuration.
func StaticTokens(tokens map[string]string) Authenticator {
	m := make(map[string]string, len(tokens))
	for token, identity := range tokens {
		m[token] = identity
	}
	return &staticTokens{tokens: m}
}

func (s *staticTokens) Authenticate(_ context.Context, token string) (string, error) {
	for known, identity := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return identity, nil
		}
	}
	return "", ErrUnknownToken
}

type contextKey int

const identityKey contextKey = iota

// WithIdentity returns ctx carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the authenticated identity, or "" for an
// unauthenticated call.
func IdentityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey).(string)
	return identity
}

const bearerPrefix = "Bearer "

// TokenFromAuthorizationHeader extracts the token of "Bearer <token>".
func TokenFromAuthorizationHeader(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", ErrTokenIsEmpty
	}
	return token, nil
}

// ValidateToken authenticates token and returns ctx carrying the identity.
// Failures are gRPC Unauthenticated errors.
func ValidateToken(ctx context.Context, token string, authenticator Authenticator) (context.Context, error) {
	if token == "" {
		return ctx, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	identity, err := authenticator.Authenticate(ctx, token)
	if err != nil {
		return ctx, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}
	return WithIdentity(ctx, identity), nil
}
