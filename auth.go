package restport

import (
	"context"

	"github.com/hugr-lab/restport/auth"
)

// Authenticator validates bearer tokens and returns the caller identity.
type Authenticator = auth.Authenticator

// TokenFunc adapts a function to Authenticator:
//
//	config.Auth = restport.TokenFunc(func(token string) (string, error) {
//	    if token != expected {
//	        return "", auth.ErrUnknownToken
//	    }
//	    return "analyst", nil
//	})
type TokenFunc = auth.Func

// StaticTokens creates an Authenticator over a token -> identity map.
func StaticTokens(tokens map[string]string) Authenticator {
	return auth.StaticTokens(tokens)
}

// IdentityFromContext returns the authenticated identity of a call, or "".
func IdentityFromContext(ctx context.Context) string {
	return auth.IdentityFromContext(ctx)
}
