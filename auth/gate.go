// Package auth implements the access gate protecting the execution endpoints.
package auth

import (
	"crypto/subtle"
	"errors"
)

var (
	// ErrAuthenticationMissing is returned when a secret is configured but no token was presented
	ErrAuthenticationMissing = errors.New("authentication required")
	// ErrAuthenticationInvalid is returned when the presented token does not match the secret
	ErrAuthenticationInvalid = errors.New("invalid token")
)

// Gate compares caller tokens against a static shared secret. A gate with an
// empty secret authorizes every call.
type Gate struct {
	secret []byte
}

// NewGate creates a gate for secret
func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured
func (g *Gate) Enabled() bool {
	return len(g.secret) > 0
}

// Authorize decides whether a call presenting token may proceed. present
// distinguishes an absent token from an empty one.
func (g *Gate) Authorize(token string, present bool) error {
	if !g.Enabled() {
		return nil
	}
	if !present {
		return ErrAuthenticationMissing
	}
	if subtle.ConstantTimeCompare([]byte(token), g.secret) != 1 {
		return ErrAuthenticationInvalid
	}
	return nil
}

// Detail returns the client-facing message for an authorization error
func Detail(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationMissing):
		return "Authentication required"
	case errors.Is(err, ErrAuthenticationInvalid):
		return "Invalid token"
	default:
		return "Unauthorized"
	}
}
