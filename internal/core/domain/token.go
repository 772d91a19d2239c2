package domain

import (
	"fmt"
	"time"
)

// Token is a signed session token. It is never persisted.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Principal is the identity asserted by a verified token.
type Principal struct {
	UserID   string
	Username string
	Roles    []string
}

// HasAnyRole reports whether the principal holds at least one of names.
func (p Principal) HasAnyRole(names ...string) bool {
	for _, have := range p.Roles {
		for _, want := range names {
			if have == want {
				return true
			}
		}
	}
	return false
}

// TokenErrorKind tags why token generation failed.
type TokenErrorKind int

const (
	TokenUserNotFound TokenErrorKind = iota + 1
	TokenStoreFailure
	TokenSigningFailure
	TokenConfigInvalid
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenUserNotFound:
		return "user_not_found"
	case TokenStoreFailure:
		return "store_failure"
	case TokenSigningFailure:
		return "signing_failure"
	case TokenConfigInvalid:
		return "config_invalid"
	default:
		return "unknown"
	}
}

// TokenError keeps the underlying cause so callers can tell failures apart.
type TokenError struct {
	Kind     TokenErrorKind
	Username string
	Err      error
}

func (e *TokenError) Error() string {
	if e.Username != "" {
		return fmt.Sprintf("token generation failed (%s) for %q: %v", e.Kind, e.Username, e.Err)
	}
	return fmt.Sprintf("token generation failed (%s): %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }
