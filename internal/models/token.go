package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes short-lived access tokens from rotating refresh
// tokens. The kind is embedded in the signed claims so a refresh token can
// never be replayed as an access token.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Capability scopes carried by access tokens.
const (
	ScopeBookingsRead  = "bookings:read"
	ScopeBookingsWrite = "bookings:write"
	ScopePayments      = "payments"
)

// TokenClaims is the signed JWT payload. Expiry is fixed at mint time and
// never extended in place.
type TokenClaims struct {
	Kind    TokenKind `json:"kind"`
	Scopes  []string  `json:"scopes,omitempty"`
	TokenID string    `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the opaque user identifier the token was minted for.
func (c *TokenClaims) SubjectID() string {
	return c.Subject
}

// HasScope reports whether the claims carry the given capability.
func (c *TokenClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// RefreshTokenRecord is the registry's authority of truth for revocation.
// Once RevokedAt is set the record is immutable; it is evicted only after
// ExpiresAt regardless of revocation state.
type RefreshTokenRecord struct {
	TokenID    string     `db:"token_id" json:"token_id"`
	SubjectID  string     `db:"subject_id" json:"subject_id"`
	DeviceID   string     `db:"device_id" json:"device_id,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
}

// Revoked reports whether the record can no longer authorize a new access token.
func (r *RefreshTokenRecord) Revoked() bool {
	return r.RevokedAt != nil
}

// Expired reports whether the record is past its natural lifetime.
func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
