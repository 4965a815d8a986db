// Package registry tracks issued refresh tokens so they can be revoked before
// their natural expiry. Access-token validity is purely cryptographic and
// never consults this package; refresh-token use always does.
package registry

import (
	"context"
	"errors"

	"github.com/altavia-air/altavia-api/internal/models"
)

// Sentinel errors returned by Store implementations. The auth service maps
// them onto the wire contract; they stay distinct because a revoked token is
// a possible theft signal while an expired one is routine.
var (
	ErrNotFound    = errors.New("refresh token not found")
	ErrRevoked     = errors.New("refresh token revoked")
	ErrExpired     = errors.New("refresh token expired")
	ErrDuplicateID = errors.New("duplicate refresh token id")
	ErrStoreFull   = errors.New("refresh token store is full")
)

// Store is the substitution seam for the refresh-token registry. The default
// MemoryStore is single-instance; RedisStore carries the same contract for
// shared deployments.
type Store interface {
	// Register inserts a new record. ErrDuplicateID is a fatal integrity
	// violation: token IDs are random UUIDs and must never collide.
	Register(ctx context.Context, record *models.RefreshTokenRecord) error

	// Consume validates the record and atomically retires it: exactly one
	// caller ever receives it, every later call gets ErrRevoked. Rotation
	// builds on this single-winner guarantee; without it, concurrent
	// presentations of a stolen token would each mint a fresh pair. Also
	// returns ErrNotFound or ErrExpired.
	Consume(ctx context.Context, tokenID string) (*models.RefreshTokenRecord, error)

	// Revoke sets RevokedAt. Revoking an already-revoked or unknown token is
	// a no-op, not an error.
	Revoke(ctx context.Context, tokenID string) error

	// RevokeAllForSubject revokes every live record for the subject and
	// returns how many were revoked ("log out everywhere" / compromise).
	RevokeAllForSubject(ctx context.Context, subjectID string) (int, error)

	Close() error
}
