// Package token implements the signed bearer-token codec. Minting and
// verification are pure: the only state is the immutable key material, so a
// single Codec is safe for concurrent use across the whole pipeline.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/altavia-air/altavia-api/internal/models"
	"github.com/altavia-air/altavia-api/pkg/config"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

// Leeway tolerated on iat/exp to absorb clock skew between instances.
const clockSkewLeeway = 60 * time.Second

// Codec mints and verifies signed access and refresh tokens.
type Codec struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
	audience      []string
	now           func() time.Time
}

// NewCodec validates the key material once at startup. A missing secret is a
// ConfigurationError here, never a per-request failure.
func NewCodec(cfg config.JWTConfig) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "signing secret is not configured")
	}
	if cfg.AccessExpiry <= 0 || cfg.RefreshExpiry <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "token expirations must be positive")
	}

	return &Codec{
		secret:        []byte(cfg.Secret),
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		now:           time.Now,
	}, nil
}

// AccessExpiry returns the configured access-token lifetime.
func (c *Codec) AccessExpiry() time.Duration { return c.accessExpiry }

// RefreshExpiry returns the configured refresh-token lifetime.
func (c *Codec) RefreshExpiry() time.Duration { return c.refreshExpiry }

// Mint constructs and signs a token of the given kind. Refresh tokens carry a
// unique token ID that keys their registry record; access tokens carry the
// capability scopes. The returned claims mirror what was signed.
func (c *Codec) Mint(subjectID string, kind models.TokenKind, scopes []string) (string, *models.TokenClaims, error) {
	issuedAt := c.now().UTC()

	ttl := c.accessExpiry
	if kind == models.TokenKindRefresh {
		ttl = c.refreshExpiry
	}
	expiresAt := issuedAt.Add(ttl)

	claims := &models.TokenClaims{
		Kind:    kind,
		Scopes:  scopes,
		TokenID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subjectID,
			Audience:  c.audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.KindInternal, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return signed, claims, nil
}

// Verify checks signature, structure and expiry, returning distinct error
// kinds. Callers must not collapse these into one generic failure: an expired
// token and a forged signature carry different audit severities.
func (c *Codec) Verify(signed string) (*models.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(signed, &models.TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.secret, nil
	}, jwt.WithLeeway(clockSkewLeeway), jwt.WithTimeFunc(func() time.Time { return c.now() }))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, appErrors.ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, appErrors.ErrSignatureMismatch
		default:
			return nil, appErrors.ErrMalformedToken
		}
	}

	claims, ok := parsed.Claims.(*models.TokenClaims)
	if !ok || !parsed.Valid {
		return nil, appErrors.ErrMalformedToken
	}
	if claims.Kind != models.TokenKindAccess && claims.Kind != models.TokenKindRefresh {
		return nil, appErrors.ErrMalformedToken
	}
	return claims, nil
}
