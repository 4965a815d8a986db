package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altavia-air/altavia-api/internal/models"
	"github.com/altavia-air/altavia-api/pkg/config"
	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        "altavia-api",
		Audience:      []string{"altavia-clients"},
	})
	require.NoError(t, err)
	return codec
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec(config.JWTConfig{AccessExpiry: time.Minute, RefreshExpiry: time.Hour})
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.KindConfiguration))
}

func TestMintVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	signed, minted, err := codec.Mint("subject-1", models.TokenKindAccess, []string{models.ScopeBookingsRead, models.ScopeBookingsWrite})
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := codec.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", claims.SubjectID())
	assert.Equal(t, models.TokenKindAccess, claims.Kind)
	assert.Equal(t, minted.Scopes, claims.Scopes)
	assert.True(t, claims.HasScope(models.ScopeBookingsWrite))
	assert.False(t, claims.HasScope(models.ScopePayments))
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestMintRefreshUsesRefreshExpiry(t *testing.T) {
	codec := newTestCodec(t)

	_, claims, err := codec.Mint("subject-1", models.TokenKindRefresh, nil)
	require.NoError(t, err)

	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.Equal(t, 7*24*time.Hour, lifetime)
	assert.NotEmpty(t, claims.TokenID)
}

func TestVerifyExpiredToken(t *testing.T) {
	codec := newTestCodec(t)
	base := time.Now().UTC()

	codec.now = func() time.Time { return base.Add(-16*time.Minute - clockSkewLeeway) }
	signed, _, err := codec.Mint("subject-1", models.TokenKindAccess, nil)
	require.NoError(t, err)

	codec.now = func() time.Time { return base }
	_, err = codec.Verify(signed)
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.KindExpiredToken), "expired token must never surface as malformed")
}

func TestVerifyWithinClockSkewLeeway(t *testing.T) {
	codec := newTestCodec(t)
	base := time.Now().UTC()

	// Minted slightly in the future relative to the verifier's clock.
	codec.now = func() time.Time { return base.Add(30 * time.Second) }
	signed, _, err := codec.Mint("subject-1", models.TokenKindAccess, nil)
	require.NoError(t, err)

	codec.now = func() time.Time { return base }
	_, err = codec.Verify(signed)
	assert.NoError(t, err)
}

func TestVerifySignatureMismatch(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec(config.JWTConfig{
		Secret:        "a-different-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	signed, _, err := other.Mint("subject-1", models.TokenKindAccess, nil)
	require.NoError(t, err)

	_, err = codec.Verify(signed)
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.KindSignatureMismatch))
}

func TestVerifyMalformedToken(t *testing.T) {
	codec := newTestCodec(t)

	for _, garbage := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		_, err := codec.Verify(garbage)
		require.Error(t, err)
		assert.True(t, appErrors.IsKind(err, appErrors.KindMalformedToken), "input %q", garbage)
	}
}
