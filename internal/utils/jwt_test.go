package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/fuchiball-booking/internal/identity"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	p := identity.Principal{UserID: 42, Email: "ana@example.com", Role: identity.RoleAdmin}
	tok, err := NewAccessToken("s3cret", p, 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	got, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestParseAccessTokenRefuses(t *testing.T) {
	p := identity.Principal{UserID: 1, Role: identity.RolePlayer}
	good, err := NewAccessToken("s3cret", p, 15)
	require.NoError(t, err)

	_, err = ParseAccessToken("other", good.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAccessToken("s3cret", p, -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: identity.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "1", Issuer: Issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken("s3cret", "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Len(t, HashRefreshRaw(rt.Raw), 64)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("pichanga", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "pichanga"))
	assert.False(t, VerifyPassword(h, "futbol"))
	assert.False(t, VerifyPassword("not-a-hash", "pichanga"))

	h, err = HashPassword("pichanga", 99)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "pichanga"))

	assert.NoError(t, CheckPassword("12345678"))
	assert.ErrorIs(t, CheckPassword("short"), ErrWeakPassword)
	assert.ErrorIs(t, CheckPassword(strings.Repeat("x", 73)), ErrWeakPassword)
}
