package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0xabcdef0123456789abcdef0123456789abcdef01"

func TestTokenIssueResolve(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	tok, err := issuer.Issue("0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	require.NoError(t, err)

	addr, err := issuer.Resolve(tok)
	require.NoError(t, err)
	assert.Equal(t, testAddr, addr)
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	tok, err := issuer.Issue(testAddr)
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Resolve(tok)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenRejections(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	good, err := issuer.Issue(testAddr)
	require.NoError(t, err)

	otherKey, err := NewTokenIssuer("other", time.Hour).Issue(testAddr)
	require.NoError(t, err)

	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testAddr,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Type:             tokenType,
		RegisteredClaims: jwt.RegisteredClaims{Subject: testAddr},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	claims.Type = "Refresh"
	wrongType, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"tampered":     good[:len(good)-2] + "xx",
		"other secret": otherKey,
		"alg none":     unsigned,
		"no expiry":    noExpiry,
		"wrong type":   wrongType,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Resolve(tok)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}
