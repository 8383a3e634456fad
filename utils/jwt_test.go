package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)

	issued, err := issuer.GenerateToken(42, "delivery")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.TokenID)
	assert.Equal(t, time.Hour, issued.ExpiresAt.Sub(issued.IssuedAt))

	claims, err := issuer.ParseToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "delivery", claims.Role)
	assert.Equal(t, issued.TokenID, claims.TokenID())

	again, err := issuer.GenerateToken(42, "delivery")
	require.NoError(t, err)
	assert.NotEqual(t, issued.TokenID, again.TokenID)
}

func TestParseTokenRejects(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), time.Hour)

	t.Run("expired", func(t *testing.T) {
		past := NewTokenIssuer([]byte("secret"), time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		issued, err := past.GenerateToken(1, "client")
		require.NoError(t, err)
		_, err = issuer.ParseToken(issued.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		issued, err := NewTokenIssuer([]byte("other"), time.Hour).GenerateToken(1, "client")
		require.NoError(t, err)
		_, err = issuer.ParseToken(issued.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing jti", func(t *testing.T) {
		claims := &CustomClaims{
			UserID: 1,
			Role:   "client",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = issuer.ParseToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.ParseToken("a.b.c")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestParseID(t *testing.T) {
	id, err := ParseID("17")
	require.NoError(t, err)
	assert.Equal(t, uint(17), id)
	assert.Equal(t, "17", FormatID(id))

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}
