package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/food-delivery/utils"
)

type failingStore struct {
	CredentialStore
	err error
}

func (f failingStore) Validate(context.Context, uint, string) error { return f.err }

func TestSessionAuthenticator(t *testing.T) {
	issuer := utils.NewTokenIssuer([]byte("test-secret"), time.Hour)
	store := NewSQLCredentialStore(newTestDB(t))
	auth := NewSessionAuthenticator(issuer, store)
	ctx := context.Background()

	first, err := issuer.GenerateToken(7, "client")
	require.NoError(t, err)
	require.NoError(t, store.Activate(ctx, 7, first.TokenID, first.IssuedAt, first.ExpiresAt))

	claims, err := auth.Authenticate(ctx, first.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, first.TokenID, claims.TokenID())

	second, err := issuer.GenerateToken(7, "client")
	require.NoError(t, err)
	require.NoError(t, store.Activate(ctx, 7, second.TokenID, second.IssuedAt, second.ExpiresAt))

	_, err = auth.Authenticate(ctx, first.Token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = auth.Authenticate(ctx, second.Token)
	assert.NoError(t, err)

	_, err = auth.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	forged, err := utils.NewTokenIssuer([]byte("other-secret"), time.Hour).GenerateToken(7, "client")
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, forged.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRevalidateWrapsUnknownStoreErrors(t *testing.T) {
	auth := NewSessionAuthenticator(nil, failingStore{err: errors.New("socket closed")})
	err := auth.Revalidate(context.Background(), 1, "t")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	auth.Store = failingStore{err: ErrTokenRevoked}
	assert.ErrorIs(t, auth.Revalidate(context.Background(), 1, "t"), ErrTokenRevoked)
}
