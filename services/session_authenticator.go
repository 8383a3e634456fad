package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/food-delivery/utils"
)

// SessionAuthenticator checks a bearer token against its signature and the credential store.
// HTTP middleware and the live-channel handshake share it.
type SessionAuthenticator struct {
	Issuer *utils.TokenIssuer
	Store  CredentialStore
}

func NewSessionAuthenticator(issuer *utils.TokenIssuer, store CredentialStore) *SessionAuthenticator {
	return &SessionAuthenticator{Issuer: issuer, Store: store}
}

// Authenticate returns ErrUnauthorized for a malformed or expired token, ErrTokenRevoked
// for a revoked or superseded one, and a wrapped ErrStoreUnavailable when the store is down.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, token string) (*utils.CustomClaims, error) {
	claims, err := a.Issuer.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if err := a.Revalidate(ctx, claims.UserID, claims.TokenID()); err != nil {
		return nil, err
	}
	return claims, nil
}

func (a *SessionAuthenticator) Revalidate(ctx context.Context, userID uint, tokenID string) error {
	err := a.Store.Validate(ctx, userID, tokenID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTokenRevoked), errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
