package services

import (
	"context"
	"time"
)

// Revocation announces that a token stopped being valid. An empty TokenID means
// every session of the user.
type Revocation struct {
	UserID  uint   `json:"user_id"`
	TokenID string `json:"token_id,omitempty"`
}

// CredentialStore is the single source of truth for session validity. Every
// authenticated request and live handshake consults it; nothing caches it per instance.
type CredentialStore interface {
	// Activate records tokenID as the user's only active session and revokes the one it supersedes.
	Activate(ctx context.Context, userID uint, tokenID string, issuedAt, expiresAt time.Time) error
	// Revoke blocks one token until its natural expiry.
	Revoke(ctx context.Context, userID uint, tokenID string, expiresAt time.Time) error
	// RevokeUser ends the user's active session, wherever it is used.
	RevokeUser(ctx context.Context, userID uint) error
	// Validate returns nil only for the user's current, unrevoked token.
	Validate(ctx context.Context, userID uint, tokenID string) error
	// WatchRevocations calls fn for every revocation until ctx is done.
	WatchRevocations(ctx context.Context, fn func(Revocation)) error
}

func revocationTTL(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
