package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/food-delivery/models"
)

type storeHarness struct {
	store CredentialStore
	// ready blocks until a WatchRevocations call is subscribed.
	ready func(t *testing.T)
	// breakStore makes every further call fail.
	breakStore func()
}

func newRedisHarness(t *testing.T) storeHarness {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	return storeHarness{
		store: NewRedisCredentialStore(rdb),
		ready: func(t *testing.T) {
			require.Eventually(t, func() bool {
				return mr.PubSubNumSub(RevocationChannel)[RevocationChannel] > 0
			}, 2*time.Second, 10*time.Millisecond)
		},
		breakStore: mr.Close,
	}
}

func newSQLHarness(t *testing.T) storeHarness {
	db := newTestDB(t)
	store := NewSQLCredentialStore(db)
	return storeHarness{
		store: store,
		ready: func(t *testing.T) {
			require.Eventually(t, func() bool {
				store.mu.Lock()
				defer store.mu.Unlock()
				return len(store.listeners) > 0
			}, 2*time.Second, 10*time.Millisecond)
		},
		breakStore: func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		},
	}
}

func eachStore(t *testing.T, fn func(t *testing.T, h storeHarness)) {
	t.Run("redis", func(t *testing.T) { fn(t, newRedisHarness(t)) })
	t.Run("sql", func(t *testing.T) { fn(t, newSQLHarness(t)) })
}

func TestCredentialStoreSingleActiveSession(t *testing.T) {
	eachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		now := time.Now()
		exp := now.Add(time.Hour)

		first, second := uuid.NewString(), uuid.NewString()
		require.NoError(t, h.store.Activate(ctx, 1, first, now, exp))
		require.NoError(t, h.store.Validate(ctx, 1, first))

		require.NoError(t, h.store.Activate(ctx, 1, second, now, exp))
		assert.ErrorIs(t, h.store.Validate(ctx, 1, first), ErrTokenRevoked)
		assert.NoError(t, h.store.Validate(ctx, 1, second))

		// Sessions of other users are independent.
		other := uuid.NewString()
		require.NoError(t, h.store.Activate(ctx, 2, other, now, exp))
		assert.NoError(t, h.store.Validate(ctx, 1, second))
		assert.NoError(t, h.store.Validate(ctx, 2, other))

		// Re-activating the same token is a no-op.
		require.NoError(t, h.store.Activate(ctx, 2, other, now, exp))
		assert.NoError(t, h.store.Validate(ctx, 2, other))
	})
}

func TestCredentialStoreRevoke(t *testing.T) {
	eachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		now := time.Now()
		exp := now.Add(time.Hour)

		token := uuid.NewString()
		require.NoError(t, h.store.Activate(ctx, 5, token, now, exp))
		require.NoError(t, h.store.Revoke(ctx, 5, token, exp))
		assert.ErrorIs(t, h.store.Validate(ctx, 5, token), ErrTokenRevoked)

		// A revoked token stays revoked even if something tries to reinstate it.
		fresh := uuid.NewString()
		require.NoError(t, h.store.Activate(ctx, 5, fresh, now, exp))
		assert.NoError(t, h.store.Validate(ctx, 5, fresh))
		assert.ErrorIs(t, h.store.Validate(ctx, 5, token), ErrTokenRevoked)

		assert.ErrorIs(t, h.store.Validate(ctx, 5, "never-issued"), ErrTokenRevoked)
	})
}

func TestCredentialStoreRevokeUser(t *testing.T) {
	eachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		now := time.Now()
		token := uuid.NewString()
		require.NoError(t, h.store.Activate(ctx, 9, token, now, now.Add(time.Hour)))

		require.NoError(t, h.store.RevokeUser(ctx, 9))
		assert.ErrorIs(t, h.store.Validate(ctx, 9, token), ErrTokenRevoked)

		// Nothing to revoke is not an error.
		require.NoError(t, h.store.RevokeUser(ctx, 10))
	})
}

func TestCredentialStoreBroadcastsRevocations(t *testing.T) {
	eachStore(t, func(t *testing.T, h storeHarness) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		var got []Revocation
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = h.store.WatchRevocations(ctx, func(rev Revocation) {
				mu.Lock()
				got = append(got, rev)
				mu.Unlock()
			})
		}()
		h.ready(t)

		now := time.Now()
		exp := now.Add(time.Hour)
		first, second := uuid.NewString(), uuid.NewString()
		require.NoError(t, h.store.Activate(ctx, 3, first, now, exp))
		require.NoError(t, h.store.Activate(ctx, 3, second, now, exp))
		require.NoError(t, h.store.RevokeUser(ctx, 3))

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 2
		}, 2*time.Second, 10*time.Millisecond)

		mu.Lock()
		assert.Equal(t, Revocation{UserID: 3, TokenID: first}, got[0])
		assert.Equal(t, Revocation{UserID: 3}, got[1])
		mu.Unlock()

		cancel()
		<-done
	})
}

func TestCredentialStoreUnavailable(t *testing.T) {
	eachStore(t, func(t *testing.T, h storeHarness) {
		ctx := context.Background()
		now := time.Now()
		token := uuid.NewString()
		require.NoError(t, h.store.Activate(ctx, 4, token, now, now.Add(time.Hour)))

		h.breakStore()
		err := h.store.Validate(ctx, 4, token)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.NotErrorIs(t, err, ErrTokenRevoked)
		assert.ErrorIs(t, h.store.Activate(ctx, 4, uuid.NewString(), now, now.Add(time.Hour)), ErrStoreUnavailable)
	})
}

func TestSQLCredentialStorePurgeExpired(t *testing.T) {
	db := newTestDB(t)
	store := NewSQLCredentialStore(db)
	ctx := context.Background()
	now := time.Now()

	old, live := uuid.NewString(), uuid.NewString()
	require.NoError(t, store.Activate(ctx, 1, old, now.Add(-2*time.Hour), now.Add(-time.Hour)))
	require.NoError(t, store.Activate(ctx, 2, live, now, now.Add(time.Hour)))
	require.NoError(t, store.Revoke(ctx, 2, uuid.NewString(), now.Add(-time.Minute)))

	purged, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	var sessions int64
	db.Model(&models.ActiveSession{}).Count(&sessions)
	assert.Equal(t, int64(1), sessions)
	assert.NoError(t, store.Validate(ctx, 2, live))
}

func TestSQLCredentialStoreRejectsExpiredSession(t *testing.T) {
	store := NewSQLCredentialStore(newTestDB(t))
	ctx := context.Background()
	now := time.Now()
	token := uuid.NewString()
	require.NoError(t, store.Activate(ctx, 1, token, now.Add(-2*time.Hour), now.Add(-time.Hour)))
	assert.ErrorIs(t, store.Validate(ctx, 1, token), ErrTokenRevoked)
}

func TestRevocationTTLFloor(t *testing.T) {
	now := time.Now()
	assert.Equal(t, time.Second, revocationTTL(now.Add(-time.Hour), now))
	assert.Equal(t, time.Hour, revocationTTL(now.Add(time.Hour), now))
}
