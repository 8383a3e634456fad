package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/food-delivery/metrics"
	"github.com/yeremiapane/food-delivery/utils"
)

const RevocationChannel = "session:revocations"

// releaseIfCurrent deletes the active-session key only when it still holds the given token.
var releaseIfCurrent = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCredentialStore keeps sessions in Redis so every API instance sees the same state.
// Keys expire with the tokens they describe.
type RedisCredentialStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisCredentialStore(rdb *redis.Client) *RedisCredentialStore {
	return &RedisCredentialStore{rdb: rdb, now: time.Now}
}

func activeKey(userID uint) string {
	return "session:active:" + strconv.FormatUint(uint64(userID), 10)
}

func revokedKey(tokenID string) string {
	return "session:revoked:" + tokenID
}

func (s *RedisCredentialStore) Activate(ctx context.Context, userID uint, tokenID string, issuedAt, expiresAt time.Time) error {
	ttl := revocationTTL(expiresAt, s.now())
	prev, err := s.rdb.SetArgs(ctx, activeKey(userID), tokenID, redis.SetArgs{Get: true, TTL: ttl}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: activate session: %v", ErrStoreUnavailable, err)
	}
	if prev == "" || prev == tokenID {
		return nil
	}

	// The superseded token was issued earlier with the same lifetime, so ttl outlives it.
	if err := s.rdb.Set(ctx, revokedKey(prev), userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: revoke superseded session: %v", ErrStoreUnavailable, err)
	}
	metrics.SessionsRevoked.WithLabelValues("superseded").Inc()
	s.publish(ctx, Revocation{UserID: userID, TokenID: prev})
	return nil
}

func (s *RedisCredentialStore) Revoke(ctx context.Context, userID uint, tokenID string, expiresAt time.Time) error {
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, revokedKey(tokenID), userID, revocationTTL(expiresAt, s.now()))
		releaseIfCurrent.Eval(ctx, pipe, []string{activeKey(userID)}, tokenID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: revoke session: %v", ErrStoreUnavailable, err)
	}
	metrics.SessionsRevoked.WithLabelValues("logout").Inc()
	s.publish(ctx, Revocation{UserID: userID, TokenID: tokenID})
	return nil
}

func (s *RedisCredentialStore) RevokeUser(ctx context.Context, userID uint) error {
	key := activeKey(userID)
	ttl, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: revoke user: %v", ErrStoreUnavailable, err)
	}
	tokenID, err := s.rdb.GetDel(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: revoke user: %v", ErrStoreUnavailable, err)
	}
	if tokenID != "" {
		if ttl < time.Second {
			ttl = time.Second
		}
		if err := s.rdb.Set(ctx, revokedKey(tokenID), userID, ttl).Err(); err != nil {
			return fmt.Errorf("%w: revoke user: %v", ErrStoreUnavailable, err)
		}
		metrics.SessionsRevoked.WithLabelValues("admin").Inc()
	}
	s.publish(ctx, Revocation{UserID: userID})
	return nil
}

func (s *RedisCredentialStore) Validate(ctx context.Context, userID uint, tokenID string) error {
	var active *redis.StringCmd
	var revoked *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		active = pipe.Get(ctx, activeKey(userID))
		revoked = pipe.Exists(ctx, revokedKey(tokenID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: validate session: %v", ErrStoreUnavailable, err)
	}

	if revoked.Val() > 0 {
		return ErrTokenRevoked
	}
	current, err := active.Result()
	if errors.Is(err, redis.Nil) || current != tokenID {
		return ErrTokenRevoked
	}
	if err != nil {
		return fmt.Errorf("%w: validate session: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisCredentialStore) WatchRevocations(ctx context.Context, fn func(Revocation)) error {
	sub := s.rdb.Subscribe(ctx, RevocationChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("%w: subscribe revocations: %v", ErrStoreUnavailable, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var rev Revocation
			if err := json.Unmarshal([]byte(msg.Payload), &rev); err != nil {
				utils.ErrorLogger.Printf("Malformed revocation message: %v", err)
				continue
			}
			fn(rev)
		}
	}
}

func (s *RedisCredentialStore) publish(ctx context.Context, rev Revocation) {
	payload, err := json.Marshal(rev)
	if err != nil {
		return
	}
	// Live channels also revalidate on a timer, so a lost broadcast only delays the close.
	if err := s.rdb.Publish(ctx, RevocationChannel, payload).Err(); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"user_id":  rev.UserID,
			"token_id": rev.TokenID,
		}).Errorf("revocation broadcast failed: %v", err)
	}
}
