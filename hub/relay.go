package hub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/utils"
)

const NotificationChannel = "notifications:live"

type relayEnvelope struct {
	RecipientID  uint                `json:"recipient_id"`
	Notification models.Notification `json:"notification"`
}

// RedisRelay fans pushes out to every API instance. Each instance runs Run and
// delivers to the connections it holds.
type RedisRelay struct {
	rdb *redis.Client
	hub *Hub
}

func NewRedisRelay(rdb *redis.Client, h *Hub) *RedisRelay {
	return &RedisRelay{rdb: rdb, hub: h}
}

func (r *RedisRelay) PushNotification(ctx context.Context, recipientID uint, n models.Notification) error {
	payload, err := json.Marshal(relayEnvelope{RecipientID: recipientID, Notification: n})
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, NotificationChannel, payload).Err(); err != nil {
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

// Run blocks until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, NotificationChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
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
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				utils.ErrorLogger.Printf("Malformed relay message: %v", err)
				continue
			}
			r.hub.PushNotification(ctx, env.RecipientID, env.Notification)
		}
	}
}
