package repository

import (
	"context"
	"encoding/json"
	"strings"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UserChannelPrefix redis channel of one user room is UserChannelPrefix + user id
const UserChannelPrefix = "chat:user:"

// LocalPublisher delivers an event to the sessions connected to this node
type LocalPublisher interface {
	Publish(ctx context.Context, userID string, event domain.Event, payload any) error
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 將 event 序列化後，發布到 userID 的 channel
func (r *RedisPubSub) Publish(ctx context.Context, userID string, event domain.Event, payload any) error {
	data, err := json.Marshal(domain.Envelope{Room: userID, Event: event, Payload: payload})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, UserChannelPrefix+userID, data).Err()
}

// Relay 訂閱所有 user channel，收到訊息後交給本節點的 hub，blocks until ctx is done
func (r *RedisPubSub) Relay(ctx context.Context, local LocalPublisher) error {
	sub := r.client.PSubscribe(ctx, UserChannelPrefix+"*")
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()

	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return nil
			}

			var env domain.RawEnvelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				logger.Log.Warn("relay: drop malformed frame", zap.String("channel", m.Channel), zap.Error(err))
				continue
			}
			room := env.Room
			if room == "" {
				room = strings.TrimPrefix(m.Channel, UserChannelPrefix)
			}
			if err := local.Publish(ctx, room, env.Event, env.Payload); err != nil {
				logger.Log.Warn("relay: local publish", zap.String("room", room), zap.Error(err))
			}
		case <-ctx.Done():
			logger.Log.Info("relay: subscription closed")
			return nil
		}
	}
}
