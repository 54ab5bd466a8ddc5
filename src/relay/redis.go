package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/metrics"
	"market-agent/src/models"

	"github.com/redis/go-redis/v9"
)

// RedisRelay publishes frames on Redis pub/sub so every server node can fan
// them out through its own hub. Redis keeps nothing, which matches the
// at-most-once contract of the hub.
type RedisRelay struct {
	Client  *redis.Client
	Prefix  string
	Logger  *logger.Logger
	Metrics *metrics.Collector

	mu     sync.Mutex
	pubsub *redis.PubSub
}

var _ interfaces.IRelay = (*RedisRelay)(nil)

// -----------------------------------------------------------------------------

func NewRedisRelay(cfg models.MRelayConfig, log *logger.Logger, m *metrics.Collector) *RedisRelay {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisRelay{
		Client:  client,
		Prefix:  cfg.RedisPrefix,
		Logger:  log,
		Metrics: m,
	}
}

// -----------------------------------------------------------------------------

// Ping checks the connection at startup
func (r *RedisRelay) Ping(ctx context.Context) error {
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return helpers.NewRelayError("redis ping", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// topic is the redis pub/sub channel for a relay channel: "{prefix}:{channel}"
func (r *RedisRelay) topic(channel string) string {
	return r.Prefix + ":" + channel
}

// -----------------------------------------------------------------------------

func (r *RedisRelay) Publish(ctx context.Context, channel string, event models.MRelayEvent) error {
	frame, err := EncodeEvent(channel, event)
	if err != nil {
		return err
	}
	if err := r.Client.Publish(ctx, r.topic(channel), frame).Err(); err != nil {
		return helpers.NewRelayError(fmt.Sprintf("redis publish %s", event.Kind), err)
	}
	r.Metrics.ObservePublish(event.Kind)
	return nil
}

// -----------------------------------------------------------------------------

// Bridge subscribes to every channel under the prefix and delivers incoming
// frames into hub. It returns once the subscription is confirmed; delivery
// continues in the background until ctx ends or Close is called.
func (r *RedisRelay) Bridge(ctx context.Context, hub *Hub) error {
	pubsub := r.Client.PSubscribe(ctx, r.topic("*"))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return helpers.NewRelayError("redis psubscribe", err)
	}

	r.mu.Lock()
	r.pubsub = pubsub
	r.mu.Unlock()

	go func() {
		defer pubsub.Close()
		prefix := r.topic("")
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				channel := strings.TrimPrefix(msg.Channel, prefix)
				if err := hub.Deliver(ctx, channel, []byte(msg.Payload)); err != nil {
					r.Logger.Warning("Bridge delivery on %s failed: %v", channel, err)
					return
				}
			}
		}
	}()

	r.Logger.Info("Bridging redis %s into the local hub", r.topic("*"))
	return nil
}

// -----------------------------------------------------------------------------

func (r *RedisRelay) Close() error {
	r.mu.Lock()
	if r.pubsub != nil {
		r.pubsub.Close()
		r.pubsub = nil
	}
	r.mu.Unlock()
	return r.Client.Close()
}
