package relocate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

// RedisChannel delivers relocation credentials over Redis pub/sub. The
// credential is published on a per-identity channel the caller's client
// subscribes to; the client answers on the matching ack channel.
type RedisChannel struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisChannel creates a Redis-backed delivery channel. prefix namespaces
// the pub/sub channels; empty means "warmline".
func NewRedisChannel(client *redis.Client, prefix string, logger *zap.Logger) *RedisChannel {
	if prefix == "" {
		prefix = "warmline"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisChannel{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "relocate_redis")),
	}
}

// deliverEnvelope is the payload published to the caller's client.
type deliverEnvelope struct {
	Token    string `json:"token"`
	Endpoint string `json:"endpoint"`
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// ackEnvelope is the client's answer on the ack channel.
type ackEnvelope struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func (c *RedisChannel) deliverChannel(identity string) string {
	return fmt.Sprintf("%s:relocate:%s", c.prefix, identity)
}

func (c *RedisChannel) ackChannel(identity string) string {
	return fmt.Sprintf("%s:relocate:%s:ack", c.prefix, identity)
}

// Deliver publishes cred on the caller's channel and waits for the ack.
// The ack subscription is opened before publishing so a fast client cannot
// answer into the void.
func (c *RedisChannel) Deliver(ctx context.Context, identity string, cred types.Credential) error {
	sub := c.client.Subscribe(ctx, c.ackChannel(identity))
	defer sub.Close()

	// Force the SUBSCRIBE round trip before we publish.
	if _, err := sub.Receive(ctx); err != nil {
		return types.NewError(types.ErrUpstreamUnavailable, "relocation channel unavailable").
			WithCause(err).WithRetryable(true)
	}

	payload, err := json.Marshal(deliverEnvelope{
		Token:    cred.Token,
		Endpoint: cred.Endpoint,
		Identity: cred.Identity,
		Room:     cred.Room,
	})
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to encode relocation payload").WithCause(err)
	}

	receivers, err := c.client.Publish(ctx, c.deliverChannel(identity), payload).Result()
	if err != nil {
		return types.NewError(types.ErrUpstreamUnavailable, "relocation publish failed").
			WithCause(err).WithRetryable(true)
	}
	if receivers == 0 {
		return types.NewError(types.ErrDeliveryTimeout,
			"caller client is not listening for relocation").WithRetryable(true)
	}

	c.logger.Debug("relocation credential published",
		zap.String("identity", identity), zap.Int64("receivers", receivers))

	select {
	case msg := <-sub.Channel():
		var ack ackEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &ack); err != nil {
			return types.NewError(types.ErrDeliveryRejected, "malformed relocation ack").WithCause(err)
		}
		if !ack.Accepted {
			reason := ack.Reason
			if reason == "" {
				reason = "client declined relocation"
			}
			return types.NewError(types.ErrDeliveryRejected, reason)
		}
		return nil
	case <-ctx.Done():
		return types.NewError(types.ErrDeliveryTimeout,
			"caller did not acknowledge relocation in time").WithRetryable(true)
	}
}
