package relocate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

func redisPair(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// callerClient simulates the caller's client: subscribe to the delivery
// channel and answer every credential with the scripted ack.
func callerClient(t *testing.T, client *redis.Client, ch *RedisChannel, identity string, accept bool, reason string) <-chan deliverEnvelope {
	t.Helper()
	got := make(chan deliverEnvelope, 1)

	sub := client.Subscribe(context.Background(), ch.deliverChannel(identity))
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	go func() {
		for msg := range sub.Channel() {
			var env deliverEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			got <- env
			ack, _ := json.Marshal(ackEnvelope{Accepted: accept, Reason: reason})
			client.Publish(context.Background(), ch.ackChannel(identity), ack)
		}
	}()
	return got
}

func TestRedisChannel_Deliver(t *testing.T) {
	_, client := redisPair(t)
	ch := NewRedisChannel(client, "", zap.NewNop())

	got := callerClient(t, client, ch, "caller-7", true, "")

	cred := types.Credential{
		Token: "tok-xyz", Endpoint: "wss://media", Identity: "caller-7", Room: "support-1-transfer-42",
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ch.Deliver(ctx, "caller-7", cred))

	env := <-got
	assert.Equal(t, "tok-xyz", env.Token)
	assert.Equal(t, "support-1-transfer-42", env.Room)
}

func TestRedisChannel_Rejected(t *testing.T) {
	_, client := redisPair(t)
	ch := NewRedisChannel(client, "", zap.NewNop())

	callerClient(t, client, ch, "caller-7", false, "call already ended")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ch.Deliver(ctx, "caller-7", types.Credential{Token: "t", Room: "r", Identity: "caller-7"})
	assert.Equal(t, types.ErrDeliveryRejected, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "call already ended")
}

func TestRedisChannel_NoListener(t *testing.T) {
	_, client := redisPair(t)
	ch := NewRedisChannel(client, "", zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ch.Deliver(ctx, "caller-7", types.Credential{Token: "t", Room: "r", Identity: "caller-7"})
	assert.Equal(t, types.ErrDeliveryTimeout, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestRedisChannel_AckTimeout(t *testing.T) {
	_, client := redisPair(t)
	ch := NewRedisChannel(client, "", zap.NewNop())

	// Listener that never acks.
	sub := client.Subscribe(context.Background(), ch.deliverChannel("caller-7"))
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)
	defer sub.Close()
	go func() {
		for range sub.Channel() {
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = ch.Deliver(ctx, "caller-7", types.Credential{Token: "t", Room: "r", Identity: "caller-7"})
	assert.Equal(t, types.ErrDeliveryTimeout, types.GetErrorCode(err))
}

func TestRedisChannel_ServerDown(t *testing.T) {
	mr, client := redisPair(t)
	ch := NewRedisChannel(client, "", zap.NewNop())
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := ch.Deliver(ctx, "caller-7", types.Credential{Token: "t", Room: "r", Identity: "caller-7"})
	assert.Equal(t, types.ErrUpstreamUnavailable, types.GetErrorCode(err))
}
