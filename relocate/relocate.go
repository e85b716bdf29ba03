// Package relocate moves the caller from the source room into the transfer
// room: mint a fresh credential, push it to the caller's client, and wait
// for the client to confirm it reconnected.
package relocate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/warmline/warmline/broker"
	"github.com/warmline/warmline/types"
)

// Channel delivers a freshly minted credential to the caller's client and
// blocks until the client acknowledges, rejects, or ctx expires.
type Channel interface {
	Deliver(ctx context.Context, identity string, cred types.Credential) error
}

// Coordinator runs one caller relocation end to end.
type Coordinator struct {
	broker  broker.Broker
	channel Channel
	timeout time.Duration
	logger  *zap.Logger
}

// NewCoordinator creates a relocation coordinator. timeout bounds the wait
// for the caller's acknowledgement.
func NewCoordinator(b broker.Broker, ch Channel, timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		broker:  b,
		channel: ch,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "relocate")),
	}
}

// Relocate mints a credential for identity in room and delivers it to the
// caller's client. It returns the minted credential once the client has
// acknowledged the move. On any error the caller remains where it was; the
// returned error says which phase failed.
func (c *Coordinator) Relocate(ctx context.Context, identity, room string) (types.Credential, error) {
	if identity == "" || room == "" {
		return types.Credential{}, types.NewError(types.ErrInvalidRequest,
			"relocation needs a caller identity and a destination room")
	}

	cred, err := c.broker.Issue(ctx, identity, room)
	if err != nil {
		c.logger.Warn("caller credential mint failed",
			zap.String("identity", identity), zap.String("room", room), zap.Error(err))
		return types.Credential{}, types.NewError(types.ErrMintFailed,
			"could not mint caller credential").WithCause(err).WithRetryable(true)
	}

	deliverCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	if err := c.channel.Deliver(deliverCtx, identity, cred); err != nil {
		c.logger.Warn("caller relocation delivery failed",
			zap.String("identity", identity),
			zap.String("room", room),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return types.Credential{}, err
	}

	c.logger.Info("caller relocated",
		zap.String("identity", identity),
		zap.String("room", room),
		zap.Duration("elapsed", time.Since(start)))
	return cred, nil
}
