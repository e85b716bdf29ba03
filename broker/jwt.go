package broker

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/warmline/warmline/types"
)

// VideoGrant is the room access claim embedded in minted tokens.
type VideoGrant struct {
	RoomJoin bool   `json:"roomJoin"`
	Room     string `json:"room"`
}

// tokenClaims is the full claim set of a minted credential.
type tokenClaims struct {
	jwt.RegisteredClaims
	Video VideoGrant `json:"video"`
}

// JWTBroker mints HS256-signed room-join tokens locally from an API key and
// secret, the way the media provider's own server SDKs do. Issue volume is
// bounded by a rate limiter so a runaway client cannot flood the signer.
type JWTBroker struct {
	apiKey    string
	apiSecret string
	endpoint  string
	ttl       time.Duration
	limiter   *rate.Limiter
	logger    *zap.Logger
	now       func() time.Time
}

// JWTBrokerOptions configures a JWTBroker.
type JWTBrokerOptions struct {
	APIKey     string
	APISecret  string
	Endpoint   string
	TokenTTL   time.Duration
	IssueRPS   int
	IssueBurst int
}

// NewJWTBroker creates a broker that signs credentials locally.
func NewJWTBroker(opts JWTBrokerOptions, logger *zap.Logger) *JWTBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = 6 * time.Hour
	}
	if opts.IssueRPS == 0 {
		opts.IssueRPS = 50
	}
	if opts.IssueBurst == 0 {
		opts.IssueBurst = opts.IssueRPS * 2
	}
	return &JWTBroker{
		apiKey:    opts.APIKey,
		apiSecret: opts.APISecret,
		endpoint:  opts.Endpoint,
		ttl:       opts.TokenTTL,
		limiter:   rate.NewLimiter(rate.Limit(opts.IssueRPS), opts.IssueBurst),
		logger:    logger.With(zap.String("component", "credential_broker")),
		now:       time.Now,
	}
}

// Issue mints a credential for identity into room.
func (b *JWTBroker) Issue(ctx context.Context, identity, room string) (types.Credential, error) {
	if identity == "" {
		return types.Credential{}, types.NewError(types.ErrInvalidRequest, "identity is required")
	}
	if room == "" {
		return types.Credential{}, types.NewError(types.ErrInvalidRequest, "room is required")
	}
	if b.apiKey == "" || b.apiSecret == "" {
		return types.Credential{}, types.NewError(types.ErrUnauthorized, "credential signer not configured")
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return types.Credential{}, types.NewError(types.ErrUpstreamUnavailable, "credential issuance interrupted").
			WithCause(err).WithRetryable(true)
	}

	now := b.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    b.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.ttl)),
		},
		Video: VideoGrant{RoomJoin: true, Room: room},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(b.apiSecret))
	if err != nil {
		return types.Credential{}, types.NewError(types.ErrInternalError, "failed to sign credential").WithCause(err)
	}

	b.logger.Debug("credential issued",
		zap.String("identity", identity),
		zap.String("room", room),
		zap.Duration("ttl", b.ttl),
	)

	return types.Credential{
		Token:    token,
		Endpoint: b.endpoint,
		Identity: identity,
		Room:     room,
	}, nil
}
