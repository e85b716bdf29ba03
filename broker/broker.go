// Package broker issues room access credentials. A credential is a signed,
// time-bounded JWT granting one identity access to one named room, paired
// with the media provider's signaling endpoint.
package broker

import (
	"context"

	"github.com/warmline/warmline/types"
)

// Broker mints credentials. Implementations must be safe for concurrent use;
// the orchestrator fans out agent A and agent B mints in parallel.
type Broker interface {
	// Issue mints a credential for identity into room, or returns a typed
	// failure (INVALID_REQUEST, UNAUTHORIZED, UPSTREAM_UNAVAILABLE).
	Issue(ctx context.Context, identity, room string) (types.Credential, error)
}
