// Package session manages one connection to a media room. A Handle owns at
// most one live provider connection at a time; reconnecting requires an
// explicit disconnect first, never an in-place connection swap.
package session

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

// Handle is a managed connection to one room through the media-room provider.
// All methods are safe for concurrent use.
type Handle struct {
	provider Provider
	logger   *zap.Logger

	mu           sync.RWMutex
	state        types.ConnectionState
	localAudio   bool
	participants map[string]types.Participant
	conn         Conn
	epoch        int // increments per connect; stale pumps detect replacement
	subs         []chan Event
}

// NewHandle creates an idle handle bound to a provider.
func NewHandle(provider Provider, logger *zap.Logger) *Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handle{
		provider:     provider,
		logger:       logger.With(zap.String("component", "session_handle")),
		state:        types.ConnIdle,
		participants: make(map[string]types.Participant),
	}
}

// Connect establishes the provider connection with the given credential.
// Connecting an already-connected handle fails with ALREADY_CONNECTED.
func (h *Handle) Connect(ctx context.Context, cred types.Credential) error {
	if cred.Zero() {
		return types.NewError(types.ErrInvalidRequest, "credential is required")
	}

	h.mu.Lock()
	switch h.state {
	case types.ConnConnecting, types.ConnConnected:
		h.mu.Unlock()
		return types.NewError(types.ErrAlreadyConnected, "handle already has a live connection")
	}
	h.state = types.ConnConnecting
	h.epoch++
	epoch := h.epoch
	h.mu.Unlock()

	conn, err := h.provider.Connect(ctx, cred)
	if err != nil {
		h.mu.Lock()
		h.state = types.ConnFailed
		h.mu.Unlock()
		h.logger.Warn("connect failed", zap.String("room", cred.Room), zap.Error(err))
		if types.GetErrorCode(err) != "" {
			return err
		}
		return types.NewError(types.ErrUpstreamUnavailable, "media provider connect failed").
			WithCause(err).WithRetryable(true)
	}

	h.mu.Lock()
	h.conn = conn
	h.state = types.ConnConnected
	h.participants = make(map[string]types.Participant)
	h.mu.Unlock()

	h.logger.Info("connected", zap.String("room", cred.Room), zap.String("identity", cred.Identity))
	go h.pump(conn, epoch)
	return nil
}

// Disconnect tears down the connection. Idempotent: disconnecting an idle or
// already-disconnected handle is a no-op, never an error.
func (h *Handle) Disconnect() {
	h.mu.Lock()
	conn := h.conn
	h.conn = nil
	wasLive := h.state == types.ConnConnected || h.state == types.ConnConnecting
	h.state = types.ConnDisconnected
	h.localAudio = false
	h.mu.Unlock()

	if conn != nil {
		if err := conn.Close(context.Background()); err != nil {
			h.logger.Debug("close error", zap.Error(err))
		}
	}
	if wasLive {
		h.logger.Info("disconnected")
	}
}

// EnableLocalAudio publishes the local audio track.
func (h *Handle) EnableLocalAudio(ctx context.Context) error {
	h.mu.Lock()
	conn := h.conn
	connected := h.state == types.ConnConnected
	h.mu.Unlock()

	if !connected || conn == nil {
		return types.NewError(types.ErrNotConnected, "cannot enable audio on a disconnected handle")
	}
	if err := conn.SetLocalAudio(ctx, true); err != nil {
		return types.NewError(types.ErrMediaFailure, "failed to enable local audio").WithCause(err)
	}

	h.mu.Lock()
	h.localAudio = true
	h.mu.Unlock()
	return nil
}

// DisableLocalAudio unpublishes the local audio track. Best-effort.
func (h *Handle) DisableLocalAudio(ctx context.Context) {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()

	if conn != nil {
		if err := conn.SetLocalAudio(ctx, false); err != nil {
			h.logger.Debug("disable local audio failed", zap.Error(err))
		}
	}

	h.mu.Lock()
	h.localAudio = false
	h.mu.Unlock()
}

// WriteAudio publishes one audio frame into the room. Satisfies the speech
// delivery sink contract.
func (h *Handle) WriteAudio(ctx context.Context, data []byte) error {
	h.mu.RLock()
	conn := h.conn
	connected := h.state == types.ConnConnected
	h.mu.RUnlock()

	if !connected || conn == nil {
		return types.NewError(types.ErrNotConnected, "cannot publish audio on a disconnected handle")
	}
	if err := conn.WriteAudio(ctx, data); err != nil {
		return types.NewError(types.ErrMediaFailure, "audio publish failed").WithCause(err)
	}
	return nil
}

// Subscribe returns a channel receiving this handle's events. Slow consumers
// drop events rather than blocking the pump.
func (h *Handle) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// State returns the current connection state.
func (h *Handle) State() types.ConnectionState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Snapshot returns a point-in-time copy of the handle's state.
func (h *Handle) Snapshot() types.SessionSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	parts := make([]types.Participant, 0, len(h.participants))
	for _, p := range h.participants {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Identity < parts[j].Identity })

	return types.SessionSnapshot{
		ConnectionState:    h.state,
		LocalAudioEnabled:  h.localAudio,
		RemoteParticipants: parts,
	}
}

// pump consumes provider events for one connection epoch, maintains the
// participant set, and fans events out to subscribers. An unsolicited
// provider disconnect flips the handle to Disconnected; an operator
// Disconnect has already detached the conn, so the stale pump exits quietly.
func (h *Handle) pump(conn Conn, epoch int) {
	sawDisconnect := false
	for ev := range conn.Events() {
		if !h.current(conn, epoch) {
			return
		}
		h.apply(ev)
		if ev.Type == EventDisconnected {
			sawDisconnect = true
		}
		h.publish(ev)
	}

	if !h.current(conn, epoch) {
		return
	}
	if !sawDisconnect {
		// Stream ended without an explicit reason: still an unsolicited drop.
		ev := Event{Type: EventDisconnected, Reason: "connection closed"}
		h.apply(ev)
		h.publish(ev)
	}
}

func (h *Handle) current(conn Conn, epoch int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn == conn && h.epoch == epoch
}

func (h *Handle) apply(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch ev.Type {
	case EventParticipantJoined:
		h.participants[ev.Participant] = types.Participant{Identity: ev.Participant}
	case EventParticipantLeft:
		delete(h.participants, ev.Participant)
	case EventRemoteAudioAvailable:
		p := h.participants[ev.Participant]
		p.Identity = ev.Participant
		p.HasAudio = true
		h.participants[ev.Participant] = p
	case EventRemoteAudioRemoved:
		p := h.participants[ev.Participant]
		p.Identity = ev.Participant
		p.HasAudio = false
		h.participants[ev.Participant] = p
	case EventDisconnected:
		h.state = types.ConnDisconnected
		h.conn = nil
		h.localAudio = false
		h.logger.Warn("unsolicited disconnect", zap.String("reason", ev.Reason))
	}
}

func (h *Handle) publish(ev Event) {
	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
