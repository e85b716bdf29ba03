package session

import (
	"context"

	"github.com/warmline/warmline/types"
)

// EventType classifies session events surfaced to subscribers.
type EventType string

const (
	EventParticipantJoined    EventType = "participant_joined"
	EventParticipantLeft      EventType = "participant_left"
	EventRemoteAudioAvailable EventType = "remote_audio_available"
	EventRemoteAudioRemoved   EventType = "remote_audio_removed"
	EventConnectionQuality    EventType = "connection_quality_changed"
	EventDisconnected         EventType = "disconnected"
)

// Event is one session event. Participant is set for participant/track
// events, Quality for quality changes, Reason for disconnects.
type Event struct {
	Type        EventType `json:"type"`
	Participant string    `json:"participant,omitempty"`
	Quality     string    `json:"quality,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// Provider is the media-room provider capability: it turns a credential into
// one live room connection. Room internals (transport, codecs) are the
// provider's business; the handle only consumes this interface.
type Provider interface {
	Connect(ctx context.Context, cred types.Credential) (Conn, error)
}

// Conn is one live provider connection. Events closes when the connection is
// gone, after a final EventDisconnected for provider-initiated drops.
type Conn interface {
	Events() <-chan Event
	SetLocalAudio(ctx context.Context, enabled bool) error
	WriteAudio(ctx context.Context, data []byte) error
	Close(ctx context.Context) error
}
