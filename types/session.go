package types

// ConnectionState is the lifecycle state of one media-room session handle.
type ConnectionState string

const (
	ConnIdle         ConnectionState = "idle"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnDisconnected ConnectionState = "disconnected"
	ConnFailed       ConnectionState = "failed"
)

// Participant describes one remote participant visible through a session
// handle.
type Participant struct {
	Identity string `json:"identity"`
	Speaking bool   `json:"speaking"`
	HasAudio bool   `json:"has_audio"`
}

// SessionSnapshot is a point-in-time copy of a session handle's state.
type SessionSnapshot struct {
	ConnectionState    ConnectionState `json:"connection_state"`
	LocalAudioEnabled  bool            `json:"local_audio_enabled"`
	RemoteParticipants []Participant   `json:"remote_participants"`
}
