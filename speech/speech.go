// Package speech delivers a spoken utterance into a media room and reports
// its outcome. The orchestrator treats delivery failure as non-fatal: the
// summary text still exists and can be read out manually.
package speech

import "context"

// EventKind classifies delivery events.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event is one signal on a delivery's event stream. Reason is set on Failed.
type Event struct {
	Kind   EventKind
	Reason string
}

// Speaker speaks a string and signals completion or failure. Cancel stops
// the active utterance immediately and discards its pending completion —
// after Cancel the event stream closes without a terminal event.
type Speaker interface {
	Speak(ctx context.Context, text string) (<-chan Event, error)
	Cancel()
}

// Synthesizer turns text into a stream of audio frames. The returned channel
// closes when synthesis finishes; errors after the stream has started are
// reported in-band via Frame.Err.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan Frame, error)
}

// Frame is one chunk of synthesized audio.
type Frame struct {
	Data       []byte
	SampleRate int
	Final      bool
	Err        error
}

// Sink receives synthesized audio, typically a session handle publishing
// into the handoff room.
type Sink interface {
	WriteAudio(ctx context.Context, data []byte) error
}
