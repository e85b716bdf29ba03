package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

// mockSynth replays a scripted frame sequence.
type mockSynth struct {
	frames   []Frame
	startErr error
	block    bool
}

func (m *mockSynth) Synthesize(ctx context.Context, text string) (<-chan Frame, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	out := make(chan Frame)
	go func() {
		defer close(out)
		if m.block {
			<-ctx.Done()
			return
		}
		for _, f := range m.frames {
			select {
			case <-ctx.Done():
				return
			case out <- f:
			}
		}
	}()
	return out, nil
}

// mockSink records written frames.
type mockSink struct {
	mu       sync.Mutex
	written  int
	writeErr error
}

func (m *mockSink) WriteAudio(_ context.Context, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written++
	return nil
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timeout draining speech events")
		}
	}
}

func TestDelivery_SpeakCompletes(t *testing.T) {
	synth := &mockSynth{frames: []Frame{{Data: []byte{1}}, {Data: []byte{2}, Final: true}}}
	sink := &mockSink{}
	d := NewDelivery(synth, sink, zap.NewNop())

	events, err := d.Speak(context.Background(), "hello agent B")
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, EventStarted, got[0].Kind)
	assert.Equal(t, EventCompleted, got[1].Kind)
	assert.Equal(t, 2, sink.count())
}

func TestDelivery_SpeakEmptyText(t *testing.T) {
	d := NewDelivery(&mockSynth{}, &mockSink{}, zap.NewNop())
	_, err := d.Speak(context.Background(), "")
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestDelivery_SynthStartFailure(t *testing.T) {
	synth := &mockSynth{startErr: errors.New("tts down")}
	d := NewDelivery(synth, &mockSink{}, zap.NewNop())

	events, err := d.Speak(context.Background(), "hello")
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	assert.Equal(t, EventFailed, got[0].Kind)
	assert.Contains(t, got[0].Reason, "tts down")
}

func TestDelivery_MidStreamFailure(t *testing.T) {
	synth := &mockSynth{frames: []Frame{{Data: []byte{1}}, {Err: errors.New("codec error")}}}
	d := NewDelivery(synth, &mockSink{}, zap.NewNop())

	events, err := d.Speak(context.Background(), "hello")
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, EventStarted, got[0].Kind)
	assert.Equal(t, EventFailed, got[1].Kind)
}

func TestDelivery_SinkFailure(t *testing.T) {
	synth := &mockSynth{frames: []Frame{{Data: []byte{1}}}}
	sink := &mockSink{writeErr: errors.New("track closed")}
	d := NewDelivery(synth, sink, zap.NewNop())

	events, err := d.Speak(context.Background(), "hello")
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, EventFailed, got[1].Kind)
	assert.Contains(t, got[1].Reason, "track closed")
}

func TestDelivery_CancelDiscardsCompletion(t *testing.T) {
	synth := &mockSynth{block: true}
	d := NewDelivery(synth, &mockSink{}, zap.NewNop())

	events, err := d.Speak(context.Background(), "hello")
	require.NoError(t, err)

	// Wait for Started, then cancel.
	select {
	case ev := <-events:
		require.Equal(t, EventStarted, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("no Started event")
	}
	d.Cancel()

	got := collect(t, events)
	assert.Empty(t, got, "cancel must not deliver a terminal event")
}

func TestDelivery_SecondSpeakWhileActive(t *testing.T) {
	synth := &mockSynth{block: true}
	d := NewDelivery(synth, &mockSink{}, zap.NewNop())

	events, err := d.Speak(context.Background(), "first")
	require.NoError(t, err)
	<-events // Started

	_, err = d.Speak(context.Background(), "second")
	assert.Equal(t, types.ErrDeliveryFailure, types.GetErrorCode(err))

	d.Cancel()
	collect(t, events)

	// After the first finishes, a new utterance is accepted again.
	synth2 := &mockSynth{frames: []Frame{{Data: []byte{1}}}}
	d2 := NewDelivery(synth2, &mockSink{}, zap.NewNop())
	ev2, err := d2.Speak(context.Background(), "third")
	require.NoError(t, err)
	got := collect(t, ev2)
	assert.Equal(t, EventCompleted, got[len(got)-1].Kind)
}

func TestPacedSynthesizer_StreamsAndCancels(t *testing.T) {
	s := NewPacedSynthesizer(600, 8000, 10*time.Millisecond)

	frames, err := s.Synthesize(context.Background(), "one two three")
	require.NoError(t, err)

	var n int
	for f := range frames {
		assert.NotEmpty(t, f.Data)
		n++
	}
	assert.Greater(t, n, 0)

	ctx, cancel := context.WithCancel(context.Background())
	frames, err = s.Synthesize(ctx, "a much longer sentence that would take a while to speak out loud")
	require.NoError(t, err)
	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancel")
		}
	}
}
