package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

// fakeConn is a scriptable provider connection.
type fakeConn struct {
	events     chan Event
	audioErr   error
	closed     chan struct{}
	wroteAudio [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan Event, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Events() <-chan Event { return c.events }

func (c *fakeConn) SetLocalAudio(_ context.Context, enabled bool) error {
	return c.audioErr
}

func (c *fakeConn) WriteAudio(_ context.Context, data []byte) error {
	c.wroteAudio = append(c.wroteAudio, data)
	return nil
}

func (c *fakeConn) Close(_ context.Context) error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
		close(c.events)
	}
	return nil
}

// fakeProvider hands out scripted connections.
type fakeProvider struct {
	conn       *fakeConn
	connectErr error
	connects   int
}

func (p *fakeProvider) Connect(_ context.Context, _ types.Credential) (Conn, error) {
	p.connects++
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	return p.conn, nil
}

func testCred() types.Credential {
	return types.Credential{Token: "tok", Endpoint: "ws://x", Identity: "a1", Room: "support-1"}
}

func waitForState(t *testing.T, h *Handle, want types.ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never became %s (is %s)", want, h.State())
}

func TestHandle_ConnectAndAlreadyConnected(t *testing.T) {
	p := &fakeProvider{conn: newFakeConn()}
	h := NewHandle(p, zap.NewNop())

	require.NoError(t, h.Connect(context.Background(), testCred()))
	assert.Equal(t, types.ConnConnected, h.State())

	err := h.Connect(context.Background(), testCred())
	assert.Equal(t, types.ErrAlreadyConnected, types.GetErrorCode(err))
	assert.Equal(t, 1, p.connects, "second connect must not touch the provider")
}

func TestHandle_ConnectFailure(t *testing.T) {
	p := &fakeProvider{connectErr: errors.New("dial refused")}
	h := NewHandle(p, zap.NewNop())

	err := h.Connect(context.Background(), testCred())
	assert.Equal(t, types.ErrUpstreamUnavailable, types.GetErrorCode(err))
	assert.Equal(t, types.ConnFailed, h.State())
}

func TestHandle_ConnectRequiresCredential(t *testing.T) {
	h := NewHandle(&fakeProvider{conn: newFakeConn()}, zap.NewNop())
	err := h.Connect(context.Background(), types.Credential{})
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestHandle_DisconnectIdempotent(t *testing.T) {
	conn := newFakeConn()
	h := NewHandle(&fakeProvider{conn: conn}, zap.NewNop())

	// Disconnecting an idle handle is a no-op.
	h.Disconnect()
	assert.Equal(t, types.ConnDisconnected, h.State())

	require.NoError(t, h.Connect(context.Background(), testCred()))
	h.Disconnect()
	h.Disconnect()
	assert.Equal(t, types.ConnDisconnected, h.State())

	select {
	case <-conn.closed:
	default:
		t.Fatal("provider connection not closed")
	}
}

func TestHandle_ReconnectAfterDisconnect(t *testing.T) {
	p := &fakeProvider{conn: newFakeConn()}
	h := NewHandle(p, zap.NewNop())

	require.NoError(t, h.Connect(context.Background(), testCred()))
	h.Disconnect()

	p.conn = newFakeConn()
	require.NoError(t, h.Connect(context.Background(), testCred()))
	assert.Equal(t, types.ConnConnected, h.State())
	assert.Equal(t, 2, p.connects)
}

func TestHandle_ParticipantTracking(t *testing.T) {
	conn := newFakeConn()
	h := NewHandle(&fakeProvider{conn: conn}, zap.NewNop())
	require.NoError(t, h.Connect(context.Background(), testCred()))

	events := h.Subscribe()
	conn.events <- Event{Type: EventParticipantJoined, Participant: "b1"}
	conn.events <- Event{Type: EventRemoteAudioAvailable, Participant: "b1"}

	// Wait for both to be forwarded.
	for i := 0; i < 2; i++ {
		select {
		case <-events:
		case <-time.After(time.Second):
			t.Fatal("event not forwarded")
		}
	}

	snap := h.Snapshot()
	require.Len(t, snap.RemoteParticipants, 1)
	assert.Equal(t, "b1", snap.RemoteParticipants[0].Identity)
	assert.True(t, snap.RemoteParticipants[0].HasAudio)

	conn.events <- Event{Type: EventParticipantLeft, Participant: "b1"}
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("leave not forwarded")
	}
	assert.Empty(t, h.Snapshot().RemoteParticipants)
}

func TestHandle_UnsolicitedDisconnect(t *testing.T) {
	conn := newFakeConn()
	h := NewHandle(&fakeProvider{conn: conn}, zap.NewNop())
	require.NoError(t, h.Connect(context.Background(), testCred()))

	events := h.Subscribe()
	conn.events <- Event{Type: EventDisconnected, Reason: "server restart"}

	select {
	case ev := <-events:
		assert.Equal(t, EventDisconnected, ev.Type)
		assert.Equal(t, "server restart", ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("disconnect not surfaced")
	}
	waitForState(t, h, types.ConnDisconnected)
}

func TestHandle_StreamEndSynthesizesDisconnect(t *testing.T) {
	conn := newFakeConn()
	h := NewHandle(&fakeProvider{conn: conn}, zap.NewNop())
	require.NoError(t, h.Connect(context.Background(), testCred()))

	events := h.Subscribe()
	close(conn.events) // provider died without a reason

	select {
	case ev := <-events:
		assert.Equal(t, EventDisconnected, ev.Type)
		assert.Equal(t, "connection closed", ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("no synthesized disconnect")
	}
	waitForState(t, h, types.ConnDisconnected)
}

func TestHandle_OperatorDisconnectEmitsNoEvent(t *testing.T) {
	conn := newFakeConn()
	h := NewHandle(&fakeProvider{conn: conn}, zap.NewNop())
	require.NoError(t, h.Connect(context.Background(), testCred()))

	events := h.Subscribe()
	h.Disconnect()

	select {
	case ev := <-events:
		t.Fatalf("unexpected event after operator disconnect: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandle_LocalAudio(t *testing.T) {
	conn := newFakeConn()
	h := NewHandle(&fakeProvider{conn: conn}, zap.NewNop())

	err := h.EnableLocalAudio(context.Background())
	assert.Equal(t, types.ErrNotConnected, types.GetErrorCode(err))

	require.NoError(t, h.Connect(context.Background(), testCred()))
	require.NoError(t, h.EnableLocalAudio(context.Background()))
	assert.True(t, h.Snapshot().LocalAudioEnabled)

	h.DisableLocalAudio(context.Background())
	assert.False(t, h.Snapshot().LocalAudioEnabled)
}

func TestHandle_LocalAudioMediaError(t *testing.T) {
	conn := newFakeConn()
	conn.audioErr = errors.New("no microphone")
	h := NewHandle(&fakeProvider{conn: conn}, zap.NewNop())
	require.NoError(t, h.Connect(context.Background(), testCred()))

	err := h.EnableLocalAudio(context.Background())
	assert.Equal(t, types.ErrMediaFailure, types.GetErrorCode(err))
	assert.False(t, h.Snapshot().LocalAudioEnabled)
}

func TestHandle_WriteAudio(t *testing.T) {
	conn := newFakeConn()
	h := NewHandle(&fakeProvider{conn: conn}, zap.NewNop())

	err := h.WriteAudio(context.Background(), []byte{1, 2})
	assert.Equal(t, types.ErrNotConnected, types.GetErrorCode(err))

	require.NoError(t, h.Connect(context.Background(), testCred()))
	require.NoError(t, h.WriteAudio(context.Background(), []byte{1, 2}))
	require.Len(t, conn.wroteAudio, 1)
}
