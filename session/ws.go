package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

// WSProvider connects to the media provider's signaling plane over WebSocket.
// Participant and track lifecycle arrives as JSON text messages; published
// audio leaves as binary messages.
type WSProvider struct {
	dialTimeout time.Duration
	logger      *zap.Logger
}

// NewWSProvider creates a WebSocket signaling provider.
func NewWSProvider(dialTimeout time.Duration, logger *zap.Logger) *WSProvider {
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSProvider{
		dialTimeout: dialTimeout,
		logger:      logger.With(zap.String("component", "ws_provider")),
	}
}

// signalMessage is the wire shape of one signaling message, both directions.
type signalMessage struct {
	Type     string `json:"type"`
	Room     string `json:"room,omitempty"`
	Identity string `json:"identity,omitempty"`
	Token    string `json:"token,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
	Quality  string `json:"quality,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Connect dials the signaling endpoint, joins the credential's room, and
// returns a live connection.
func (p *WSProvider) Connect(ctx context.Context, cred types.Credential) (Conn, error) {
	endpoint, err := joinURL(cred)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "invalid signaling endpoint").WithCause(err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, endpoint, nil)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamUnavailable, "signaling dial failed").
			WithCause(err).WithRetryable(true)
	}

	join := signalMessage{Type: "join", Room: cred.Room, Identity: cred.Identity, Token: cred.Token}
	if err := writeJSON(dialCtx, ws, join); err != nil {
		ws.Close(websocket.StatusInternalError, "join failed")
		return nil, types.NewError(types.ErrUpstreamUnavailable, "room join failed").WithCause(err)
	}

	conn := &wsConn{
		ws:     ws,
		events: make(chan Event, 32),
		logger: p.logger.With(zap.String("room", cred.Room), zap.String("identity", cred.Identity)),
	}
	go conn.readLoop()

	p.logger.Debug("signaling connected", zap.String("room", cred.Room))
	return conn, nil
}

func joinURL(cred types.Credential) (string, error) {
	u, err := url.Parse(cred.Endpoint)
	if err != nil {
		return "", err
	}
	u.Path = "/rtc"
	q := u.Query()
	q.Set("access_token", cred.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func writeJSON(ctx context.Context, ws *websocket.Conn, msg signalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

// wsConn is one live signaling connection.
type wsConn struct {
	ws     *websocket.Conn
	events chan Event
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Events returns the connection's event stream.
func (c *wsConn) Events() <-chan Event {
	return c.events
}

// SetLocalAudio toggles the local audio track.
func (c *wsConn) SetLocalAudio(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	return writeJSON(ctx, c.ws, signalMessage{Type: "set_audio", Enabled: enabled})
}

// WriteAudio publishes one binary audio frame.
func (c *wsConn) WriteAudio(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	return c.ws.Write(ctx, websocket.MessageBinary, data)
}

// Close shuts the connection down cleanly. Idempotent.
func (c *wsConn) Close(_ context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.ws.Close(websocket.StatusNormalClosure, "leaving room")
}

// readLoop translates signaling messages into session events until the
// socket dies. The events channel closes when the loop exits.
func (c *wsConn) readLoop() {
	defer close(c.events)

	for {
		kind, data, err := c.ws.Read(context.Background())
		if err != nil {
			c.mu.Lock()
			operatorClose := c.closed
			c.mu.Unlock()
			if !operatorClose {
				c.emit(Event{Type: EventDisconnected, Reason: closeReason(err)})
			}
			return
		}
		if kind != websocket.MessageText {
			continue
		}

		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropping malformed signal", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "participant_joined":
			c.emit(Event{Type: EventParticipantJoined, Participant: msg.Identity})
		case "participant_left":
			c.emit(Event{Type: EventParticipantLeft, Participant: msg.Identity})
		case "track_published":
			c.emit(Event{Type: EventRemoteAudioAvailable, Participant: msg.Identity})
		case "track_unpublished":
			c.emit(Event{Type: EventRemoteAudioRemoved, Participant: msg.Identity})
		case "quality":
			c.emit(Event{Type: EventConnectionQuality, Participant: msg.Identity, Quality: msg.Quality})
		case "disconnect":
			c.emit(Event{Type: EventDisconnected, Reason: msg.Reason})
			return
		default:
			c.logger.Debug("ignoring signal", zap.String("type", msg.Type))
		}
	}
}

func (c *wsConn) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Debug("dropping event, subscriber too slow", zap.String("type", string(ev.Type)))
	}
}

func closeReason(err error) string {
	status := websocket.CloseStatus(err)
	if status != -1 {
		return fmt.Sprintf("connection closed (%d)", status)
	}
	return err.Error()
}
