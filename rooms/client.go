// Package rooms is a thin admin client for the media server's room API:
// create a room ahead of a transfer and list the rooms that exist.
package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

// Room describes one room known to the media server.
type Room struct {
	SID             string `json:"sid"`
	Name            string `json:"name"`
	NumParticipants int    `json:"num_participants"`
	CreationTime    int64  `json:"creation_time"`
	Metadata        string `json:"metadata,omitempty"`
}

// Client talks to the media server's room admin endpoints.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a room admin client. token authorizes admin calls.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(httpBase(baseURL), "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "rooms_client")),
	}
}

// httpBase rewrites a ws(s) signaling URL to its http(s) admin counterpart.
func httpBase(u string) string {
	switch {
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	}
	return u
}

type createRoomRequest struct {
	Name string `json:"name"`
}

type createRoomResponse struct {
	Room Room `json:"room"`
}

type listRoomsResponse struct {
	Rooms []Room `json:"rooms"`
}

// Create creates a room. Creating a room that already exists is not an
// error; transfers reuse the existing room.
func (c *Client) Create(ctx context.Context, name string) (Room, error) {
	if name == "" {
		return Room{}, types.NewError(types.ErrInvalidRequest, "room name is required")
	}

	body, _ := json.Marshal(createRoomRequest{Name: name})
	var out createRoomResponse
	if err := c.do(ctx, http.MethodPost, "/rooms", bytes.NewReader(body), &out); err != nil {
		return Room{}, err
	}

	c.logger.Debug("room created", zap.String("room", out.Room.Name))
	return out.Room, nil
}

// List returns all rooms.
func (c *Client) List(ctx context.Context) ([]Room, error) {
	var out listRoomsResponse
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to build room request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrUpstreamUnavailable, "room service unreachable").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, "room admin token rejected")
	case resp.StatusCode == http.StatusNotFound:
		return types.NewError(types.ErrNotFound, "room not found")
	case resp.StatusCode >= 400:
		return types.NewError(types.ErrUpstreamUnavailable,
			fmt.Sprintf("room service returned status %d", resp.StatusCode)).WithRetryable(true)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return types.NewError(types.ErrUpstreamUnavailable, "failed to read room response").WithCause(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return types.NewError(types.ErrUpstreamUnavailable, "malformed room response").WithCause(err)
	}
	return nil
}
