package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warmline/warmline/types"
)

func TestClient_Create(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rooms", r.URL.Path)
		assert.Equal(t, "Bearer admin-tok", r.Header.Get("Authorization"))

		var req createRoomRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(createRoomResponse{Room: Room{
			SID: "RM_1", Name: req.Name, CreationTime: 1700000000,
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "admin-tok", time.Second, zap.NewNop())
	room, err := c.Create(context.Background(), "support-1-transfer-42")
	require.NoError(t, err)
	assert.Equal(t, "support-1-transfer-42", room.Name)
	assert.Equal(t, "RM_1", room.SID)
}

func TestClient_CreateValidation(t *testing.T) {
	c := NewClient("http://unused", "t", time.Second, zap.NewNop())
	_, err := c.Create(context.Background(), "")
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestClient_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(listRoomsResponse{Rooms: []Room{
			{Name: "support-1", NumParticipants: 2},
			{Name: "support-1-transfer-42", NumParticipants: 1},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "admin-tok", time.Second, zap.NewNop())
	rooms, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "support-1", rooms[0].Name)
}

func TestClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", time.Second, zap.NewNop())
	_, err := c.List(context.Background())
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "t", 200*time.Millisecond, zap.NewNop())
	_, err := c.List(context.Background())
	assert.Equal(t, types.ErrUpstreamUnavailable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestHTTPBase(t *testing.T) {
	assert.Equal(t, "https://media.example.com", httpBase("wss://media.example.com"))
	assert.Equal(t, "http://localhost:7880", httpBase("ws://localhost:7880"))
	assert.Equal(t, "https://already.http", httpBase("https://already.http"))
}
