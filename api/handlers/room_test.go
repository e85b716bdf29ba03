package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warmline/warmline/rooms"
)

func newRoomEnv(t *testing.T, upstream http.HandlerFunc) *RoomHandler {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	client := rooms.NewClient(srv.URL, "admin-token", 2*time.Second, zaptest.NewLogger(t))
	return NewRoomHandler(client, zaptest.NewLogger(t))
}

func TestRoomHandler_Create(t *testing.T) {
	h := newRoomEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"room":{"sid":"RM_1","name":"support-1-transfer-1"}}`))
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/rooms",
		strings.NewReader(`{"name":"support-1-transfer-1"}`))
	h.HandleRooms(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "support-1-transfer-1", data["name"])
}

func TestRoomHandler_List(t *testing.T) {
	h := newRoomEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rooms":[{"sid":"RM_1","name":"support-1"},{"sid":"RM_2","name":"support-2"}]}`))
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	h.HandleRooms(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["rooms"], 2)
}

func TestRoomHandler_UpstreamFailure(t *testing.T) {
	h := newRoomEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/rooms",
		strings.NewReader(`{"name":"support-1"}`))
	h.HandleRooms(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
