package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/warmline/warmline/rooms"
	"github.com/warmline/warmline/types"
)

// RoomHandler exposes the media server's room admin operations.
type RoomHandler struct {
	client *rooms.Client
	logger *zap.Logger
}

// NewRoomHandler creates the rooms endpoint handler.
func NewRoomHandler(client *rooms.Client, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		client: client,
		logger: logger.With(zap.String("handler", "rooms")),
	}
}

// CreateRoomRequest names the room to create.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// HandleRooms serves POST (create) and GET (list) on /api/v1/rooms.
func (h *RoomHandler) HandleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
	}
}

func (h *RoomHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	room, err := h.client.Create(r.Context(), req.Name)
	if err != nil {
		WriteFromError(w, err, h.logger)
		return
	}
	WriteSuccess(w, room)
}

func (h *RoomHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.List(r.Context())
	if err != nil {
		WriteFromError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]interface{}{"rooms": list})
}
