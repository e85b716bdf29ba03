package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/warmline/warmline/broker"
	"github.com/warmline/warmline/types"
)

// TokenHandler mints room credentials for clients that join directly.
type TokenHandler struct {
	broker broker.Broker
	logger *zap.Logger
}

// NewTokenHandler creates the token endpoint handler.
func NewTokenHandler(b broker.Broker, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		broker: b,
		logger: logger.With(zap.String("handler", "token")),
	}
}

// TokenRequest asks for a credential granting identity access to room.
type TokenRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

// HandleIssue serves POST /api/v1/token.
func (h *TokenHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	var req TokenRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	cred, err := h.broker.Issue(r.Context(), req.Identity, req.Room)
	if err != nil {
		WriteFromError(w, err, h.logger)
		return
	}

	h.logger.Debug("credential issued",
		zap.String("identity", req.Identity), zap.String("room", req.Room))
	WriteSuccess(w, cred)
}
