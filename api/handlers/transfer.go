package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/warmline/warmline/broker"
	"github.com/warmline/warmline/session"
	"github.com/warmline/warmline/transfer"
	"github.com/warmline/warmline/types"
)

// TransferService is the orchestrator surface the HTTP layer needs.
type TransferService interface {
	Start(ctx context.Context, req types.TransferRequest, source transfer.Session) (string, error)
	Status(id string) (types.TransferSnapshot, error)
	List() []types.TransferSnapshot
	RelocateCaller(ctx context.Context, id, callerIdentity string) error
	CompleteLegacy(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
}

// SourceDialer opens a connected session into the named source room. The
// orchestrator borrows the handle for the lifetime of the transfer.
type SourceDialer func(ctx context.Context, room string) (transfer.Session, error)

// NewObserverDialer builds a SourceDialer that mints an observer credential
// and connects a media session with it.
func NewObserverDialer(b broker.Broker, provider session.Provider, identity string, logger *zap.Logger) SourceDialer {
	if identity == "" {
		identity = "warmline-observer"
	}
	return func(ctx context.Context, room string) (transfer.Session, error) {
		cred, err := b.Issue(ctx, identity, room)
		if err != nil {
			return nil, err
		}
		handle := session.NewHandle(provider, logger)
		if err := handle.Connect(ctx, cred); err != nil {
			return nil, err
		}
		return handle, nil
	}
}

// TransferHandler exposes the warm-transfer lifecycle over HTTP.
type TransferHandler struct {
	service TransferService
	dial    SourceDialer
	logger  *zap.Logger
}

// NewTransferHandler creates the transfer endpoint handler.
func NewTransferHandler(service TransferService, dial SourceDialer, logger *zap.Logger) *TransferHandler {
	return &TransferHandler{
		service: service,
		dial:    dial,
		logger:  logger.With(zap.String("handler", "transfer")),
	}
}

// HandleTransfers serves POST (start) and GET (list) on /api/v1/transfers.
func (h *TransferHandler) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.start(w, r)
	case http.MethodGet:
		WriteSuccess(w, map[string]interface{}{"transfers": h.service.List()})
	default:
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
	}
}

func (h *TransferHandler) start(w http.ResponseWriter, r *http.Request) {
	var req types.TransferRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := req.Validate(); err != nil {
		WriteFromError(w, err, h.logger)
		return
	}

	source, err := h.dial(r.Context(), req.SourceRoom)
	if err != nil {
		h.logger.Warn("source room dial failed",
			zap.String("room", req.SourceRoom), zap.Error(err))
		WriteFromError(w, err, h.logger)
		return
	}

	id, err := h.service.Start(r.Context(), req, source)
	if err != nil {
		source.Disconnect()
		WriteFromError(w, err, h.logger)
		return
	}

	snap, err := h.service.Status(id)
	if err != nil {
		WriteFromError(w, err, h.logger)
		return
	}

	h.logger.Info("transfer started",
		zap.String("transfer_id", id), zap.String("source_room", req.SourceRoom))
	WriteJSON(w, http.StatusAccepted, Response{
		Success:   true,
		Data:      snap,
		Timestamp: snap.CreatedAt,
	})
}

// HandleStatus serves GET /api/v1/transfers/{id}.
func (h *TransferHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}
	snap, err := h.service.Status(r.PathValue("id"))
	if err != nil {
		WriteFromError(w, err, h.logger)
		return
	}
	WriteSuccess(w, snap)
}

// RelocateRequest names the caller participant to move.
type RelocateRequest struct {
	CallerIdentity string `json:"caller_identity"`
}

// HandleRelocate serves POST /api/v1/transfers/{id}/relocate. The relocation
// outcome is asynchronous; poll the status endpoint for the result.
func (h *TransferHandler) HandleRelocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	var req RelocateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	id := r.PathValue("id")
	if err := h.service.RelocateCaller(r.Context(), id, req.CallerIdentity); err != nil {
		WriteFromError(w, err, h.logger)
		return
	}
	h.logger.Info("relocation requested",
		zap.String("transfer_id", id), zap.String("caller_identity", req.CallerIdentity))
	WriteJSON(w, http.StatusAccepted, Response{Success: true})
}

// HandleCompleteLegacy serves POST /api/v1/transfers/{id}/complete-legacy.
func (h *TransferHandler) HandleCompleteLegacy(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "complete-legacy", h.service.CompleteLegacy)
}

// HandleCancel serves POST /api/v1/transfers/{id}/cancel.
func (h *TransferHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "cancel", h.service.Cancel)
}

func (h *TransferHandler) command(w http.ResponseWriter, r *http.Request, name string, op func(context.Context, string) error) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	id := r.PathValue("id")
	if err := op(r.Context(), id); err != nil {
		WriteFromError(w, err, h.logger)
		return
	}

	snap, err := h.service.Status(id)
	if err != nil {
		WriteFromError(w, err, h.logger)
		return
	}
	h.logger.Info("transfer command applied",
		zap.String("transfer_id", id), zap.String("command", name))
	WriteSuccess(w, snap)
}
