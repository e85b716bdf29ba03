package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/warmline/warmline/history"
	"github.com/warmline/warmline/types"
)

// HistoryHandler serves archived transfer records.
type HistoryHandler struct {
	store  *history.Store
	logger *zap.Logger
}

// NewHistoryHandler creates the history endpoint handler.
func NewHistoryHandler(store *history.Store, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:  store,
		logger: logger.With(zap.String("handler", "history")),
	}
}

// HandleList serves GET /api/v1/history. Supports ?source_room= and ?limit=.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
				"limit must be a non-negative integer", h.logger)
			return
		}
		limit = n
	}

	var (
		records []history.Record
		err     error
	)
	if room := r.URL.Query().Get("source_room"); room != "" {
		records, err = h.store.BySourceRoom(r.Context(), room, limit)
	} else {
		records, err = h.store.List(r.Context(), limit)
	}
	if err != nil {
		WriteFromError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]interface{}{"records": records})
}

// HandleGet serves GET /api/v1/history/{id}.
func (h *HistoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	record, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFromError(w, err, h.logger)
		return
	}
	WriteSuccess(w, record)
}
