package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/warmline/warmline/summary"
	"github.com/warmline/warmline/types"
)

// SummaryHandler generates a handoff summary without starting a transfer,
// so agents can preview what would be spoken.
type SummaryHandler struct {
	producer summary.Producer
	logger   *zap.Logger
}

// NewSummaryHandler creates the summary endpoint handler.
func NewSummaryHandler(p summary.Producer, logger *zap.Logger) *SummaryHandler {
	return &SummaryHandler{
		producer: p,
		logger:   logger.With(zap.String("handler", "summary")),
	}
}

// SummaryRequest carries the transcript to condense.
type SummaryRequest struct {
	Transcript string `json:"transcript"`
}

// SummaryResponse carries the generated summary.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// HandleGenerate serves POST /api/v1/summary.
func (h *SummaryHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest,
			"method not allowed", h.logger)
		return
	}

	var req SummaryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if req.Transcript == "" {
		WriteSuccess(w, SummaryResponse{Summary: summary.DefaultSummary})
		return
	}

	text, err := h.producer.Summarize(r.Context(), req.Transcript)
	if err != nil {
		WriteFromError(w, err, h.logger)
		return
	}
	WriteSuccess(w, SummaryResponse{Summary: text})
}
