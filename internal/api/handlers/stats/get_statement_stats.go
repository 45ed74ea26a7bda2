package stats

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"Agora/internal/api/handlers"
	"Agora/internal/core/statements"
	"Agora/internal/core/stats"
	"Agora/internal/logging"
)

// StatementStatsResponse carries the live counters of one statement
type StatementStatsResponse struct {
	StatementID uuid.UUID        `json:"statementId"`
	Stats       statements.Stats `json:"stats"`
}

// GetStatementStatsHandler serves live counters
type GetStatementStatsHandler struct {
	service stats.Service
	logger  *logging.Logger
}

// NewGetStatementStatsHandler creates a new statement stats handler
func NewGetStatementStatsHandler(service stats.Service, logger *logging.Logger) *GetStatementStatsHandler {
	return &GetStatementStatsHandler{service: service, logger: logging.OrNop(logger)}
}

// HandleGetStatementStats returns the counters of an active statement
// GET /statements/{id}/stats
func (h *GetStatementStatsHandler) HandleGetStatementStats(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "id must be a valid UUID")
		return
	}

	s, err := h.service.GetStats(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, StatementStatsResponse{StatementID: id, Stats: s})
}
