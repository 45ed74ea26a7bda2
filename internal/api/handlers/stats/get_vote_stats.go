package stats

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"Agora/internal/api/handlers"
	"Agora/internal/core/statements"
	"Agora/internal/core/stats"
	"Agora/internal/logging"
)

// VoteStatsResponse carries counters plus the bucketed vote history
type VoteStatsResponse struct {
	Timeseries  *stats.Timeseries `json:"timeseries"`
	StatementID uuid.UUID         `json:"statementId"`
	Stats       statements.Stats  `json:"stats"`
}

// GetVoteStatsHandler serves counters with their timeseries
type GetVoteStatsHandler struct {
	service stats.Service
	logger  *logging.Logger
}

// NewGetVoteStatsHandler creates a new vote stats handler
func NewGetVoteStatsHandler(service stats.Service, logger *logging.Logger) *GetVoteStatsHandler {
	return &GetVoteStatsHandler{service: service, logger: logging.OrNop(logger)}
}

// HandleGetVoteStats returns counters and a bucketed timeseries for a statement.
// Unknown or inactive statements yield zeroed counters and an empty timeseries.
// GET /votes/stats/{statementId}?buckets=10
func (h *GetVoteStatsHandler) HandleGetVoteStats(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "statementId"))
	if err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "statementId must be a valid UUID")
		return
	}

	var buckets int
	if raw := r.URL.Query().Get("buckets"); raw != "" {
		buckets, err = strconv.Atoi(raw)
		if err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "buckets must be an integer")
			return
		}
	}

	resp := VoteStatsResponse{StatementID: id}

	resp.Stats, err = h.service.GetStats(r.Context(), id)
	if errors.Is(err, statements.ErrStatementNotFound) {
		resp.Timeseries = &stats.Timeseries{Buckets: []stats.TimeseriesPoint{}}
		handlers.WriteJSON(w, http.StatusOK, resp)
		return
	}
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp.Timeseries, err = h.service.GetTimeseries(r.Context(), id, buckets)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, resp)
}
