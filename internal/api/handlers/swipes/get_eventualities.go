package swipes

import (
	"net/http"

	"Agora/internal/api/handlers"
	"Agora/internal/api/middleware"
	"Agora/internal/core/swipes"
	"Agora/internal/logging"
)

// GetEventualitiesHandler serves vote projections
type GetEventualitiesHandler struct {
	service swipes.Service
	logger  *logging.Logger
}

// NewGetEventualitiesHandler creates a new eventualities handler
func NewGetEventualitiesHandler(service swipes.Service, logger *logging.Logger) *GetEventualitiesHandler {
	return &GetEventualitiesHandler{service: service, logger: logging.OrNop(logger)}
}

// HandleGetEventualities projects the counters for every decision the user could cast
// POST /swipes/eventualities
//
// Request body: { "statementId": "..." }
func (h *GetEventualitiesHandler) HandleGetEventualities(w http.ResponseWriter, r *http.Request) {
	var req swipes.GetEventualitiesRequest
	if err := handlers.DecodeJSON(w, r, &req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}
	if req.StatementID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "statementId is required")
		return
	}

	req.UserID = middleware.GetUserID(r)

	resp, err := h.service.GetEventualities(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}
