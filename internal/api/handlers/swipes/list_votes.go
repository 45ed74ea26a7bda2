package swipes

import (
	"net/http"
	"strconv"

	"Agora/internal/api/handlers"
	"Agora/internal/api/middleware"
	"Agora/internal/core/votes"
	"Agora/internal/logging"
)

// ListVotesHandler serves the user's vote history
type ListVotesHandler struct {
	service votes.Service
	logger  *logging.Logger
}

// NewListVotesHandler creates a new vote history handler
func NewListVotesHandler(service votes.Service, logger *logging.Logger) *ListVotesHandler {
	return &ListVotesHandler{service: service, logger: logging.OrNop(logger)}
}

// HandleListVotes returns the user's votes, newest first
// GET /swipes/votes?cursor=...&limit=20
func (h *ListVotesHandler) HandleListVotes(w http.ResponseWriter, r *http.Request) {
	req := votes.ListVotesRequest{UserID: middleware.GetUserID(r)}

	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "limit must be an integer")
			return
		}
		req.Limit = limit
	}
	if cursor := query.Get("cursor"); cursor != "" {
		req.Cursor = &cursor
	}

	resp, err := h.service.ListVotes(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}
