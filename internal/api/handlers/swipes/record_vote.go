package swipes

import (
	"net/http"

	"Agora/internal/api/handlers"
	"Agora/internal/api/middleware"
	"Agora/internal/core/statements"
	"Agora/internal/core/votes"
	"Agora/internal/logging"
)

// RecordVoteHandler handles swipe votes
type RecordVoteHandler struct {
	service votes.Service
	logger  *logging.Logger
}

// NewRecordVoteHandler creates a new vote handler
func NewRecordVoteHandler(service votes.Service, logger *logging.Logger) *RecordVoteHandler {
	return &RecordVoteHandler{service: service, logger: logging.OrNop(logger)}
}

// RecordVoteResponse is the body of a successful vote
type RecordVoteResponse struct {
	StatementID string           `json:"statementId"`
	Decision    votes.Decision   `json:"decision"`
	Previous    votes.Decision   `json:"previous,omitempty"`
	Transition  votes.Transition `json:"transition"`
	Stats       statements.Stats `json:"stats"`
	OK          bool             `json:"ok"`
}

// HandleRecordVote records or changes the user's vote on a statement
// POST /swipes/vote
//
// Request body: { "statementId": "...", "decision": "agree" | "neutral" | "disagree", "source": "swipe" }
func (h *RecordVoteHandler) HandleRecordVote(w http.ResponseWriter, r *http.Request) {
	var req votes.RecordVoteRequest
	if err := handlers.DecodeJSON(w, r, &req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}
	if req.StatementID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "statementId is required")
		return
	}
	if req.Decision == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "decision is required")
		return
	}

	req.UserID = middleware.GetUserID(r)

	resp, err := h.service.RecordVote(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	handlers.WriteJSON(w, http.StatusOK, RecordVoteResponse{
		OK:          true,
		StatementID: resp.StatementID.String(),
		Decision:    resp.Decision,
		Previous:    resp.Previous,
		Transition:  resp.Transition,
		Stats:       resp.Stats,
	})
}
