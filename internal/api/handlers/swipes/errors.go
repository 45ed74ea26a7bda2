package swipes

import (
	"errors"
	"net/http"

	"Agora/internal/api/handlers"
	"Agora/internal/core/statements"
	"Agora/internal/core/swipes"
	"Agora/internal/core/votes"
	"Agora/internal/logging"
)

// handleServiceError converts service errors to stable HTTP error codes
func handleServiceError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var filterErr *swipes.FilterError
	switch {
	case errors.Is(err, swipes.ErrUnauthenticated), errors.Is(err, votes.ErrUnauthenticated):
		handlers.WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "Authentication required")
	case errors.As(err, &filterErr):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidFilter", filterErr.Message)
	case errors.Is(err, swipes.ErrInvalidStatementID), errors.Is(err, votes.ErrInvalidStatementID):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "statementId must be a valid UUID")
	case errors.Is(err, votes.ErrInvalidDecision):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "decision must be 'agree', 'neutral' or 'disagree'")
	case errors.Is(err, votes.ErrInvalidSource):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "source must be a short lowercase identifier")
	case errors.Is(err, statements.ErrStatementNotFound):
		handlers.WriteError(w, http.StatusNotFound, "NotFound", "Statement not found")
	default:
		logger.Error("swipes handler error", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
	}
}
