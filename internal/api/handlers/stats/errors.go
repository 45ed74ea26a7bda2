package stats

import (
	"errors"
	"net/http"

	"Agora/internal/api/handlers"
	"Agora/internal/core/statements"
	"Agora/internal/logging"
)

func handleServiceError(w http.ResponseWriter, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, statements.ErrStatementNotFound):
		handlers.WriteError(w, http.StatusNotFound, "NotFound", "Statement not found")
	default:
		logger.Error("stats handler error", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
	}
}
