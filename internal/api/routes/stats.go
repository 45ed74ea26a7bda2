package routes

import (
	"github.com/go-chi/chi/v5"

	statshandlers "Agora/internal/api/handlers/stats"
	"Agora/internal/api/middleware"
	"Agora/internal/core/stats"
	"Agora/internal/logging"
)

// RegisterStatsRoutes registers the read-only statistics endpoints. They are public;
// OptionalAuth only attaches the caller's identity for logging and rate limiting.
func RegisterStatsRoutes(r chi.Router, service stats.Service, authMiddleware *middleware.SessionAuth, logger *logging.Logger) {
	statementStatsHandler := statshandlers.NewGetStatementStatsHandler(service, logger)
	voteStatsHandler := statshandlers.NewGetVoteStatsHandler(service, logger)

	r.With(authMiddleware.OptionalAuth).Get("/statements/{id}/stats", statementStatsHandler.HandleGetStatementStats)
	r.With(authMiddleware.OptionalAuth).Get("/votes/stats/{statementId}", voteStatsHandler.HandleGetVoteStats)
}
