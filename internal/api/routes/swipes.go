package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	swipehandlers "Agora/internal/api/handlers/swipes"
	"Agora/internal/api/middleware"
	"Agora/internal/core/swipes"
	"Agora/internal/core/votes"
	"Agora/internal/logging"
)

// RegisterSwipeRoutes registers the swipe feed and voting endpoints on the router.
// voteLimit wraps the vote endpoint; pass nil to leave it unlimited.
func RegisterSwipeRoutes(
	r chi.Router,
	swipeService swipes.Service,
	voteService votes.Service,
	authMiddleware *middleware.SessionAuth,
	feedObserver swipehandlers.FeedObserver,
	voteLimit func(http.Handler) http.Handler,
	logger *logging.Logger,
) {
	// Initialize handlers
	feedHandler := swipehandlers.NewGetFeedHandler(swipeService, feedObserver, logger)
	eventualitiesHandler := swipehandlers.NewGetEventualitiesHandler(swipeService, logger)
	recordVoteHandler := swipehandlers.NewRecordVoteHandler(voteService, logger)
	listVotesHandler := swipehandlers.NewListVotesHandler(voteService, logger)

	r.Route("/swipes", func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)

		// Next page of unvoted statements
		r.Post("/feed", feedHandler.HandleGetFeed)

		// Projected counters for each possible decision
		r.Post("/eventualities", eventualitiesHandler.HandleGetEventualities)

		// Record or change a vote
		if voteLimit != nil {
			r.With(voteLimit).Post("/vote", recordVoteHandler.HandleRecordVote)
		} else {
			r.Post("/vote", recordVoteHandler.HandleRecordVote)
		}

		// Caller's vote history
		r.Get("/votes", listVotesHandler.HandleListVotes)
	})
}
