package swipes

import (
	"errors"
	"io"
	"net/http"

	"Agora/internal/api/handlers"
	"Agora/internal/api/middleware"
	"Agora/internal/core/swipes"
	"Agora/internal/logging"
)

// FeedObserver is told the size of each served page
type FeedObserver interface {
	ObserveFeedPage(items int)
}

// GetFeedHandler serves the swipe feed
type GetFeedHandler struct {
	service  swipes.Service
	observer FeedObserver
	logger   *logging.Logger
}

// NewGetFeedHandler creates a new feed handler. observer may be nil.
func NewGetFeedHandler(service swipes.Service, observer FeedObserver, logger *logging.Logger) *GetFeedHandler {
	return &GetFeedHandler{
		service:  service,
		observer: observer,
		logger:   logging.OrNop(logger),
	}
}

// HandleGetFeed returns the next page of statements the user hasn't voted on
// POST /swipes/feed
//
// Request body: { "filter": {"topic": "...", "region": "..."}, "cursor": "...", "limit": 20 }
func (h *GetFeedHandler) HandleGetFeed(w http.ResponseWriter, r *http.Request) {
	// An empty body asks for the first unfiltered page
	var req swipes.GetFeedRequest
	if err := handlers.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	// Identity comes from the session, never from the body
	req.UserID = middleware.GetUserID(r)

	resp, err := h.service.GetFeed(r.Context(), req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if h.observer != nil {
		h.observer.ObserveFeedPage(len(resp.Items))
	}
	handlers.WriteJSON(w, http.StatusOK, resp)
}
