package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/timelapse/internal/sceneservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *sceneservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/runs", h.ListRuns)
	r.Get("/years/{year}/scenes", h.ListScenes)
	r.Get("/scenes/{id}", h.GetScene)
	r.Get("/satellites/{year}", h.SatelliteForYear)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
