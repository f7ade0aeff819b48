package internal

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/timelapse/internal/api"
	"github.com/starford/timelapse/internal/mcpserver"
	"github.com/starford/timelapse/internal/observability"
	"github.com/starford/timelapse/internal/sceneservice"
	"github.com/starford/timelapse/internal/sse"
)

// mcpVersion is reported to MCP clients.
const mcpVersion = "1.0.0"

// newStatusRouter builds the status server routes.
func newStatusRouter(cfg StatusConfig, svc *sceneservice.Service, broker *sse.Broker, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// Mount API routes (and SSE at /api/events) under /api.
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	mcp := mcpserver.New(svc, mcpVersion)
	r.With(api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)).Handle("/mcp", mcp.Handler())

	return r
}
