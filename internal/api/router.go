package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/linkgrabba/internal/api/handler"
	mw "github.com/iconidentify/linkgrabba/internal/api/middleware"
)

// statsTimeout bounds the stats endpoint. Sessions and downloads are
// long-lived and carry no timeout.
const statsTimeout = 30 * time.Second

// Handlers groups the HTTP handlers served by the router.
type Handlers struct {
	Session  *handler.SessionHandler
	Download *handler.DownloadHandler
	Health   *handler.HealthHandler
	UI       *handler.UIHandler
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h Handlers, apiKey string, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)

	// Landing page (no auth - it forwards ?key= to the endpoints below)
	r.Get("/", h.UI.Index)

	r.Group(func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/ws/extract", h.Session.Extract)
		r.Get("/download", h.Download.Download)
	})

	// API v1 (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))
		r.Use(middleware.Timeout(statsTimeout))

		r.Get("/stats", h.Health.Stats)
	})

	return r
}
