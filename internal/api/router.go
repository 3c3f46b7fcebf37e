package api

import (
	"log/slog"
	"net/http"

	"github.com/bcnelson/facepoke-broker/internal/api/handler"
	"github.com/bcnelson/facepoke-broker/internal/api/middleware"
	"github.com/bcnelson/facepoke-broker/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options configures the admin router.
type Options struct {
	// AdminToken guards /api/v1. The routes are not mounted when it is empty.
	AdminToken  string
	BotUsername string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(keys *service.KeyService, log *slog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(log))

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.AdminToken == "" {
		return r
	}

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(opts.AdminToken))

		keyHandler := handler.NewKeyHandler(keys, log, opts.BotUsername)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{prefix}", keyHandler.Delete)
		r.Post("/keys/revoke", keyHandler.Revoke)
	})

	return r
}
