package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/sqlbson/telemetry"
	"github.com/rs/zerolog/log"
)

// NewRouter builds the admin chi router
func NewRouter(handlers *AdminHandlers) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", handlers.handleHealth)

	if metrics := telemetry.GetMetricsHandler(); metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.With(AuthMiddleware).Get("/documents/{table}/{column}/{rowid}", handlers.handleDocument)

	return r
}

// RegisterRoutes mounts the admin router on mux
func RegisterRoutes(mux *http.ServeMux, handlers *AdminHandlers) {
	mux.Handle("/", NewRouter(handlers))
	log.Info().Msg("Admin endpoints enabled at /healthz, /metrics and /documents/{table}/{column}/{rowid}")
}
