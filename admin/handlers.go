package admin

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/maxpert/sqlbson/db"
	"github.com/maxpert/sqlbson/telemetry"
	"github.com/rs/zerolog/log"
)

// AdminHandlers serves health and document inspection endpoints
type AdminHandlers struct {
	db     *sql.DB
	codec  *db.Codec
	filter *TableFilter
	stats  telemetry.StatsProvider
}

// NewAdminHandlers creates a new AdminHandlers instance
func NewAdminHandlers(conn *sql.DB, codec *db.Codec, filter *TableFilter, stats telemetry.StatsProvider) *AdminHandlers {
	return &AdminHandlers{
		db:     conn,
		codec:  codec,
		filter: filter,
		stats:  stats,
	}
}

func (h *AdminHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	var outstanding int64
	if h.stats != nil {
		outstanding = h.stats.Outstanding()
	}

	status := "ok"
	code := http.StatusOK
	if err := h.db.PingContext(r.Context()); err != nil {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":              status,
		"outstanding_buffers": outstanding,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to encode health response")
	}
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	writeErrorKindResponse(w, status, message, "")
}

func writeErrorKindResponse(w http.ResponseWriter, status int, message, kind string) {
	response := map[string]interface{}{
		"error": message,
	}
	if kind != "" {
		response["kind"] = kind
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}
