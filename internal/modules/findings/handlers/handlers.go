// Package handlers provides HTTP handlers for scan findings.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/modules/findings"
)

// Handler handles findings HTTP requests
type Handler struct {
	findings *findings.Repository
	log      zerolog.Logger
}

// NewHandler creates a new findings handler
func NewHandler(findingsRepo *findings.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		findings: findingsRepo,
		log:      log.With().Str("handler", "findings").Logger(),
	}
}

// RegisterRoutes registers all findings routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/findings", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/{id}/acknowledge", h.HandleAcknowledge)
	})
}

// HandleList handles GET /api/findings
// Filters: ?portfolio_id=... or ?scan_id=...; unfiltered returns all
// unacknowledged findings.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		stored []findings.StoredFinding
		err    error
	)

	switch {
	case r.URL.Query().Get("portfolio_id") != "":
		stored, err = h.findings.GetByPortfolio(r.URL.Query().Get("portfolio_id"))
	case r.URL.Query().Get("scan_id") != "":
		stored, err = h.findings.GetByScan(r.URL.Query().Get("scan_id"))
	default:
		stored, err = h.findings.GetUnacknowledged()
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load findings")
		http.Error(w, "Failed to load findings", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"findings": stored,
		"count":    len(stored),
	}))
}

// HandleAcknowledge handles POST /api/findings/{id}/acknowledge
func (h *Handler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.findings.Acknowledge(id); err != nil {
		h.log.Error().Err(err).Str("finding_id", id).Msg("Failed to acknowledge finding")
		http.Error(w, "Finding not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"acknowledged": id,
	}))
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
