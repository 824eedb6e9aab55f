// Package handlers provides HTTP handlers for risk rule configuration.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/modules/concentration"
	"github.com/clearline/riskwatch/internal/modules/rules"
	"github.com/clearline/riskwatch/internal/modules/stress"
)

// Handler handles rule configuration HTTP requests
type Handler struct {
	rules *rules.Repository
	log   zerolog.Logger
}

// NewHandler creates a new rules handler
func NewHandler(rulesRepo *rules.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		rules: rulesRepo,
		log:   log.With().Str("handler", "rules").Logger(),
	}
}

// RegisterRoutes registers all rules routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Get("/thresholds", h.HandleGetThresholds)
		r.Put("/thresholds", h.HandleSaveThresholds)
		r.Get("/scenarios", h.HandleListScenarios)
		r.Post("/scenarios", h.HandleCreateScenario)
		r.Delete("/scenarios/{id}", h.HandleDeleteScenario)
	})
}

// HandleGetThresholds handles GET /api/rules/thresholds
func (h *Handler) HandleGetThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := h.rules.GetThresholds()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load thresholds")
		http.Error(w, "Failed to load thresholds", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"thresholds": thresholds,
	}))
}

// HandleSaveThresholds handles PUT /api/rules/thresholds
func (h *Handler) HandleSaveThresholds(w http.ResponseWriter, r *http.Request) {
	var t concentration.Thresholds
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if t.Sector <= 0 || t.Sector > 1 || t.Geographic <= 0 || t.Geographic > 1 {
		http.Error(w, "thresholds must be fractions between 0 and 1", http.StatusBadRequest)
		return
	}
	if t.AssetClass != nil && (*t.AssetClass <= 0 || *t.AssetClass > 1) {
		http.Error(w, "asset class threshold must be a fraction between 0 and 1", http.StatusBadRequest)
		return
	}

	if err := h.rules.SaveThresholds(t); err != nil {
		h.log.Error().Err(err).Msg("Failed to save thresholds")
		http.Error(w, "Failed to save thresholds", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"thresholds": t,
	}))
}

// HandleListScenarios handles GET /api/rules/scenarios
func (h *Handler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.rules.GetScenarios()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load scenarios")
		http.Error(w, "Failed to load scenarios", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"scenarios": scenarios,
		"count":     len(scenarios),
	}))
}

// HandleCreateScenario handles POST /api/rules/scenarios
func (h *Handler) HandleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var s stress.Scenario
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	id, err := h.rules.CreateScenario(s)
	if err != nil {
		h.log.Error().Err(err).Str("scenario", s.Name).Msg("Failed to create scenario")
		http.Error(w, "Failed to create scenario", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{
		"scenario": rules.StoredScenario{ID: id, Scenario: s},
	}))
}

// HandleDeleteScenario handles DELETE /api/rules/scenarios/{id}
func (h *Handler) HandleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.rules.DeleteScenario(id); err != nil {
		h.log.Error().Err(err).Str("scenario_id", id).Msg("Failed to delete scenario")
		http.Error(w, "Scenario not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"deleted": id,
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
