// Package handlers provides HTTP handlers for concentration analysis.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/modules/concentration"
	"github.com/clearline/riskwatch/internal/modules/portfolio"
	"github.com/clearline/riskwatch/internal/modules/rules"
)

// Handler handles concentration HTTP requests
type Handler struct {
	portfolios *portfolio.Repository
	holdings   *portfolio.HoldingRepository
	rules      *rules.Repository
	log        zerolog.Logger
}

// NewHandler creates a new concentration handler
func NewHandler(portfolios *portfolio.Repository, holdings *portfolio.HoldingRepository, rulesRepo *rules.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		portfolios: portfolios,
		holdings:   holdings,
		rules:      rulesRepo,
		log:        log.With().Str("handler", "concentration").Logger(),
	}
}

// RegisterRoutes registers all concentration routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/concentration", func(r chi.Router) {
		r.Get("/portfolios/{id}", h.HandleAnalyze)
	})
}

// HandleAnalyze handles GET /api/concentration/portfolios/{id}
// Runs the analyzer on demand against the configured thresholds.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.portfolios.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to get portfolio")
		http.Error(w, "Failed to get portfolio", http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, "Portfolio not found", http.StatusNotFound)
		return
	}

	holdings, err := h.holdings.GetByPortfolio(id)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to get holdings")
		http.Error(w, "Failed to get holdings", http.StatusInternalServerError)
		return
	}

	thresholds, err := h.rules.GetThresholds()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load thresholds")
		http.Error(w, "Failed to load thresholds", http.StatusInternalServerError)
		return
	}

	findings := concentration.Analyze(*p, holdings, thresholds)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"findings":   findings,
		"count":      len(findings),
		"thresholds": thresholds,
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
