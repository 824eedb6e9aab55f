// Package handlers provides HTTP handlers for stress testing.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/domain"
	"github.com/clearline/riskwatch/internal/modules/findings"
	"github.com/clearline/riskwatch/internal/modules/portfolio"
	"github.com/clearline/riskwatch/internal/modules/rules"
	"github.com/clearline/riskwatch/internal/modules/stress"
)

// Handler handles stress test HTTP requests
type Handler struct {
	portfolios *portfolio.Repository
	holdings   *portfolio.HoldingRepository
	rules      *rules.Repository
	findings   *findings.Repository
	log        zerolog.Logger
}

// NewHandler creates a new stress handler
func NewHandler(
	portfolios *portfolio.Repository,
	holdings *portfolio.HoldingRepository,
	rulesRepo *rules.Repository,
	findingsRepo *findings.Repository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		portfolios: portfolios,
		holdings:   holdings,
		rules:      rulesRepo,
		findings:   findingsRepo,
		log:        log.With().Str("handler", "stress").Logger(),
	}
}

// RegisterRoutes registers all stress routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stress", func(r chi.Router) {
		r.Post("/portfolios/{id}", h.HandleRun)
		r.Get("/portfolios/{id}/results", h.HandleGetResults)
	})
}

type runRequest struct {
	Scenarios []stress.Scenario `json:"scenarios"`
}

// HandleRun handles POST /api/stress/portfolios/{id}
// Runs the configured scenarios, or ad-hoc scenarios from the request
// body when given.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
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

	var scenarios []stress.Scenario
	if r.Body != nil && r.ContentLength != 0 {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		scenarios = req.Scenarios
	}
	if len(scenarios) == 0 {
		stored, err := h.rules.GetScenarios()
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load scenarios")
			http.Error(w, "Failed to load scenarios", http.StatusInternalServerError)
			return
		}
		scenarios = make([]stress.Scenario, len(stored))
		for i, s := range stored {
			scenarios[i] = s.Scenario
		}
	}

	results, err := stress.Run(*p, holdings, scenarios)
	if err != nil {
		var invalidPortfolio *domain.InvalidPortfolioError
		var invalidScenario *domain.InvalidScenarioError
		if errors.As(err, &invalidPortfolio) || errors.As(err, &invalidScenario) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to run stress test")
		http.Error(w, "Failed to run stress test", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"results": results,
		"count":   len(results),
	}))
}

// HandleGetResults handles GET /api/stress/portfolios/{id}/results
// Returns persisted results from past scans, newest first.
func (h *Handler) HandleGetResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	results, err := h.findings.GetStressResultsByPortfolio(id)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to load stress results")
		http.Error(w, "Failed to load stress results", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"results": results,
		"count":   len(results),
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
