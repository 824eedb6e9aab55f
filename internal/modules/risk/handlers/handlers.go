// Package handlers provides HTTP handlers for VaR classification.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/domain"
	"github.com/clearline/riskwatch/internal/modules/findings"
	"github.com/clearline/riskwatch/internal/modules/portfolio"
	"github.com/clearline/riskwatch/internal/modules/risk"
)

const defaultConfidence = 0.95

// Handler handles VaR HTTP requests
type Handler struct {
	portfolios *portfolio.Repository
	findings   *findings.Repository
	log        zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(portfolios *portfolio.Repository, findingsRepo *findings.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		portfolios: portfolios,
		findings:   findingsRepo,
		log:        log.With().Str("handler", "risk").Logger(),
	}
}

// RegisterRoutes registers all risk routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Get("/portfolios/{id}", h.HandleClassify)
		r.Get("/ranking", h.HandleRanking)
	})
}

// HandleClassify handles GET /api/risk/portfolios/{id}
// Classifies the portfolio on demand from its current state.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
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

	confidence := defaultConfidence
	if raw := r.URL.Query().Get("confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed >= 1 {
			http.Error(w, "confidence must be a number between 0 and 1", http.StatusBadRequest)
			return
		}
		confidence = parsed
	}

	assessment, err := risk.Classify(*p, confidence)
	if err != nil {
		var invalid *domain.InvalidPortfolioError
		if errors.As(err, &invalid) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to classify portfolio")
		http.Error(w, "Failed to classify portfolio", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"assessment": assessment,
	}))
}

// HandleRanking handles GET /api/risk/ranking
// Returns the latest persisted assessments ordered by risk score.
func (h *Handler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	assessments, err := h.findings.GetAssessments()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load assessments")
		http.Error(w, "Failed to load assessments", http.StatusInternalServerError)
		return
	}

	risk.RankByScore(assessments)

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"assessments": assessments,
		"count":       len(assessments),
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
