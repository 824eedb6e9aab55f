// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/domain"
	"github.com/clearline/riskwatch/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	portfolios *portfolio.Repository
	holdings   *portfolio.HoldingRepository
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(portfolios *portfolio.Repository, holdings *portfolio.HoldingRepository, log zerolog.Logger) *Handler {
	return &Handler{
		portfolios: portfolios,
		holdings:   holdings,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Get("/{id}/holdings", h.HandleGetHoldings)
		r.Put("/{id}/holdings", h.HandleReplaceHoldings)
	})
}

// HandleList handles GET /api/portfolios
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.portfolios.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list portfolios")
		http.Error(w, "Failed to list portfolios", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"portfolios": portfolios,
		"count":      len(portfolios),
	}))
}

// HandleGet handles GET /api/portfolios/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
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

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"portfolio": p,
		"holdings":  holdings,
	}))
}

type portfolioRequest struct {
	Name              string  `json:"name"`
	ClientName        string  `json:"client_name"`
	TotalValue        float64 `json:"total_value"`
	VaR1D             float64 `json:"var_1d"`
	MarginUtilization float64 `json:"margin_utilization"`
}

// HandleCreate handles POST /api/portfolios
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	p := domain.Portfolio{
		ID:                uuid.New().String(),
		Name:              req.Name,
		ClientName:        req.ClientName,
		TotalValue:        req.TotalValue,
		VaR1D:             req.VaR1D,
		MarginUtilization: req.MarginUtilization,
	}

	if err := h.portfolios.Upsert(p); err != nil {
		h.log.Error().Err(err).Msg("Failed to create portfolio")
		http.Error(w, "Failed to create portfolio", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{
		"portfolio": p,
	}))
}

// HandleUpdate handles PUT /api/portfolios/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.portfolios.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to get portfolio")
		http.Error(w, "Failed to get portfolio", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		http.Error(w, "Portfolio not found", http.StatusNotFound)
		return
	}

	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p := domain.Portfolio{
		ID:                id,
		Name:              req.Name,
		ClientName:        req.ClientName,
		TotalValue:        req.TotalValue,
		VaR1D:             req.VaR1D,
		MarginUtilization: req.MarginUtilization,
	}

	if err := h.portfolios.Upsert(p); err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to update portfolio")
		http.Error(w, "Failed to update portfolio", http.StatusInternalServerError)
		return
	}

	// Total value changes shift every holding's weight
	if err := h.holdings.RecomputeAll(id, p.TotalValue); err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to recompute holding weights")
		http.Error(w, "Failed to recompute holding weights", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"portfolio": p,
	}))
}

// HandleDelete handles DELETE /api/portfolios/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.portfolios.Delete(id); err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to delete portfolio")
		http.Error(w, "Portfolio not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"deleted": id,
	}))
}

// HandleGetHoldings handles GET /api/portfolios/{id}/holdings
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	holdings, err := h.holdings.GetByPortfolio(id)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to get holdings")
		http.Error(w, "Failed to get holdings", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"holdings": holdings,
		"count":    len(holdings),
	}))
}

type holdingRequest struct {
	Symbol      string  `json:"symbol"`
	MarketValue float64 `json:"market_value"`
	Sector      string  `json:"sector"`
	Region      string  `json:"region"`
	AssetClass  string  `json:"asset_class"`
}

// HandleReplaceHoldings handles PUT /api/portfolios/{id}/holdings
// Replaces the full holding set; weights are recomputed from market
// values against the portfolio's total value.
func (h *Handler) HandleReplaceHoldings(w http.ResponseWriter, r *http.Request) {
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

	var reqs []holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for _, req := range reqs {
		if req.Symbol == "" {
			http.Error(w, "symbol is required for every holding", http.StatusBadRequest)
			return
		}
	}

	holdings := make([]domain.Holding, len(reqs))
	for i, req := range reqs {
		holdings[i] = domain.Holding{
			PortfolioID: id,
			Symbol:      req.Symbol,
			MarketValue: req.MarketValue,
			Sector:      req.Sector,
			Region:      req.Region,
			AssetClass:  req.AssetClass,
		}
	}

	if err := h.holdings.ReplaceAll(id, p.TotalValue, holdings); err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to replace holdings")
		http.Error(w, "Failed to replace holdings", http.StatusInternalServerError)
		return
	}

	stored, err := h.holdings.GetByPortfolio(id)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to reload holdings")
		http.Error(w, "Failed to reload holdings", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"holdings": stored,
		"count":    len(stored),
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
