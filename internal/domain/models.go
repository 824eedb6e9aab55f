// Package domain contains the shared data model for the risk engine.
// These types are pure data carriers - they hold no behavior beyond
// small accessors and are safe to share across concurrent analyzer calls.
package domain

// Portfolio represents a client portfolio snapshot as supplied by the
// data provider. TotalValue must be positive for any analyzer that
// divides by it (VaR classification, stress testing).
type Portfolio struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	ClientName        string  `json:"client_name"`
	TotalValue        float64 `json:"total_value"`
	VaR1D             float64 `json:"var_1d"`             // 1-day VaR, sign convention handled via abs()
	MarginUtilization float64 `json:"margin_utilization"` // Fraction of margin drawn, 0-1
}

// Holding represents a single position inside a portfolio.
// WeightPct is the holding's share of its portfolio's total value,
// expressed as 0-100. It is computed upstream (the holding repository
// recomputes it on writes) and trusted by the analyzers.
type Holding struct {
	PortfolioID string  `json:"portfolio_id"`
	Symbol      string  `json:"symbol"`
	MarketValue float64 `json:"market_value"`
	Sector      string  `json:"sector"`
	Region      string  `json:"region"`
	AssetClass  string  `json:"asset_class"`
	WeightPct   float64 `json:"weight_pct"`
}

// Severity classifies how far past a risk rule an observation landed.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)
