// Package stress applies scenario-defined market shocks to portfolio
// holdings and aggregates the projected impact.
package stress

import (
	"github.com/clearline/riskwatch/internal/domain"
)

// Scenario defines a hypothetical market move. MarketShock is the
// fractional shift applied to every holding without a sector-specific
// override (e.g. -0.10 for a 10% decline). SectorShocks maps sector
// names to overriding shocks and takes precedence over MarketShock.
type Scenario struct {
	Name         string             `json:"name"`
	MarketShock  float64            `json:"market_shock"`
	SectorShocks map[string]float64 `json:"sector_shocks,omitempty"`
}

// HoldingImpact is the projected value change of a single holding under
// one scenario.
type HoldingImpact struct {
	Symbol string  `json:"symbol"`
	Sector string  `json:"sector"`
	Shock  float64 `json:"shock"`
	Impact float64 `json:"impact"` // MarketValue * Shock, negative for losses
}

// Result aggregates one scenario's projected portfolio impact.
type Result struct {
	PortfolioID      string          `json:"portfolio_id"`
	ScenarioName     string          `json:"scenario_name"`
	PortfolioValue   float64         `json:"portfolio_value"`
	StressedValue    float64         `json:"stressed_value"`
	TotalImpact      float64         `json:"total_impact"`      // PortfolioValue - StressedValue, positive for losses
	ImpactPercentage float64         `json:"impact_percentage"` // Loss magnitude as % of portfolio value
	HoldingImpacts   []HoldingImpact `json:"holding_impacts"`
	Severity         domain.Severity `json:"severity"`
}

// Run evaluates every scenario against the portfolio independently:
// each scenario starts from the unshocked portfolio and holding values,
// and results preserve scenario input order.
//
// Shocks are additive deltas summed once against the unshocked total,
// not multiplicative re-bases. At least one scenario is required
// (*domain.InvalidScenarioError otherwise) and the portfolio total value
// must be positive (*domain.InvalidPortfolioError otherwise).
func Run(portfolio domain.Portfolio, holdings []domain.Holding, scenarios []Scenario) ([]Result, error) {
	if len(scenarios) == 0 {
		return nil, &domain.InvalidScenarioError{Reason: "at least one scenario is required"}
	}
	if portfolio.TotalValue <= 0 {
		return nil, &domain.InvalidPortfolioError{
			PortfolioID: portfolio.ID,
			TotalValue:  portfolio.TotalValue,
		}
	}

	results := make([]Result, 0, len(scenarios))
	for _, scenario := range scenarios {
		results = append(results, runScenario(portfolio, holdings, scenario))
	}
	return results, nil
}

func runScenario(portfolio domain.Portfolio, holdings []domain.Holding, scenario Scenario) Result {
	impacts := make([]HoldingImpact, 0, len(holdings))
	totalHoldingImpact := 0.0

	for _, h := range holdings {
		shock := scenario.MarketShock
		if override, ok := scenario.SectorShocks[h.Sector]; ok {
			shock = override
		}

		impact := h.MarketValue * shock
		totalHoldingImpact += impact
		impacts = append(impacts, HoldingImpact{
			Symbol: h.Symbol,
			Sector: h.Sector,
			Shock:  shock,
			Impact: impact,
		})
	}

	stressedValue := portfolio.TotalValue + totalHoldingImpact
	totalImpact := portfolio.TotalValue - stressedValue
	impactPct := totalImpact / portfolio.TotalValue * 100

	return Result{
		PortfolioID:      portfolio.ID,
		ScenarioName:     scenario.Name,
		PortfolioValue:   portfolio.TotalValue,
		StressedValue:    stressedValue,
		TotalImpact:      totalImpact,
		ImpactPercentage: impactPct,
		HoldingImpacts:   impacts,
		Severity:         severity(impactPct),
	}
}

// severity classifies the loss magnitude: >20% high, >10% medium, else
// low. A scenario modelling a net gain produces a negative
// impactPercentage and therefore always classifies low; the breakpoints
// only measure losses.
func severity(impactPct float64) domain.Severity {
	switch {
	case impactPct > 20:
		return domain.SeverityHigh
	case impactPct > 10:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
