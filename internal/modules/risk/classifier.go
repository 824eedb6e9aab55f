// Package risk normalizes portfolio VaR figures into comparable risk
// assessments. Multi-horizon VaR is projected by square-root-of-time
// scaling from the
// 1-day figure, not estimated from history.
package risk

import (
	"math"
	"sort"

	"github.com/clearline/riskwatch/internal/domain"
)

// Fixed trading-day-count approximations for horizon scaling.
const (
	tradingDays5D = 5
	tradingDays1M = 22
)

// Assessment is the result of classifying one portfolio's VaR.
// VaR figures are reported as negative magnitudes (losses are negative),
// consistent with how the rest of the system displays VaR.
type Assessment struct {
	PortfolioID     string          `json:"portfolio_id"`
	VaR1D           float64         `json:"var_1d"`
	VaR5D           float64         `json:"var_5d"`
	VaR1M           float64         `json:"var_1m"`
	VaRPercentage   float64         `json:"var_percentage"` // |VaR1D| as % of total value
	RiskLevel       domain.Severity `json:"risk_level"`
	RiskScore       float64         `json:"risk_score"` // varPct * (marginUtilization + 0.5)
	ConfidenceLevel float64         `json:"confidence_level"`
}

// Classify computes the VaR assessment for a portfolio.
//
// The confidence level is carried through to the output unvalidated; the
// simplified model does not use it quantitatively. A non-positive total
// value is a precondition violation and returns *domain.InvalidPortfolioError
// rather than producing Inf/NaN ratios.
func Classify(portfolio domain.Portfolio, confidenceLevel float64) (*Assessment, error) {
	if portfolio.TotalValue <= 0 {
		return nil, &domain.InvalidPortfolioError{
			PortfolioID: portfolio.ID,
			TotalValue:  portfolio.TotalValue,
		}
	}

	var1dAbs := math.Abs(portfolio.VaR1D)
	varPct := var1dAbs / portfolio.TotalValue * 100

	return &Assessment{
		PortfolioID:     portfolio.ID,
		VaR1D:           -var1dAbs,
		VaR5D:           -var1dAbs * math.Sqrt(tradingDays5D),
		VaR1M:           -var1dAbs * math.Sqrt(tradingDays1M),
		VaRPercentage:   varPct,
		RiskLevel:       riskLevel(varPct),
		RiskScore:       varPct * (portfolio.MarginUtilization + 0.5),
		ConfidenceLevel: confidenceLevel,
	}, nil
}

// RankByScore orders assessments by composite risk score, highest first.
// The sort is stable: ties retain input order.
func RankByScore(assessments []Assessment) {
	sort.SliceStable(assessments, func(i, j int) bool {
		return assessments[i].RiskScore > assessments[j].RiskScore
	})
}

// riskLevel classifies the VaR percentage: >5 high, >2 medium, else low.
func riskLevel(varPct float64) domain.Severity {
	switch {
	case varPct > 5:
		return domain.SeverityHigh
	case varPct > 2:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
