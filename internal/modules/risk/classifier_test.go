package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/clearline/riskwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLowRiskPortfolio(t *testing.T) {
	// 187,500 / 12,500,000 = 1.5% -> low
	portfolio := domain.Portfolio{
		ID:                "p1",
		TotalValue:        12_500_000,
		VaR1D:             -187_500,
		MarginUtilization: 0.25,
	}

	assessment, err := Classify(portfolio, 0.95)
	require.NoError(t, err)

	assert.Equal(t, "p1", assessment.PortfolioID)
	assert.InDelta(t, 1.5, assessment.VaRPercentage, 1e-9)
	assert.Equal(t, domain.SeverityLow, assessment.RiskLevel)
	assert.Equal(t, 0.95, assessment.ConfidenceLevel)

	// Losses are reported as negative magnitudes
	assert.InDelta(t, -187_500.0, assessment.VaR1D, 1e-9)
	assert.InDelta(t, -187_500*math.Sqrt(5), assessment.VaR5D, 1e-6)
	assert.InDelta(t, -187_500*math.Sqrt(22), assessment.VaR1M, 1e-6)
	assert.InDelta(t, -419_453, assessment.VaR5D, 1.0)
	assert.InDelta(t, -879_453, assessment.VaR1M, 1_000.0)

	// score = varPct * (margin + 0.5)
	assert.InDelta(t, 1.5*0.75, assessment.RiskScore, 1e-9)
}

func TestClassifyAcceptsPositiveVaRConvention(t *testing.T) {
	// Callers may pass VaR as a positive magnitude; abs() makes both
	// conventions equivalent
	negative := domain.Portfolio{ID: "p1", TotalValue: 1_000_000, VaR1D: -30_000}
	positive := domain.Portfolio{ID: "p1", TotalValue: 1_000_000, VaR1D: 30_000}

	a1, err := Classify(negative, 0.95)
	require.NoError(t, err)
	a2, err := Classify(positive, 0.95)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
}

func TestClassifyRiskLevelBreakpoints(t *testing.T) {
	tests := []struct {
		name  string
		var1d float64
		want  domain.Severity
	}{
		{"zero var is low", 0, domain.SeverityLow},
		{"2 percent is still low", -20_000, domain.SeverityLow},
		{"just above 2 percent is medium", -20_001, domain.SeverityMedium},
		{"5 percent is still medium", -50_000, domain.SeverityMedium},
		{"just above 5 percent is high", -50_001, domain.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portfolio := domain.Portfolio{ID: "p1", TotalValue: 1_000_000, VaR1D: tt.var1d}

			assessment, err := Classify(portfolio, 0.99)
			require.NoError(t, err)
			assert.Equal(t, tt.want, assessment.RiskLevel)
		})
	}
}

func TestClassifyRejectsNonPositiveTotalValue(t *testing.T) {
	for _, totalValue := range []float64{0, -100} {
		portfolio := domain.Portfolio{ID: "p1", TotalValue: totalValue, VaR1D: -1_000}

		assessment, err := Classify(portfolio, 0.95)
		require.Error(t, err)
		assert.Nil(t, assessment)

		var invalidErr *domain.InvalidPortfolioError
		require.True(t, errors.As(err, &invalidErr))
		assert.Equal(t, "p1", invalidErr.PortfolioID)
		assert.Equal(t, totalValue, invalidErr.TotalValue)
	}
}

func TestRankByScoreIsStableDescending(t *testing.T) {
	assessments := []Assessment{
		{PortfolioID: "a", RiskScore: 1.0},
		{PortfolioID: "b", RiskScore: 3.0},
		{PortfolioID: "c", RiskScore: 3.0},
		{PortfolioID: "d", RiskScore: 2.0},
	}

	RankByScore(assessments)

	got := make([]string, len(assessments))
	for i, a := range assessments {
		got[i] = a.PortfolioID
	}
	// b before c: equal scores retain input order
	assert.Equal(t, []string{"b", "c", "d", "a"}, got)
}
