package concentration

import (
	"testing"

	"github.com/clearline/riskwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeTechnologyConcentration(t *testing.T) {
	// Portfolio almost entirely in Technology: one finding, severity high
	portfolio := domain.Portfolio{ID: "p1", TotalValue: 12_500_000}
	holdings := []domain.Holding{
		{Symbol: "AAPL", MarketValue: 9_262_500, Sector: "Technology", Region: "North America", AssetClass: "Equity", WeightPct: 74.10},
		{Symbol: "MSFT", MarketValue: 3_220_650, Sector: "Technology", Region: "North America", AssetClass: "Equity", WeightPct: 25.77},
	}

	findings := Analyze(portfolio, holdings, DefaultThresholds())

	sectorFindings := filterDimension(findings, DimensionSector)
	require.Len(t, sectorFindings, 1)

	f := sectorFindings[0]
	assert.Equal(t, "p1", f.PortfolioID)
	assert.Equal(t, "Technology", f.Value)
	assert.Equal(t, DefaultSectorThreshold, f.Threshold)
	assert.InDelta(t, 0.9987, f.Observed, 0.0001)
	assert.Equal(t, domain.SeverityHigh, f.Severity)

	// Both holdings are also North American, so the geographic dimension
	// fires as well (0.9987 > 0.75 threshold, > 0.90 breakpoint)
	geoFindings := filterDimension(findings, DimensionGeographic)
	require.Len(t, geoFindings, 1)
	assert.Equal(t, "North America", geoFindings[0].Value)
	assert.Equal(t, domain.SeverityHigh, geoFindings[0].Severity)
}

func TestAnalyzeBoundaryIsNotAFinding(t *testing.T) {
	// Exactly at the threshold must NOT produce a finding (strict >)
	portfolio := domain.Portfolio{ID: "p1", TotalValue: 1_000_000}
	holdings := []domain.Holding{
		{Symbol: "XOM", Sector: "Energy", Region: "North America", AssetClass: "Equity", WeightPct: 30.0},
		{Symbol: "JNJ", Sector: "Healthcare", Region: "Europe", AssetClass: "Equity", WeightPct: 70.0},
	}

	findings := Analyze(portfolio, holdings, DefaultThresholds())

	assert.Empty(t, filterDimension(findings, DimensionSector),
		"sector exactly at 0.30 must not trigger")
}

func TestAnalyzeJustAboveThreshold(t *testing.T) {
	portfolio := domain.Portfolio{ID: "p1", TotalValue: 1_000_000}
	holdings := []domain.Holding{
		{Symbol: "XOM", Sector: "Energy", Region: "North America", AssetClass: "Equity", WeightPct: 30.01},
		{Symbol: "JNJ", Sector: "Healthcare", Region: "Europe", AssetClass: "Equity", WeightPct: 69.99},
	}

	findings := Analyze(portfolio, holdings, DefaultThresholds())

	sectorFindings := filterDimension(findings, DimensionSector)
	require.Len(t, sectorFindings, 1)
	assert.Equal(t, "Energy", sectorFindings[0].Value)
	assert.Equal(t, domain.SeverityLow, sectorFindings[0].Severity)
}

func TestAnalyzeSeverityBreakpoints(t *testing.T) {
	tests := []struct {
		name      string
		weightPct float64
		want      domain.Severity
	}{
		{"just above threshold is low", 35.0, domain.SeverityLow},
		{"at 0.40 still low", 40.0, domain.SeverityLow},
		{"above 0.40 is medium", 41.0, domain.SeverityMedium},
		{"at 0.50 still medium", 50.0, domain.SeverityMedium},
		{"above 0.50 is high", 51.0, domain.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portfolio := domain.Portfolio{ID: "p1", TotalValue: 1_000_000}
			holdings := []domain.Holding{
				{Symbol: "NVDA", Sector: "Technology", Region: "North America", AssetClass: "Equity", WeightPct: tt.weightPct},
				{Symbol: "BND", Sector: "Fixed Income", Region: "North America", AssetClass: "Bond", WeightPct: 100 - tt.weightPct},
			}

			findings := Analyze(portfolio, holdings, DefaultThresholds())
			sectorFindings := filterDimension(findings, DimensionSector)
			require.Len(t, sectorFindings, 1)
			assert.Equal(t, tt.want, sectorFindings[0].Severity)
		})
	}
}

func TestAnalyzeGeographicSeverityBreakpoints(t *testing.T) {
	tests := []struct {
		name      string
		weightPct float64
		want      domain.Severity
	}{
		{"above threshold is low", 80.0, domain.SeverityLow},
		{"at 0.85 still low", 85.0, domain.SeverityLow},
		{"above 0.85 is medium", 86.0, domain.SeverityMedium},
		{"above 0.90 is high", 91.0, domain.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portfolio := domain.Portfolio{ID: "p1", TotalValue: 1_000_000}
			holdings := []domain.Holding{
				{Symbol: "ASML", Sector: "Technology", Region: "Europe", AssetClass: "Equity", WeightPct: tt.weightPct},
				{Symbol: "TSM", Sector: "Technology", Region: "Asia", AssetClass: "Equity", WeightPct: 100 - tt.weightPct},
			}

			findings := Analyze(portfolio, holdings, DefaultThresholds())
			geoFindings := filterDimension(findings, DimensionGeographic)
			require.Len(t, geoFindings, 1)
			assert.Equal(t, "Europe", geoFindings[0].Value)
			assert.Equal(t, tt.want, geoFindings[0].Severity)
		})
	}
}

func TestAnalyzeAssetClassOnlyWhenConfigured(t *testing.T) {
	portfolio := domain.Portfolio{ID: "p1", TotalValue: 1_000_000}
	holdings := []domain.Holding{
		{Symbol: "SPY", Sector: "Diversified", Region: "North America", AssetClass: "Equity", WeightPct: 60.0},
		{Symbol: "BND", Sector: "Fixed Income", Region: "North America", AssetClass: "Bond", WeightPct: 40.0},
	}

	// No asset-class threshold configured: dimension is not checked
	findings := Analyze(portfolio, holdings, DefaultThresholds())
	assert.Empty(t, filterDimension(findings, DimensionAssetClass))

	// With a threshold, equity at 0.60 exceeds 0.50 and classifies high
	thresholds := DefaultThresholds()
	limit := 0.50
	thresholds.AssetClass = &limit

	findings = Analyze(portfolio, holdings, thresholds)
	acFindings := filterDimension(findings, DimensionAssetClass)
	require.Len(t, acFindings, 1)
	assert.Equal(t, "Equity", acFindings[0].Value)
	assert.Equal(t, domain.SeverityHigh, acFindings[0].Severity)
}

func TestAnalyzeEmptyHoldings(t *testing.T) {
	portfolio := domain.Portfolio{ID: "p1", TotalValue: 1_000_000}

	findings := Analyze(portfolio, nil, DefaultThresholds())

	assert.Empty(t, findings, "zero holdings is a valid nothing-to-report outcome")
}

func TestAnalyzeZeroWeightHoldingParticipates(t *testing.T) {
	portfolio := domain.Portfolio{ID: "p1", TotalValue: 1_000_000}
	holdings := []domain.Holding{
		{Symbol: "GE", Sector: "Industrials", Region: "North America", AssetClass: "Equity", WeightPct: 0},
	}

	findings := Analyze(portfolio, holdings, DefaultThresholds())

	assert.Empty(t, findings, "a zero-weight holding can never trigger a finding by itself")
}

func filterDimension(findings []Finding, dimension string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Dimension == dimension {
			out = append(out, f)
		}
	}
	return out
}
