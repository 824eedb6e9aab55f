// Package concentration detects over-exposure of a portfolio to a single
// sector, region or asset class beyond configured thresholds.
package concentration

import (
	"sort"

	"github.com/clearline/riskwatch/internal/domain"
)

// Dimension kinds reported in findings.
const (
	DimensionSector     = "sector"
	DimensionGeographic = "geographic"
	DimensionAssetClass = "asset_class"
)

// Default thresholds applied when the rule configuration omits them.
const (
	DefaultSectorThreshold     = 0.30
	DefaultGeographicThreshold = 0.75
)

// Thresholds holds the concentration cutoffs for each dimension,
// expressed as fractions of total portfolio value (0-1).
// AssetClass is optional: a nil pointer means the asset-class dimension
// is not checked at all.
type Thresholds struct {
	Sector     float64  `json:"sector_threshold"`
	Geographic float64  `json:"geographic_threshold"`
	AssetClass *float64 `json:"asset_class_threshold,omitempty"`
}

// DefaultThresholds returns the standard rule configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Sector:     DefaultSectorThreshold,
		Geographic: DefaultGeographicThreshold,
	}
}

// Finding reports a single dimension value whose summed exposure
// exceeded its threshold.
type Finding struct {
	PortfolioID string          `json:"portfolio_id"`
	Dimension   string          `json:"dimension"`
	Value       string          `json:"value"`
	Observed    float64         `json:"observed"` // Summed fraction of portfolio value, 0-1
	Threshold   float64         `json:"threshold"`
	Severity    domain.Severity `json:"severity"`
}

// Analyze sums holding weights grouped by sector, region and asset class
// and emits a finding for every group strictly exceeding its dimension's
// threshold. A portfolio with no holdings produces no findings; absence
// of findings is the "no concentration risk" signal, not an error.
//
// Holdings contribute WeightPct/100 as their fraction. The analyzer
// trusts the precomputed weights and does not validate that they sum
// to 100.
func Analyze(portfolio domain.Portfolio, holdings []domain.Holding, thresholds Thresholds) []Finding {
	sectors := make(map[string]float64)
	regions := make(map[string]float64)
	assetClasses := make(map[string]float64)

	for _, h := range holdings {
		fraction := h.WeightPct / 100.0
		sectors[h.Sector] += fraction
		regions[h.Region] += fraction
		assetClasses[h.AssetClass] += fraction
	}

	var findings []Finding
	findings = append(findings, collect(portfolio.ID, DimensionSector, sectors, thresholds.Sector, sectorSeverity)...)
	findings = append(findings, collect(portfolio.ID, DimensionGeographic, regions, thresholds.Geographic, geographicSeverity)...)
	if thresholds.AssetClass != nil {
		findings = append(findings, collect(portfolio.ID, DimensionAssetClass, assetClasses, *thresholds.AssetClass, sectorSeverity)...)
	}

	return findings
}

// collect emits findings for every group in the map whose summed
// fraction strictly exceeds the threshold. Groups are visited in sorted
// order so output is deterministic.
func collect(portfolioID, dimension string, groups map[string]float64, threshold float64, severity func(float64) domain.Severity) []Finding {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var findings []Finding
	for _, name := range names {
		observed := groups[name]
		if observed > threshold {
			findings = append(findings, Finding{
				PortfolioID: portfolioID,
				Dimension:   dimension,
				Value:       name,
				Observed:    observed,
				Threshold:   threshold,
				Severity:    severity(observed),
			})
		}
	}
	return findings
}

// sectorSeverity classifies sector and asset-class findings. The
// breakpoints are fixed relative to the observed value, independent of
// which threshold was configured.
func sectorSeverity(observed float64) domain.Severity {
	switch {
	case observed > 0.50:
		return domain.SeverityHigh
	case observed > 0.40:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// geographicSeverity classifies geographic findings. Regional exposure
// runs much higher than sector exposure in normal portfolios, so the
// breakpoints sit higher.
func geographicSeverity(observed float64) domain.Severity {
	switch {
	case observed > 0.90:
		return domain.SeverityHigh
	case observed > 0.85:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
