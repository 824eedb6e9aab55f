package scanner

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/clearline/riskwatch/internal/domain"
)

// RankedPortfolio is one row of the dashboard risk leaderboard.
type RankedPortfolio struct {
	PortfolioID   string          `json:"portfolio_id"`
	Name          string          `json:"name"`
	RiskLevel     domain.Severity `json:"risk_level"`
	RiskScore     float64         `json:"risk_score"`
	VaRPercentage float64         `json:"var_percentage"`
	FindingCount  int             `json:"finding_count"`
	WorstStress   float64         `json:"worst_stress_pct"`
}

// Summary aggregates one scan into dashboard-ready figures.
type Summary struct {
	ScanID             string            `json:"scan_id"`
	GeneratedAt        time.Time         `json:"generated_at"`
	PortfolioCount     int               `json:"portfolio_count"`
	FindingCount       int               `json:"finding_count"`
	FindingsBySeverity map[string]int    `json:"findings_by_severity"`
	StressBreaches     int               `json:"stress_breaches"`
	MeanRiskScore      float64           `json:"mean_risk_score"`
	StdDevRiskScore    float64           `json:"stddev_risk_score"`
	P90RiskScore       float64           `json:"p90_risk_score"`
	Ranked             []RankedPortfolio `json:"ranked"`
}

// Summarize condenses per-portfolio reports into a dashboard summary.
// Failed reports contribute to the portfolio count but carry no scores.
func Summarize(scanID string, reports []PortfolioReport) Summary {
	summary := Summary{
		ScanID:             scanID,
		GeneratedAt:        time.Now().UTC(),
		PortfolioCount:     len(reports),
		FindingsBySeverity: map[string]int{},
	}

	var scores []float64
	for _, r := range reports {
		summary.FindingCount += len(r.Findings)
		for _, f := range r.Findings {
			summary.FindingsBySeverity[string(f.Severity)]++
		}

		worst := 0.0
		for _, sr := range r.Stress {
			if sr.Severity != domain.SeverityLow {
				summary.StressBreaches++
			}
			if sr.ImpactPercentage > worst {
				worst = sr.ImpactPercentage
			}
		}

		if r.Assessment == nil {
			continue
		}
		scores = append(scores, r.Assessment.RiskScore)
		summary.Ranked = append(summary.Ranked, RankedPortfolio{
			PortfolioID:   r.Portfolio.ID,
			Name:          r.Portfolio.Name,
			RiskLevel:     r.Assessment.RiskLevel,
			RiskScore:     r.Assessment.RiskScore,
			VaRPercentage: r.Assessment.VaRPercentage,
			FindingCount:  len(r.Findings),
			WorstStress:   worst,
		})
	}

	sort.SliceStable(summary.Ranked, func(i, j int) bool {
		return summary.Ranked[i].RiskScore > summary.Ranked[j].RiskScore
	})

	if len(scores) > 0 {
		mean, stddev := stat.MeanStdDev(scores, nil)
		summary.MeanRiskScore = mean
		if len(scores) > 1 {
			summary.StdDevRiskScore = stddev
		}

		sorted := append([]float64(nil), scores...)
		sort.Float64s(sorted)
		summary.P90RiskScore = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	}

	return summary
}
