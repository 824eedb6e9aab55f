// Package scanner orchestrates dashboard-wide risk scans: it loads every
// portfolio, fans out to the pure analyzers, persists their output and
// publishes events for the live feed.
//
// The analyzers themselves are synchronous and stateless; all
// parallelism and cancellation lives here, at the orchestration layer.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/domain"
	"github.com/clearline/riskwatch/internal/events"
	"github.com/clearline/riskwatch/internal/modules/concentration"
	"github.com/clearline/riskwatch/internal/modules/risk"
	"github.com/clearline/riskwatch/internal/modules/rules"
	"github.com/clearline/riskwatch/internal/modules/stress"
)

// DefaultConfidenceLevel is attached to VaR assessments produced by
// scheduled scans.
const DefaultConfidenceLevel = 0.95

// PortfolioSource supplies portfolio and holding snapshots.
type PortfolioSource interface {
	GetAll() ([]domain.Portfolio, error)
}

// HoldingSource supplies a portfolio's holdings.
type HoldingSource interface {
	GetByPortfolio(portfolioID string) ([]domain.Holding, error)
}

// RuleSource supplies threshold and scenario configuration.
type RuleSource interface {
	GetThresholds() (concentration.Thresholds, error)
	GetScenarios() ([]rules.StoredScenario, error)
}

// FindingSink persists one portfolio's scan output.
type FindingSink interface {
	RecordScan(scanID string, fs []concentration.Finding, assessment *risk.Assessment, results []stress.Result) error
}

// PortfolioReport is one portfolio's analyzer output within a scan.
type PortfolioReport struct {
	Portfolio  domain.Portfolio        `json:"portfolio"`
	Findings   []concentration.Finding `json:"findings"`
	Assessment *risk.Assessment        `json:"assessment"`
	Stress     []stress.Result         `json:"stress"`
	Err        string                  `json:"error,omitempty"`
}

// ScanResult is the output of one dashboard-wide scan.
type ScanResult struct {
	ScanID     string            `json:"scan_id"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
	Reports    []PortfolioReport `json:"reports"`
	Summary    Summary           `json:"summary"`
	FailedRuns int               `json:"failed_runs"`
}

// Scanner runs risk scans across all portfolios.
type Scanner struct {
	portfolios PortfolioSource
	holdings   HoldingSource
	rules      RuleSource
	sink       FindingSink
	bus        *events.Bus
	cache      *SnapshotCache // optional
	workers    int
	log        zerolog.Logger
}

// Config holds scanner construction parameters.
type Config struct {
	Portfolios PortfolioSource
	Holdings   HoldingSource
	Rules      RuleSource
	Sink       FindingSink
	Bus        *events.Bus
	Cache      *SnapshotCache
	Workers    int // Concurrent portfolio analyses, defaults to 4
	Log        zerolog.Logger
}

// New creates a new scanner
func New(cfg Config) *Scanner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{
		portfolios: cfg.Portfolios,
		holdings:   cfg.Holdings,
		rules:      cfg.Rules,
		sink:       cfg.Sink,
		bus:        cfg.Bus,
		cache:      cfg.Cache,
		workers:    workers,
		log:        cfg.Log.With().Str("service", "scanner").Logger(),
	}
}

// ScanAll analyzes every portfolio and persists the results. Individual
// portfolio failures (invalid preconditions, storage errors) are
// reported per portfolio and never abort the rest of the scan.
func (s *Scanner) ScanAll(ctx context.Context) (*ScanResult, error) {
	started := time.Now()
	scanID := uuid.New().String()

	portfolios, err := s.portfolios.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolios: %w", err)
	}

	thresholds, err := s.rules.GetThresholds()
	if err != nil {
		return nil, fmt.Errorf("failed to load thresholds: %w", err)
	}

	stored, err := s.rules.GetScenarios()
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}
	scenarios := make([]stress.Scenario, len(stored))
	for i, sc := range stored {
		scenarios[i] = sc.Scenario
	}

	s.bus.Publish(events.ScanStarted, "scanner", map[string]interface{}{
		"scan_id":    scanID,
		"portfolios": len(portfolios),
	})

	reports := make([]PortfolioReport, len(portfolios))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, p := range portfolios {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p domain.Portfolio) {
			defer wg.Done()
			defer func() { <-sem }()
			reports[i] = s.analyzePortfolio(p, thresholds, scenarios)
		}(i, p)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	// Persist sequentially: sqlite serializes writers anyway, and a
	// deterministic order keeps scan output stable
	failed := 0
	for _, report := range reports {
		if report.Err != "" {
			failed++
			continue
		}
		if err := s.sink.RecordScan(scanID, report.Findings, report.Assessment, report.Stress); err != nil {
			s.log.Error().Err(err).Str("portfolio", report.Portfolio.ID).Msg("Failed to persist scan output")
			s.bus.PublishError("scanner", err)
			failed++
			continue
		}

		for _, f := range report.Findings {
			s.bus.Publish(events.FindingRecorded, "scanner", map[string]interface{}{
				"scan_id":      scanID,
				"portfolio_id": f.PortfolioID,
				"dimension":    f.Dimension,
				"value":        f.Value,
				"severity":     string(f.Severity),
			})
		}
		if report.Assessment != nil {
			s.bus.Publish(events.AssessmentUpdated, "scanner", map[string]interface{}{
				"scan_id":      scanID,
				"portfolio_id": report.Assessment.PortfolioID,
				"risk_level":   string(report.Assessment.RiskLevel),
				"risk_score":   report.Assessment.RiskScore,
			})
		}
	}

	result := &ScanResult{
		ScanID:     scanID,
		StartedAt:  started.UTC(),
		Duration:   time.Since(started),
		Reports:    reports,
		Summary:    Summarize(scanID, reports),
		FailedRuns: failed,
	}

	if s.cache != nil {
		if err := s.cache.Store(result.Summary); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache scan snapshot")
		}
	}

	s.bus.Publish(events.ScanCompleted, "scanner", map[string]interface{}{
		"scan_id":     scanID,
		"portfolios":  len(portfolios),
		"findings":    result.Summary.FindingCount,
		"failed_runs": failed,
		"duration_ms": result.Duration.Milliseconds(),
	})

	s.log.Info().
		Str("scan_id", scanID).
		Int("portfolios", len(portfolios)).
		Int("findings", result.Summary.FindingCount).
		Int("failed_runs", failed).
		Dur("duration", result.Duration).
		Msg("Scan completed")

	return result, nil
}

// ScanPortfolio analyzes a single portfolio on demand without touching
// the others.
func (s *Scanner) ScanPortfolio(portfolio domain.Portfolio) (PortfolioReport, error) {
	thresholds, err := s.rules.GetThresholds()
	if err != nil {
		return PortfolioReport{}, fmt.Errorf("failed to load thresholds: %w", err)
	}
	stored, err := s.rules.GetScenarios()
	if err != nil {
		return PortfolioReport{}, fmt.Errorf("failed to load scenarios: %w", err)
	}
	scenarios := make([]stress.Scenario, len(stored))
	for i, sc := range stored {
		scenarios[i] = sc.Scenario
	}

	return s.analyzePortfolio(portfolio, thresholds, scenarios), nil
}

// analyzePortfolio invokes the three pure analyzers for one portfolio.
func (s *Scanner) analyzePortfolio(p domain.Portfolio, thresholds concentration.Thresholds, scenarios []stress.Scenario) PortfolioReport {
	report := PortfolioReport{Portfolio: p}

	holdings, err := s.holdings.GetByPortfolio(p.ID)
	if err != nil {
		report.Err = fmt.Sprintf("failed to load holdings: %v", err)
		return report
	}

	report.Findings = concentration.Analyze(p, holdings, thresholds)

	assessment, err := risk.Classify(p, DefaultConfidenceLevel)
	if err != nil {
		report.Err = err.Error()
		return report
	}
	report.Assessment = assessment

	if len(scenarios) > 0 {
		results, err := stress.Run(p, holdings, scenarios)
		if err != nil {
			report.Err = err.Error()
			return report
		}
		report.Stress = results
	}

	return report
}
