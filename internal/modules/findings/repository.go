// Package findings persists analyzer output so the dashboard can query
// risk state without re-running the engine.
package findings

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/database"
	"github.com/clearline/riskwatch/internal/domain"
	"github.com/clearline/riskwatch/internal/modules/concentration"
	"github.com/clearline/riskwatch/internal/modules/risk"
	"github.com/clearline/riskwatch/internal/modules/stress"
)

// StoredFinding is a concentration finding with persistence identity.
type StoredFinding struct {
	ID           string                `json:"id"`
	ScanID       string                `json:"scan_id"`
	Acknowledged bool                  `json:"acknowledged"`
	CreatedAt    time.Time             `json:"created_at"`
	Finding      concentration.Finding `json:"finding"`
}

// StoredStressResult is a stress result with persistence identity.
type StoredStressResult struct {
	ID        string        `json:"id"`
	ScanID    string        `json:"scan_id"`
	CreatedAt time.Time     `json:"created_at"`
	Result    stress.Result `json:"result"`
}

// Repository handles findings database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new findings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "findings").Logger(),
	}
}

// RecordScan persists one portfolio's scan output in a single
// transaction: its concentration findings and stress results are
// appended under the scan ID, and its VaR assessment replaces any
// previous one.
func (r *Repository) RecordScan(scanID string, fs []concentration.Finding, assessment *risk.Assessment, results []stress.Result) error {
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, f := range fs {
			_, err := tx.Exec(`INSERT INTO concentration_findings
				(id, scan_id, portfolio_id, dimension, value, observed, threshold, severity, acknowledged, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
				uuid.New().String(), scanID, f.PortfolioID, f.Dimension, f.Value, f.Observed, f.Threshold, string(f.Severity), nowStr)
			if err != nil {
				return fmt.Errorf("failed to insert finding: %w", err)
			}
		}

		if assessment != nil {
			_, err := tx.Exec(`INSERT INTO var_assessments
				(portfolio_id, var_1d, var_5d, var_1m, var_percentage, risk_level, risk_score, confidence_level, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(portfolio_id) DO UPDATE SET
					var_1d = excluded.var_1d,
					var_5d = excluded.var_5d,
					var_1m = excluded.var_1m,
					var_percentage = excluded.var_percentage,
					risk_level = excluded.risk_level,
					risk_score = excluded.risk_score,
					confidence_level = excluded.confidence_level,
					updated_at = excluded.updated_at`,
				assessment.PortfolioID, assessment.VaR1D, assessment.VaR5D, assessment.VaR1M,
				assessment.VaRPercentage, string(assessment.RiskLevel), assessment.RiskScore,
				assessment.ConfidenceLevel, nowStr)
			if err != nil {
				return fmt.Errorf("failed to upsert assessment for %s: %w", assessment.PortfolioID, err)
			}
		}

		for _, result := range results {
			impactsJSON, err := json.Marshal(result.HoldingImpacts)
			if err != nil {
				return fmt.Errorf("failed to encode holding impacts: %w", err)
			}
			_, err = tx.Exec(`INSERT INTO stress_results
				(id, scan_id, portfolio_id, scenario_name, portfolio_value, stressed_value, total_impact, impact_percentage, severity, holding_impacts, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.New().String(), scanID, result.PortfolioID, result.ScenarioName,
				result.PortfolioValue, result.StressedValue, result.TotalImpact,
				result.ImpactPercentage, string(result.Severity), string(impactsJSON), nowStr)
			if err != nil {
				return fmt.Errorf("failed to insert stress result: %w", err)
			}
		}

		return nil
	})
}

// GetUnacknowledged returns all unacknowledged findings, newest first
func (r *Repository) GetUnacknowledged() ([]StoredFinding, error) {
	return r.queryFindings(`SELECT id, scan_id, portfolio_id, dimension, value, observed, threshold, severity, acknowledged, created_at
		FROM concentration_findings WHERE acknowledged = 0 ORDER BY created_at DESC, id`)
}

// GetByPortfolio returns a portfolio's findings, newest first
func (r *Repository) GetByPortfolio(portfolioID string) ([]StoredFinding, error) {
	return r.queryFindings(`SELECT id, scan_id, portfolio_id, dimension, value, observed, threshold, severity, acknowledged, created_at
		FROM concentration_findings WHERE portfolio_id = ? ORDER BY created_at DESC, id`, portfolioID)
}

// GetByScan returns the findings recorded under one scan
func (r *Repository) GetByScan(scanID string) ([]StoredFinding, error) {
	return r.queryFindings(`SELECT id, scan_id, portfolio_id, dimension, value, observed, threshold, severity, acknowledged, created_at
		FROM concentration_findings WHERE scan_id = ? ORDER BY portfolio_id, dimension, value`, scanID)
}

func (r *Repository) queryFindings(query string, args ...interface{}) ([]StoredFinding, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var out []StoredFinding
	for rows.Next() {
		var (
			f         StoredFinding
			severity  string
			createdAt string
		)
		if err := rows.Scan(&f.ID, &f.ScanID, &f.Finding.PortfolioID, &f.Finding.Dimension, &f.Finding.Value,
			&f.Finding.Observed, &f.Finding.Threshold, &severity, &f.Acknowledged, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Finding.Severity = domain.Severity(severity)
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating findings: %w", err)
	}

	return out, nil
}

// Acknowledge marks a finding as reviewed
func (r *Repository) Acknowledge(id string) error {
	result, err := r.db.Exec(`UPDATE concentration_findings SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge finding %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finding %s not found", id)
	}
	return nil
}

// GetAssessments returns the latest VaR assessment for every portfolio
func (r *Repository) GetAssessments() ([]risk.Assessment, error) {
	rows, err := r.db.Query(`SELECT portfolio_id, var_1d, var_5d, var_1m, var_percentage, risk_level, risk_score, confidence_level
		FROM var_assessments ORDER BY portfolio_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var assessments []risk.Assessment
	for rows.Next() {
		var (
			a     risk.Assessment
			level string
		)
		if err := rows.Scan(&a.PortfolioID, &a.VaR1D, &a.VaR5D, &a.VaR1M, &a.VaRPercentage, &level, &a.RiskScore, &a.ConfidenceLevel); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		a.RiskLevel = domain.Severity(level)
		assessments = append(assessments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessments: %w", err)
	}

	return assessments, nil
}

// GetStressResultsByPortfolio returns a portfolio's stress results,
// newest scan first, scenario order preserved within a scan.
func (r *Repository) GetStressResultsByPortfolio(portfolioID string) ([]StoredStressResult, error) {
	rows, err := r.db.Query(`SELECT id, scan_id, portfolio_id, scenario_name, portfolio_value, stressed_value,
			total_impact, impact_percentage, severity, holding_impacts, created_at
		FROM stress_results WHERE portfolio_id = ? ORDER BY created_at DESC, rowid`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stress results: %w", err)
	}
	defer rows.Close()

	var results []StoredStressResult
	for rows.Next() {
		var (
			s           StoredStressResult
			severity    string
			impactsJSON string
			createdAt   string
		)
		if err := rows.Scan(&s.ID, &s.ScanID, &s.Result.PortfolioID, &s.Result.ScenarioName,
			&s.Result.PortfolioValue, &s.Result.StressedValue, &s.Result.TotalImpact,
			&s.Result.ImpactPercentage, &severity, &impactsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan stress result: %w", err)
		}
		if err := json.Unmarshal([]byte(impactsJSON), &s.Result.HoldingImpacts); err != nil {
			return nil, fmt.Errorf("failed to decode holding impacts: %w", err)
		}
		s.Result.Severity = domain.Severity(severity)
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stress results: %w", err)
	}

	return results, nil
}

// PruneOlderThan deletes findings and stress results recorded before the
// cutoff. VaR assessments are upserted in place and never pruned.
func (r *Repository) PruneOlderThan(cutoff time.Time) (int64, error) {
	cutoffStr := cutoff.UTC().Format(time.RFC3339)

	var total int64
	result, err := r.db.Exec(`DELETE FROM concentration_findings WHERE created_at < ? AND acknowledged = 1`, cutoffStr)
	if err != nil {
		return 0, fmt.Errorf("failed to prune findings: %w", err)
	}
	n, _ := result.RowsAffected()
	total += n

	result, err = r.db.Exec(`DELETE FROM stress_results WHERE created_at < ?`, cutoffStr)
	if err != nil {
		return total, fmt.Errorf("failed to prune stress results: %w", err)
	}
	n, _ = result.RowsAffected()
	total += n

	return total, nil
}
