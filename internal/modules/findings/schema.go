package findings

import "database/sql"

// Schema defines the persisted analysis output tables in riskwatch.db.
// Concentration findings and stress results accumulate per scan;
// VaR assessments keep only the latest row per portfolio.
const Schema = `
CREATE TABLE IF NOT EXISTS concentration_findings (
    id TEXT PRIMARY KEY,
    scan_id TEXT NOT NULL,
    portfolio_id TEXT NOT NULL,
    dimension TEXT NOT NULL,
    value TEXT NOT NULL,
    observed REAL NOT NULL,
    threshold REAL NOT NULL,
    severity TEXT NOT NULL,
    acknowledged INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_findings_portfolio ON concentration_findings(portfolio_id);
CREATE INDEX IF NOT EXISTS idx_findings_scan ON concentration_findings(scan_id);

CREATE TABLE IF NOT EXISTS var_assessments (
    portfolio_id TEXT PRIMARY KEY,
    var_1d REAL NOT NULL,
    var_5d REAL NOT NULL,
    var_1m REAL NOT NULL,
    var_percentage REAL NOT NULL,
    risk_level TEXT NOT NULL,
    risk_score REAL NOT NULL,
    confidence_level REAL NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stress_results (
    id TEXT PRIMARY KEY,
    scan_id TEXT NOT NULL,
    portfolio_id TEXT NOT NULL,
    scenario_name TEXT NOT NULL,
    portfolio_value REAL NOT NULL,
    stressed_value REAL NOT NULL,
    total_impact REAL NOT NULL,
    impact_percentage REAL NOT NULL,
    severity TEXT NOT NULL,
    holding_impacts TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stress_results_portfolio ON stress_results(portfolio_id);
CREATE INDEX IF NOT EXISTS idx_stress_results_scan ON stress_results(scan_id);
`

// InitSchema ensures the findings tables exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
