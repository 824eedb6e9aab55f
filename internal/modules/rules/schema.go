package rules

import "database/sql"

// Schema defines the rule configuration tables in riskwatch.db.
// concentration_thresholds is a single-row table; scenarios keep their
// sector overrides as a JSON object keyed by sector name.
const Schema = `
CREATE TABLE IF NOT EXISTS concentration_thresholds (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    sector_threshold REAL NOT NULL,
    geographic_threshold REAL NOT NULL,
    asset_class_threshold REAL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stress_scenarios (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    market_shock REAL NOT NULL,
    sector_shocks TEXT NOT NULL DEFAULT '{}',
    position INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
`

// InitSchema ensures the rule configuration tables exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
