package portfolio

import "database/sql"

// Schema defines the portfolios and holdings tables in riskwatch.db.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolios (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    client_name TEXT NOT NULL DEFAULT '',
    total_value REAL NOT NULL,
    var_1d REAL NOT NULL DEFAULT 0,
    margin_utilization REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
    portfolio_id TEXT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
    symbol TEXT NOT NULL,
    market_value REAL NOT NULL,
    sector TEXT NOT NULL DEFAULT '',
    region TEXT NOT NULL DEFAULT '',
    asset_class TEXT NOT NULL DEFAULT '',
    weight_pct REAL NOT NULL DEFAULT 0,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (portfolio_id, symbol)
);

CREATE INDEX IF NOT EXISTS idx_holdings_portfolio ON holdings(portfolio_id);
`

// InitSchema ensures the portfolio tables exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
