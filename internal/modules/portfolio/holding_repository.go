package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/database"
	"github.com/clearline/riskwatch/internal/domain"
)

// HoldingRepository handles holding database operations.
//
// Weight percentages are recomputed for the whole portfolio on every
// write, so stored weights always reflect stored market values. The
// analyzers trust these precomputed values.
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

// GetByPortfolio returns a portfolio's holdings in their stored order
func (r *HoldingRepository) GetByPortfolio(portfolioID string) ([]domain.Holding, error) {
	rows, err := r.db.Query(`SELECT portfolio_id, symbol, market_value, sector, region, asset_class, weight_pct
		FROM holdings WHERE portfolio_id = ? ORDER BY position, symbol`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings for %s: %w", portfolioID, err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.PortfolioID, &h.Symbol, &h.MarketValue, &h.Sector, &h.Region, &h.AssetClass, &h.WeightPct); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// ReplaceAll replaces a portfolio's holdings with the given set in one
// transaction and recomputes weight percentages against the portfolio's
// total value.
func (r *HoldingRepository) ReplaceAll(portfolioID string, totalValue float64, holdings []domain.Holding) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM holdings WHERE portfolio_id = ?`, portfolioID); err != nil {
			return fmt.Errorf("failed to clear holdings for %s: %w", portfolioID, err)
		}

		for i, h := range holdings {
			weightPct := 0.0
			if totalValue > 0 {
				weightPct = h.MarketValue / totalValue * 100
			}
			_, err := tx.Exec(`INSERT INTO holdings
				(portfolio_id, symbol, market_value, sector, region, asset_class, weight_pct, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				portfolioID, h.Symbol, h.MarketValue, h.Sector, h.Region, h.AssetClass, weightPct, i)
			if err != nil {
				return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
			}
		}
		return nil
	})
}

// Upsert inserts or updates a single holding, then recomputes weight
// percentages for the whole portfolio.
func (r *HoldingRepository) Upsert(h domain.Holding, totalValue float64) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var position int
		err := tx.QueryRow(`SELECT COALESCE(MAX(position) + 1, 0) FROM holdings WHERE portfolio_id = ?`,
			h.PortfolioID).Scan(&position)
		if err != nil {
			return fmt.Errorf("failed to determine holding position: %w", err)
		}

		_, err = tx.Exec(`INSERT INTO holdings
			(portfolio_id, symbol, market_value, sector, region, asset_class, weight_pct, position)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?)
			ON CONFLICT(portfolio_id, symbol) DO UPDATE SET
				market_value = excluded.market_value,
				sector = excluded.sector,
				region = excluded.region,
				asset_class = excluded.asset_class`,
			h.PortfolioID, h.Symbol, h.MarketValue, h.Sector, h.Region, h.AssetClass, position)
		if err != nil {
			return fmt.Errorf("failed to upsert holding %s: %w", h.Symbol, err)
		}

		return recomputeWeights(tx, h.PortfolioID, totalValue)
	})
}

// Delete removes a holding and recomputes the portfolio's weights
func (r *HoldingRepository) Delete(portfolioID, symbol string, totalValue float64) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM holdings WHERE portfolio_id = ? AND symbol = ?`, portfolioID, symbol)
		if err != nil {
			return fmt.Errorf("failed to delete holding %s: %w", symbol, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("holding %s not found in portfolio %s", symbol, portfolioID)
		}

		return recomputeWeights(tx, portfolioID, totalValue)
	})
}

// RecomputeAll recomputes weight percentages for a portfolio. Used
// after the portfolio's total value changes.
func (r *HoldingRepository) RecomputeAll(portfolioID string, totalValue float64) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		return recomputeWeights(tx, portfolioID, totalValue)
	})
}

// recomputeWeights updates weight_pct for every holding in the portfolio
// based on the portfolio's total value.
func recomputeWeights(tx *sql.Tx, portfolioID string, totalValue float64) error {
	if totalValue <= 0 {
		return nil
	}
	_, err := tx.Exec(`UPDATE holdings SET weight_pct = market_value / ? * 100 WHERE portfolio_id = ?`,
		totalValue, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to recompute weights for %s: %w", portfolioID, err)
	}
	return nil
}
