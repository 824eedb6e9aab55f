// Package portfolio provides storage for portfolio and holding snapshots,
// the read-only inputs of the risk analyzers.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/domain"
)

// Repository handles portfolio database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// GetAll returns all portfolios ordered by name
func (r *Repository) GetAll() ([]domain.Portfolio, error) {
	rows, err := r.db.Query(`SELECT id, name, client_name, total_value, var_1d, margin_utilization
		FROM portfolios ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []domain.Portfolio
	for rows.Next() {
		var p domain.Portfolio
		if err := rows.Scan(&p.ID, &p.Name, &p.ClientName, &p.TotalValue, &p.VaR1D, &p.MarginUtilization); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}

// Get returns a single portfolio by ID, or nil if it does not exist
func (r *Repository) Get(id string) (*domain.Portfolio, error) {
	var p domain.Portfolio
	err := r.db.QueryRow(`SELECT id, name, client_name, total_value, var_1d, margin_utilization
		FROM portfolios WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.ClientName, &p.TotalValue, &p.VaR1D, &p.MarginUtilization)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio %s: %w", id, err)
	}
	return &p, nil
}

// Upsert inserts or updates a portfolio
func (r *Repository) Upsert(p domain.Portfolio) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.Exec(`
		INSERT INTO portfolios (id, name, client_name, total_value, var_1d, margin_utilization, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			client_name = excluded.client_name,
			total_value = excluded.total_value,
			var_1d = excluded.var_1d,
			margin_utilization = excluded.margin_utilization,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.ClientName, p.TotalValue, p.VaR1D, p.MarginUtilization, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert portfolio %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a portfolio and, via cascade, its holdings
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("portfolio %s not found", id)
	}
	return nil
}

// GetCount returns the number of portfolios
func (r *Repository) GetCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM portfolios`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count portfolios: %w", err)
	}
	return count, nil
}
