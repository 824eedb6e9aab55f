// Package rules stores the risk-rule configuration: concentration
// thresholds and stress-test scenario definitions.
package rules

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/modules/concentration"
	"github.com/clearline/riskwatch/internal/modules/stress"
)

// StoredScenario is a stress scenario as persisted, with its identity.
type StoredScenario struct {
	ID       string          `json:"id"`
	Scenario stress.Scenario `json:"scenario"`
}

// Repository handles rule configuration database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new rules repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "rules").Logger(),
	}
}

// GetThresholds returns the configured concentration thresholds, or the
// engine defaults when nothing has been stored yet.
func (r *Repository) GetThresholds() (concentration.Thresholds, error) {
	var (
		t          concentration.Thresholds
		assetClass sql.NullFloat64
	)
	err := r.db.QueryRow(`SELECT sector_threshold, geographic_threshold, asset_class_threshold
		FROM concentration_thresholds WHERE id = 1`).
		Scan(&t.Sector, &t.Geographic, &assetClass)
	if err == sql.ErrNoRows {
		return concentration.DefaultThresholds(), nil
	}
	if err != nil {
		return concentration.Thresholds{}, fmt.Errorf("failed to query thresholds: %w", err)
	}

	if assetClass.Valid {
		t.AssetClass = &assetClass.Float64
	}
	return t, nil
}

// SaveThresholds stores the concentration thresholds
func (r *Repository) SaveThresholds(t concentration.Thresholds) error {
	var assetClass interface{}
	if t.AssetClass != nil {
		assetClass = *t.AssetClass
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.Exec(`
		INSERT INTO concentration_thresholds (id, sector_threshold, geographic_threshold, asset_class_threshold, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sector_threshold = excluded.sector_threshold,
			geographic_threshold = excluded.geographic_threshold,
			asset_class_threshold = excluded.asset_class_threshold,
			updated_at = excluded.updated_at`,
		t.Sector, t.Geographic, assetClass, now)
	if err != nil {
		return fmt.Errorf("failed to save thresholds: %w", err)
	}
	return nil
}

// GetScenarios returns all stress scenarios in their configured order
func (r *Repository) GetScenarios() ([]StoredScenario, error) {
	rows, err := r.db.Query(`SELECT id, name, market_shock, sector_shocks
		FROM stress_scenarios ORDER BY position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []StoredScenario
	for rows.Next() {
		var (
			s          StoredScenario
			shocksJSON string
		)
		if err := rows.Scan(&s.ID, &s.Scenario.Name, &s.Scenario.MarketShock, &shocksJSON); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		if err := json.Unmarshal([]byte(shocksJSON), &s.Scenario.SectorShocks); err != nil {
			return nil, fmt.Errorf("failed to decode sector shocks for %s: %w", s.Scenario.Name, err)
		}
		scenarios = append(scenarios, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scenarios: %w", err)
	}

	return scenarios, nil
}

// CreateScenario stores a new scenario and returns its generated ID
func (r *Repository) CreateScenario(s stress.Scenario) (string, error) {
	shocks := s.SectorShocks
	if shocks == nil {
		shocks = map[string]float64{}
	}
	shocksJSON, err := json.Marshal(shocks)
	if err != nil {
		return "", fmt.Errorf("failed to encode sector shocks: %w", err)
	}

	id := uuid.New().String()
	var position int
	if err := r.db.QueryRow(`SELECT COALESCE(MAX(position) + 1, 0) FROM stress_scenarios`).Scan(&position); err != nil {
		return "", fmt.Errorf("failed to determine scenario position: %w", err)
	}

	_, err = r.db.Exec(`INSERT INTO stress_scenarios (id, name, market_shock, sector_shocks, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, s.Name, s.MarketShock, string(shocksJSON), position, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert scenario %s: %w", s.Name, err)
	}

	return id, nil
}

// DeleteScenario removes a scenario by ID
func (r *Repository) DeleteScenario(id string) error {
	result, err := r.db.Exec(`DELETE FROM stress_scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("scenario %s not found", id)
	}
	return nil
}

// SeedDefaults inserts the standard scenarios on first run. Existing
// configuration is never touched.
func (r *Repository) SeedDefaults() error {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM stress_scenarios`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count scenarios: %w", err)
	}
	if count > 0 {
		return nil
	}

	defaults := []stress.Scenario{
		{
			Name:        "Market Decline 15%",
			MarketShock: -0.15,
		},
		{
			Name:        "Tech Correction",
			MarketShock: -0.05,
			SectorShocks: map[string]float64{
				"Technology": -0.25,
			},
		},
	}

	for _, s := range defaults {
		if _, err := r.CreateScenario(s); err != nil {
			return err
		}
	}

	r.log.Info().Int("count", len(defaults)).Msg("Seeded default stress scenarios")
	return nil
}
