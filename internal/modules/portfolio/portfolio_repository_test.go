package portfolio

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/clearline/riskwatch/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// In-memory sqlite is per-connection; keep the pool at one
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	require.NoError(t, InitSchema(db))
	return db
}

func testPortfolio(id string) domain.Portfolio {
	return domain.Portfolio{
		ID:                id,
		Name:              "Growth " + id,
		ClientName:        "Acme Capital",
		TotalValue:        1_000_000,
		VaR1D:             -25_000,
		MarginUtilization: 0.4,
	}
}

func TestRepositoryUpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	p := testPortfolio("p1")
	require.NoError(t, repo.Upsert(p))

	got, err := repo.Get("p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p, *got)

	// Update in place
	p.TotalValue = 2_000_000
	require.NoError(t, repo.Upsert(p))

	got, err = repo.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, 2_000_000.0, got.TotalValue)

	count, err := repo.GetCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepositoryGetMissingReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	got, err := repo.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositoryGetAllOrdersByName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	b := testPortfolio("b")
	b.Name = "Beta"
	a := testPortfolio("a")
	a.Name = "Alpha"
	require.NoError(t, repo.Upsert(b))
	require.NoError(t, repo.Upsert(a))

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha", all[0].Name)
	assert.Equal(t, "Beta", all[1].Name)
}

func TestRepositoryDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Upsert(testPortfolio("p1")))
	require.NoError(t, repo.Delete("p1"))

	got, err := repo.Get("p1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, repo.Delete("p1"), "deleting a missing portfolio is an error")
}

func TestHoldingRepositoryReplaceAllComputesWeights(t *testing.T) {
	db := setupTestDB(t)
	portfolioRepo := NewRepository(db, zerolog.Nop())
	holdingRepo := NewHoldingRepository(db, zerolog.Nop())

	p := testPortfolio("p1")
	p.TotalValue = 12_500_000
	require.NoError(t, portfolioRepo.Upsert(p))

	holdings := []domain.Holding{
		{PortfolioID: "p1", Symbol: "AAPL", MarketValue: 9_262_500, Sector: "Technology", Region: "North America", AssetClass: "Equity"},
		{PortfolioID: "p1", Symbol: "MSFT", MarketValue: 3_220_650, Sector: "Technology", Region: "North America", AssetClass: "Equity"},
	}
	require.NoError(t, holdingRepo.ReplaceAll("p1", p.TotalValue, holdings))

	got, err := holdingRepo.GetByPortfolio("p1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Stored order preserved, weights derived from market values
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.InDelta(t, 74.10, got[0].WeightPct, 0.001)
	assert.Equal(t, "MSFT", got[1].Symbol)
	assert.InDelta(t, 25.7652, got[1].WeightPct, 0.001)
}

func TestHoldingRepositoryUpsertRecomputesAllWeights(t *testing.T) {
	db := setupTestDB(t)
	portfolioRepo := NewRepository(db, zerolog.Nop())
	holdingRepo := NewHoldingRepository(db, zerolog.Nop())

	require.NoError(t, portfolioRepo.Upsert(testPortfolio("p1")))

	first := domain.Holding{PortfolioID: "p1", Symbol: "AAPL", MarketValue: 600_000, Sector: "Technology"}
	require.NoError(t, holdingRepo.Upsert(first, 1_000_000))

	second := domain.Holding{PortfolioID: "p1", Symbol: "XOM", MarketValue: 400_000, Sector: "Energy"}
	require.NoError(t, holdingRepo.Upsert(second, 1_000_000))

	got, err := holdingRepo.GetByPortfolio("p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 60.0, got[0].WeightPct, 1e-9)
	assert.InDelta(t, 40.0, got[1].WeightPct, 1e-9)
}

func TestHoldingRepositoryDeleteCascadesFromPortfolio(t *testing.T) {
	db := setupTestDB(t)
	portfolioRepo := NewRepository(db, zerolog.Nop())
	holdingRepo := NewHoldingRepository(db, zerolog.Nop())

	require.NoError(t, portfolioRepo.Upsert(testPortfolio("p1")))
	require.NoError(t, holdingRepo.ReplaceAll("p1", 1_000_000, []domain.Holding{
		{PortfolioID: "p1", Symbol: "AAPL", MarketValue: 1_000_000, Sector: "Technology"},
	}))

	require.NoError(t, portfolioRepo.Delete("p1"))

	got, err := holdingRepo.GetByPortfolio("p1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
