package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearline/riskwatch/internal/database"
	"github.com/clearline/riskwatch/internal/events"
	"github.com/clearline/riskwatch/internal/modules/findings"
	"github.com/clearline/riskwatch/internal/modules/portfolio"
	"github.com/clearline/riskwatch/internal/modules/rules"
	"github.com/clearline/riskwatch/internal/scanner"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	log := zerolog.Nop()

	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, "riskwatch.db"),
		Profile: database.ProfileStandard,
		Name:    "riskwatch",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(dir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { cacheDB.Close() })

	require.NoError(t, portfolio.InitSchema(db.Conn()))
	require.NoError(t, rules.InitSchema(db.Conn()))
	require.NoError(t, findings.InitSchema(db.Conn()))

	portfolioRepo := portfolio.NewRepository(db.Conn(), log)
	holdingRepo := portfolio.NewHoldingRepository(db.Conn(), log)
	rulesRepo := rules.NewRepository(db.Conn(), log)
	findingsRepo := findings.NewRepository(db.Conn(), log)
	require.NoError(t, rulesRepo.SeedDefaults())

	cache := scanner.NewSnapshotCache(cacheDB.Conn())
	require.NoError(t, cache.InitSchema())

	bus := events.NewBus(log)
	sc := scanner.New(scanner.Config{
		Portfolios: portfolioRepo,
		Holdings:   holdingRepo,
		Rules:      rulesRepo,
		Sink:       findingsRepo,
		Bus:        bus,
		Cache:      cache,
		Log:        log,
	})

	srv := New(Config{
		Log:        log,
		Port:       0,
		DevMode:    true,
		DataDir:    dir,
		DB:         db,
		CacheDB:    cacheDB,
		Portfolios: portfolioRepo,
		Holdings:   holdingRepo,
		Rules:      rulesRepo,
		Findings:   findingsRepo,
		Scanner:    sc,
		Cache:      cache,
		Bus:        bus,
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp, decoded
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestPortfolioLifecycle(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/portfolios", map[string]interface{}{
		"name":        "Growth Fund",
		"client_name": "Acme Capital",
		"total_value": 1_000_000.0,
		"var_1d":      -25_000.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := body["data"].(map[string]interface{})["portfolio"].(map[string]interface{})
	id := created["id"].(string)
	require.NotEmpty(t, id)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/portfolios/"+id+"/holdings", []map[string]interface{}{
		{"symbol": "AAPL", "market_value": 600_000.0, "sector": "Technology", "region": "US", "asset_class": "Equity"},
		{"symbol": "JNJ", "market_value": 400_000.0, "sector": "Healthcare", "region": "US", "asset_class": "Equity"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/portfolios/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	holdings := body["data"].(map[string]interface{})["holdings"].([]interface{})
	require.Len(t, holdings, 2)
	first := holdings[0].(map[string]interface{})
	assert.InDelta(t, 60.0, first["weight_pct"].(float64), 1e-9)

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/portfolios/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/portfolios/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func createPortfolioWithHoldings(t *testing.T, ts *httptest.Server, totalValue, var1d float64) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/portfolios", map[string]interface{}{
		"name":        "Test Portfolio",
		"total_value": totalValue,
		"var_1d":      var1d,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["data"].(map[string]interface{})["portfolio"].(map[string]interface{})["id"].(string)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/portfolios/"+id+"/holdings", []map[string]interface{}{
		{"symbol": "AAPL", "market_value": totalValue * 0.7, "sector": "Technology", "region": "US", "asset_class": "Equity"},
		{"symbol": "XOM", "market_value": totalValue * 0.3, "sector": "Energy", "region": "US", "asset_class": "Equity"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return id
}

func TestConcentrationEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	id := createPortfolioWithHoldings(t, ts, 1_000_000, -15_000)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/concentration/portfolios/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	findingList := data["findings"].([]interface{})
	// Technology at 70% breaches sector threshold, US at 100% breaches
	// geographic threshold
	require.NotEmpty(t, findingList)

	dims := map[string]bool{}
	for _, f := range findingList {
		dims[f.(map[string]interface{})["dimension"].(string)] = true
	}
	assert.True(t, dims["sector"])
	assert.True(t, dims["geographic"])
}

func TestRiskEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	id := createPortfolioWithHoldings(t, ts, 1_000_000, -60_000)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/risk/portfolios/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assessment := body["data"].(map[string]interface{})["assessment"].(map[string]interface{})
	assert.Equal(t, "high", assessment["risk_level"])
	assert.InDelta(t, 6.0, assessment["var_percentage"].(float64), 1e-9)

	// Invalid confidence rejected
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/risk/portfolios/"+id+"?confidence=1.5", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRiskEndpointInvalidPortfolio(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/portfolios", map[string]interface{}{
		"name":        "Empty",
		"total_value": 0.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := body["data"].(map[string]interface{})["portfolio"].(map[string]interface{})["id"].(string)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/risk/portfolios/"+id, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestStressEndpointWithAdHocScenario(t *testing.T) {
	ts := setupTestServer(t)
	id := createPortfolioWithHoldings(t, ts, 1_000_000, -15_000)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/stress/portfolios/"+id, map[string]interface{}{
		"scenarios": []map[string]interface{}{
			{
				"name":          "Energy Crash",
				"market_shock":  -0.05,
				"sector_shocks": map[string]float64{"Energy": -0.40},
			},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	results := body["data"].(map[string]interface{})["results"].([]interface{})
	require.Len(t, results, 1)
	result := results[0].(map[string]interface{})

	// 700k at -5% plus 300k at -40% = 155k = 15.5% of total
	assert.InDelta(t, 15.5, result["impact_percentage"].(float64), 1e-9)
	assert.Equal(t, "medium", result["severity"])
}

func TestRulesEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/rules/thresholds", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	thresholds := body["data"].(map[string]interface{})["thresholds"].(map[string]interface{})
	assert.InDelta(t, 0.30, thresholds["sector_threshold"].(float64), 1e-9)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/rules/thresholds", map[string]interface{}{
		"sector_threshold":     0.25,
		"geographic_threshold": 0.80,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/rules/thresholds", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	thresholds = body["data"].(map[string]interface{})["thresholds"].(map[string]interface{})
	assert.InDelta(t, 0.25, thresholds["sector_threshold"].(float64), 1e-9)

	// Out-of-range threshold rejected
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/rules/thresholds", map[string]interface{}{
		"sector_threshold":     1.5,
		"geographic_threshold": 0.80,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Seeded scenarios are present
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/rules/scenarios", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	scenarios := body["data"].(map[string]interface{})["scenarios"].([]interface{})
	assert.NotEmpty(t, scenarios)
}

func TestScanAndDashboard(t *testing.T) {
	ts := setupTestServer(t)

	// No snapshot before the first scan
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/dashboard", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	createPortfolioWithHoldings(t, ts, 1_000_000, -15_000)
	createPortfolioWithHoldings(t, ts, 2_000_000, -150_000)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/scan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["scan_id"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["portfolio_count"].(float64))

	// Persisted assessments are ranked, riskiest first
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/risk/ranking", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assessments := body["data"].(map[string]interface{})["assessments"].([]interface{})
	require.Len(t, assessments, 2)
	top := assessments[0].(map[string]interface{})
	assert.InDelta(t, 7.5, top["var_percentage"].(float64), 1e-9)

	// Findings were recorded during the scan
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/findings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	findingList := body["data"].(map[string]interface{})["findings"].([]interface{})
	assert.NotEmpty(t, findingList)

	// Acknowledge the first finding
	first := findingList[0].(map[string]interface{})
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/findings/%s/acknowledge", ts.URL, first["id"].(string)), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBackupEndpointsNotConfigured(t *testing.T) {
	ts := setupTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/backups/", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
