package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/reliability"
	"github.com/clearline/riskwatch/internal/scanner"
)

// DashboardHandlers serves the scan snapshot and manual triggers.
type DashboardHandlers struct {
	scanner *scanner.Scanner
	cache   *scanner.SnapshotCache
	backup  *reliability.BackupService
	log     zerolog.Logger
}

// NewDashboardHandlers creates new dashboard handlers
func NewDashboardHandlers(sc *scanner.Scanner, cache *scanner.SnapshotCache, backup *reliability.BackupService, log zerolog.Logger) *DashboardHandlers {
	return &DashboardHandlers{
		scanner: sc,
		cache:   cache,
		backup:  backup,
		log:     log.With().Str("handler", "dashboard").Logger(),
	}
}

// HandleDashboard handles GET /api/dashboard
// Serves the cached snapshot from the last scan. 404 until the first
// scan has run.
func (h *DashboardHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cache.Latest()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load dashboard snapshot")
		http.Error(w, "Failed to load dashboard snapshot", http.StatusInternalServerError)
		return
	}
	if summary == nil {
		http.Error(w, "No scan has completed yet", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summary,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleTriggerScan handles POST /api/scan
// Runs a full scan synchronously and returns the fresh summary.
func (h *DashboardHandlers) HandleTriggerScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.scanner.ScanAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual scan failed")
		http.Error(w, "Scan failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"scan_id":     result.ScanID,
			"summary":     result.Summary,
			"failed_runs": result.FailedRuns,
			"duration_ms": result.Duration.Milliseconds(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListBackups handles GET /api/backups
func (h *DashboardHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		http.Error(w, "Backups are not configured", http.StatusNotImplemented)
		return
	}

	backups, err := h.backup.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		http.Error(w, "Failed to list backups", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"backups": backups,
			"count":   len(backups),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleTriggerBackup handles POST /api/backups
func (h *DashboardHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		http.Error(w, "Backups are not configured", http.StatusNotImplemented)
		return
	}

	if err := h.backup.CreateAndUploadBackup(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Manual backup failed")
		http.Error(w, "Backup failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"status": "completed",
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *DashboardHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
