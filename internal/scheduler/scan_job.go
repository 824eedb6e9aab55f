package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/scanner"
)

// ScanJob runs the dashboard-wide risk scan on a schedule.
type ScanJob struct {
	scanner *scanner.Scanner
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewScanJob creates a new scheduled scan job
func NewScanJob(sc *scanner.Scanner, timeout time.Duration, log zerolog.Logger) *ScanJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ScanJob{
		scanner: sc,
		timeout: timeout,
		log:     log.With().Str("job", "risk_scan").Logger(),
	}
}

// Name returns the job name
func (j *ScanJob) Name() string {
	return "risk_scan"
}

// Run executes a full scan. Overlapping runs are skipped rather than
// queued so a slow scan cannot pile up behind itself.
func (j *ScanJob) Run() error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.log.Warn().Msg("Scan already running, skipping this cycle")
		return nil
	}
	j.running = true
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.scanner.ScanAll(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("scan_id", result.ScanID).
		Int("portfolios", result.Summary.PortfolioCount).
		Int("findings", result.Summary.FindingCount).
		Msg("Scheduled scan finished")

	return nil
}
