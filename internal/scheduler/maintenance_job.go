package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/database"
)

// FindingPruner removes stale scan output.
type FindingPruner interface {
	PruneOlderThan(cutoff time.Time) (int64, error)
}

// MaintenanceJob keeps the databases lean: prunes acknowledged findings
// past the retention window and checkpoints WAL files.
type MaintenanceJob struct {
	pruner    FindingPruner
	retention time.Duration
	databases []*database.DB
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(pruner FindingPruner, retention time.Duration, dbs []*database.DB, log zerolog.Logger) *MaintenanceJob {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	return &MaintenanceJob{
		pruner:    pruner,
		retention: retention,
		databases: dbs,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance tasks
func (j *MaintenanceJob) Run() error {
	cutoff := time.Now().Add(-j.retention)

	pruned, err := j.pruner.PruneOlderThan(cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune old findings")
		return err
	}
	if pruned > 0 {
		j.log.Info().Int64("rows", pruned).Time("cutoff", cutoff).Msg("Pruned old scan output")
	}

	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			continue
		}
		j.log.Debug().Str("database", db.Name()).Msg("WAL checkpoint OK")
	}

	return nil
}
