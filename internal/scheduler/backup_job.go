package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clearline/riskwatch/internal/events"
	"github.com/clearline/riskwatch/internal/reliability"
)

// BackupJob uploads a database backup on a schedule and rotates old
// archives afterwards.
type BackupJob struct {
	backup        *reliability.BackupService
	bus           *events.Bus
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backup *reliability.BackupService, bus *events.Bus, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup:        backup,
		bus:           bus,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run creates and uploads a backup, then rotates old archives.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		j.bus.PublishError("backup", err)
		return err
	}

	j.bus.Publish(events.BackupCompleted, "backup", map[string]interface{}{
		"completed_at": time.Now().UTC().Format(time.RFC3339),
	})

	if err := j.backup.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	return nil
}
