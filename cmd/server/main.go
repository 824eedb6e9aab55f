// Package main is the entry point for the RiskWatch portfolio risk
// monitoring service. It watches client portfolios for concentration
// breaches, elevated value-at-risk and stress-test losses, scanning on
// a schedule and serving results over a REST API with a live event
// feed.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/clearline/riskwatch/internal/config"
	"github.com/clearline/riskwatch/internal/database"
	"github.com/clearline/riskwatch/internal/events"
	"github.com/clearline/riskwatch/internal/modules/findings"
	"github.com/clearline/riskwatch/internal/modules/portfolio"
	"github.com/clearline/riskwatch/internal/modules/rules"
	"github.com/clearline/riskwatch/internal/reliability"
	"github.com/clearline/riskwatch/internal/scanner"
	"github.com/clearline/riskwatch/internal/scheduler"
	"github.com/clearline/riskwatch/internal/server"
	"github.com/clearline/riskwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting RiskWatch")

	// Primary database: portfolios, rules, findings
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "riskwatch.db"),
		Profile: database.ProfileStandard,
		Name:    "riskwatch",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open riskwatch database")
	}
	defer db.Close()

	// Cache database: ephemeral scan snapshots
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	if err := portfolio.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio schema")
	}
	if err := rules.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rules schema")
	}
	if err := findings.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize findings schema")
	}

	portfolioRepo := portfolio.NewRepository(db.Conn(), log)
	holdingRepo := portfolio.NewHoldingRepository(db.Conn(), log)
	rulesRepo := rules.NewRepository(db.Conn(), log)
	findingsRepo := findings.NewRepository(db.Conn(), log)

	if err := rulesRepo.SeedDefaults(); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed default rules")
	}

	snapshotCache := scanner.NewSnapshotCache(cacheDB.Conn())
	if err := snapshotCache.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize snapshot cache schema")
	}

	bus := events.NewBus(log)

	riskScanner := scanner.New(scanner.Config{
		Portfolios: portfolioRepo,
		Holdings:   holdingRepo,
		Rules:      rulesRepo,
		Sink:       findingsRepo,
		Bus:        bus,
		Cache:      snapshotCache,
		Log:        log,
	})

	// Backups are optional, enabled by configuring a bucket
	var backupService *reliability.BackupService
	if cfg.Backup != nil && cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Bucket:    cfg.Backup.Bucket,
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		backupService = reliability.NewBackupService(s3Client, []*database.DB{db}, cfg.DataDir, log)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backups enabled")
	}

	sched := scheduler.New(log)

	scanJob := scheduler.NewScanJob(riskScanner, 5*time.Minute, log)
	if err := sched.AddJob(cfg.ScanSchedule, scanJob); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ScanSchedule).Msg("Failed to register scan job")
	}

	maintenanceJob := scheduler.NewMaintenanceJob(findingsRepo, 90*24*time.Hour, []*database.DB{db, cacheDB}, log)
	if err := sched.AddJob("@daily", maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	if backupService != nil {
		backupJob := scheduler.NewBackupJob(backupService, bus, 30, log)
		if err := sched.AddJob(cfg.Backup.Schedule, backupJob); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Backup.Schedule).Msg("Failed to register backup job")
		}
	}

	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		DataDir:    cfg.DataDir,
		DB:         db,
		CacheDB:    cacheDB,
		Portfolios: portfolioRepo,
		Holdings:   holdingRepo,
		Rules:      rulesRepo,
		Findings:   findingsRepo,
		Scanner:    riskScanner,
		Cache:      snapshotCache,
		Bus:        bus,
		Backup:     backupService,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	sched.Start()

	// First scan at startup so the dashboard has data immediately
	go func() {
		if err := sched.RunNow(scanJob); err != nil {
			log.Error().Err(err).Msg("Initial scan failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
