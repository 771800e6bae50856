package main

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-sync/internal/remote"
	"github.com/noah-isme/sma-timetable-sync/internal/repository"
	"github.com/noah-isme/sma-timetable-sync/internal/service"
	"github.com/noah-isme/sma-timetable-sync/pkg/cache"
	"github.com/noah-isme/sma-timetable-sync/pkg/classcode"
	"github.com/noah-isme/sma-timetable-sync/pkg/config"
	"github.com/noah-isme/sma-timetable-sync/pkg/database"
	"github.com/noah-isme/sma-timetable-sync/pkg/logger"
)

// app holds the wired services shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *sqlx.DB
	cacheRepo *repository.CacheRepository
	metrics   *service.MetricsService
	timetable *repository.TimetableRepository
	syncJobs  *repository.SyncJobRepository
	sync      *service.TimetableSyncService
	matcher   *service.ImpactMatcherService
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	location, err := time.LoadLocation(cfg.Matcher.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Matcher.Timezone, err)
	}

	table, err := classcode.LoadTable(cfg.Sync.LegacyTablePath)
	if err != nil {
		return nil, fmt.Errorf("load legacy class table: %w", err)
	}
	resolver := classcode.NewResolver(table)

	client, err := remote.LoadFileClient(cfg.Remote.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("load remote snapshot: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.RunMigrations(db.DB, logr); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRepo := repository.NewCacheRepository(nil, logr)
	cacheEnabled := cfg.Cache.Enabled
	if cacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, impact cache disabled", "error", err)
			cacheEnabled = false
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheEnabled)
	timetableRepo := repository.NewTimetableRepository(db)

	syncSvc := service.NewTimetableSyncService(client, db, timetableRepo, resolver, cacheSvc, metrics, logr, service.TimetableSyncConfig{
		BatchSize:         cfg.Sync.BatchSize,
		LoginMaxAttempts:  cfg.Sync.LoginMaxAttempts,
		LoginBackoff:      cfg.Sync.LoginBackoff,
		RepresentativeGap: cfg.Sync.RepresentativeWeekShift,
		SemesterSplit:     cfg.Sync.SemesterSplit,
	})
	matcher := service.NewImpactMatcherService(db, timetableRepo, resolver, cacheSvc, metrics, nil, logr, location)

	return &app{
		cfg:       cfg,
		logger:    logr,
		db:        db,
		cacheRepo: cacheRepo,
		metrics:   metrics,
		timetable: timetableRepo,
		syncJobs:  repository.NewSyncJobRepository(db),
		sync:      syncSvc,
		matcher:   matcher,
	}, nil
}

func (a *app) Close() {
	_ = a.cacheRepo.Close()
	_ = a.db.Close()
	_ = a.logger.Sync()
}
