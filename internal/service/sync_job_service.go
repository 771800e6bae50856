package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
	"github.com/noah-isme/sma-timetable-sync/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-sync/pkg/errors"
	"github.com/noah-isme/sma-timetable-sync/pkg/jobs"
)

// SyncJobType tags sync jobs on the queue.
const SyncJobType = "timetable_sync"

type syncJobStore interface {
	Create(ctx context.Context, job *models.SyncJob) error
	GetByID(ctx context.Context, id string) (*models.SyncJob, error)
	Update(ctx context.Context, id string, params repository.UpdateSyncJobParams) error
	ListRecent(ctx context.Context, limit int) ([]models.SyncJob, error)
	ListPending(ctx context.Context, limit int) ([]models.SyncJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type syncRunner interface {
	Sync(ctx context.Context, window SyncWindow) (*models.SyncReport, error)
}

// SyncJobService records sync requests and hands them to the queue.
type SyncJobService struct {
	repo   syncJobStore
	queue  jobDispatcher
	logger *zap.Logger
	now    func() time.Time
}

// NewSyncJobService constructs the job service.
func NewSyncJobService(repo syncJobStore, queue jobDispatcher, logger *zap.Logger) *SyncJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncJobService{repo: repo, queue: queue, logger: logger, now: time.Now}
}

// Trigger persists a PENDING job for date and enqueues it. A zero date means
// today.
func (s *SyncJobService) Trigger(ctx context.Context, date time.Time, source string) (*models.SyncJob, error) {
	if date.IsZero() {
		date = s.now()
	}
	if source == "" {
		source = "manual"
	}
	job := &models.SyncJob{
		Status:   models.SyncJobStatusPending,
		Source:   source,
		SyncDate: truncateDay(date),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sync job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: SyncJobType}); err != nil {
		msg := "failed to enqueue job: " + err.Error()
		now := s.now().UTC()
		if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateSyncJobParams{
			Status:       models.SyncJobStatusError,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Sugar().Warnw("failed to mark sync job failed", "job_id", job.ID, "error", updateErr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue sync job")
	}
	s.logger.Sugar().Infow("sync job queued", "job_id", job.ID, "source", source, "date", job.SyncDate.Format("2006-01-02"))
	return job, nil
}

// Get loads a job by id.
func (s *SyncJobService) Get(ctx context.Context, id string) (*models.SyncJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sync job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sync job")
	}
	return job, nil
}

// ListRecent returns the latest jobs, newest first.
func (s *SyncJobService) ListRecent(ctx context.Context, limit int) ([]models.SyncJob, error) {
	list, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sync jobs")
	}
	if list == nil {
		list = []models.SyncJob{}
	}
	return list, nil
}

// RecoverPending requeues jobs left PENDING by a previous process.
func (s *SyncJobService) RecoverPending(ctx context.Context) {
	pending, err := s.repo.ListPending(ctx, 10)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover pending sync jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: SyncJobType}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending sync job", "job_id", job.ID, "error", err)
		}
	}
}

// SyncWorker bridges queue jobs to the sync engine.
type SyncWorker struct {
	repo   syncJobStore
	runner syncRunner
	logger *zap.Logger
}

// NewSyncWorker constructs a worker.
func NewSyncWorker(repo syncJobStore, runner syncRunner, logger *zap.Logger) *SyncWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncWorker{repo: repo, runner: runner, logger: logger}
}

// Handle runs the sync for one job and records the outcome. Sync failures
// are recorded on the job and not returned, so the queue never replays a run.
func (w *SyncWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status != models.SyncJobStatusPending {
		w.logger.Sugar().Infow("sync job already finished", "job_id", job.ID, "status", record.Status)
		return nil
	}

	report, syncErr := w.runner.Sync(ctx, SyncWindow{Date: record.SyncDate})
	now := time.Now().UTC()
	params := repository.UpdateSyncJobParams{FinishedAt: &now}
	if syncErr != nil {
		msg := syncErr.Error()
		params.Status = models.SyncJobStatusError
		params.ErrorMessage = &msg
	} else {
		params.Status = models.SyncJobStatusDone
		params.Log = report.Log()
	}

	if err := w.repo.Update(ctx, job.ID, params); err != nil {
		w.logger.Sugar().Warnw("failed to record sync job outcome", "job_id", job.ID, "status", params.Status, "error", err)
		return err
	}
	return nil
}
