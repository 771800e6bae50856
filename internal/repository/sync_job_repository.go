package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
)

const syncJobColumns = `id, status, source, sync_date, log, error_message, created_at, updated_at, finished_at`

// SyncJobRepository persists sync job records.
type SyncJobRepository struct {
	db *sqlx.DB
}

// NewSyncJobRepository constructs a SyncJobRepository.
func NewSyncJobRepository(db *sqlx.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// UpdateSyncJobParams lists the mutable fields of a job.
type UpdateSyncJobParams struct {
	Status       models.SyncJobStatus
	Log          string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Create inserts a new job record.
func (r *SyncJobRepository) Create(ctx context.Context, job *models.SyncJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.SyncJobStatusPending
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	const query = `INSERT INTO sync_jobs (` + syncJobColumns + `)
VALUES (:id, :status, :source, :sync_date, :log, :error_message, :created_at, :updated_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create sync job: %w", err)
	}
	return nil
}

// Update records a status transition.
func (r *SyncJobRepository) Update(ctx context.Context, id string, params UpdateSyncJobParams) error {
	const query = `UPDATE sync_jobs SET status = $1, log = $2, error_message = $3, finished_at = $4, updated_at = $5 WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, params.Status, params.Log, params.ErrorMessage, params.FinishedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update sync job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sync job rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetByID loads a job by its identifier.
func (r *SyncJobRepository) GetByID(ctx context.Context, id string) (*models.SyncJob, error) {
	const query = `SELECT ` + syncJobColumns + ` FROM sync_jobs WHERE id = $1`
	var job models.SyncJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListRecent returns the newest jobs first.
func (r *SyncJobRepository) ListRecent(ctx context.Context, limit int) ([]models.SyncJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT ` + syncJobColumns + ` FROM sync_jobs ORDER BY created_at DESC LIMIT $1`
	var jobs []models.SyncJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list sync jobs: %w", err)
	}
	return jobs, nil
}

// ListPending returns jobs that were accepted but never finished, oldest first.
func (r *SyncJobRepository) ListPending(ctx context.Context, limit int) ([]models.SyncJob, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT ` + syncJobColumns + ` FROM sync_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	var jobs []models.SyncJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.SyncJobStatusPending, limit); err != nil {
		return nil, fmt.Errorf("list pending sync jobs: %w", err)
	}
	return jobs, nil
}
