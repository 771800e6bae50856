package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
	"github.com/noah-isme/sma-timetable-sync/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-sync/pkg/errors"
	"github.com/noah-isme/sma-timetable-sync/pkg/jobs"
)

type syncJobStoreStub struct {
	mu        sync.Mutex
	jobs      map[string]*models.SyncJob
	updates   []repository.UpdateSyncJobParams
	createErr error
	listErr   error
	seq       int
}

func newSyncJobStoreStub() *syncJobStoreStub {
	return &syncJobStoreStub{jobs: map[string]*models.SyncJob{}}
}

func (s *syncJobStoreStub) Create(ctx context.Context, job *models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	job.ID = fmt.Sprintf("job-%d", s.seq)
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *syncJobStoreStub) GetByID(ctx context.Context, id string) (*models.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *syncJobStoreStub) Update(ctx context.Context, id string, params repository.UpdateSyncJobParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.updates = append(s.updates, params)
	job.Status = params.Status
	job.Log = params.Log
	job.ErrorMessage = params.ErrorMessage
	job.FinishedAt = params.FinishedAt
	return nil
}

func (s *syncJobStoreStub) ListRecent(ctx context.Context, limit int) ([]models.SyncJob, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return nil, nil
}

func (s *syncJobStoreStub) ListPending(ctx context.Context, limit int) ([]models.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncJob
	for _, job := range s.jobs {
		if job.Status == models.SyncJobStatusPending {
			out = append(out, *job)
		}
	}
	return out, nil
}

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type syncRunnerStub struct {
	windows []SyncWindow
	report  *models.SyncReport
	err     error
}

func (r *syncRunnerStub) Sync(ctx context.Context, window SyncWindow) (*models.SyncReport, error) {
	r.windows = append(r.windows, window)
	return r.report, r.err
}

func TestSyncJobServiceTrigger(t *testing.T) {
	store := newSyncJobStoreStub()
	queue := &dispatcherStub{}
	svc := NewSyncJobService(store, queue, nil)

	job, err := svc.Trigger(context.Background(), time.Date(2024, 9, 19, 15, 4, 0, 0, time.UTC), "cron")
	require.NoError(t, err)
	assert.Equal(t, models.SyncJobStatusPending, job.Status)
	assert.Equal(t, time.Date(2024, 9, 19, 0, 0, 0, 0, time.UTC), job.SyncDate)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, jobs.Job{ID: job.ID, Type: SyncJobType}, queue.jobs[0])
}

func TestSyncJobServiceTriggerEnqueueFailure(t *testing.T) {
	store := newSyncJobStoreStub()
	queue := &dispatcherStub{err: errors.New("queue sync full")}
	svc := NewSyncJobService(store, queue, nil)

	_, err := svc.Trigger(context.Background(), time.Time{}, "")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	require.Len(t, store.updates, 1)
	assert.Equal(t, models.SyncJobStatusError, store.updates[0].Status)
	require.NotNil(t, store.updates[0].ErrorMessage)
	assert.Contains(t, *store.updates[0].ErrorMessage, "queue sync full")
}

func TestSyncJobServiceGet(t *testing.T) {
	store := newSyncJobStoreStub()
	svc := NewSyncJobService(store, &dispatcherStub{}, nil)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	job, err := svc.Trigger(context.Background(), time.Time{}, "cli")
	require.NoError(t, err)
	loaded, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "cli", loaded.Source)
}

func TestSyncJobServiceListRecent(t *testing.T) {
	store := newSyncJobStoreStub()
	svc := NewSyncJobService(store, &dispatcherStub{}, nil)

	list, err := svc.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, list)

	store.listErr = errors.New("db down")
	_, err = svc.ListRecent(context.Background(), 5)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestSyncJobServiceRecoverPending(t *testing.T) {
	store := newSyncJobStoreStub()
	store.jobs["job-a"] = &models.SyncJob{ID: "job-a", Status: models.SyncJobStatusPending}
	store.jobs["job-b"] = &models.SyncJob{ID: "job-b", Status: models.SyncJobStatusDone}
	queue := &dispatcherStub{}
	svc := NewSyncJobService(store, queue, nil)

	svc.RecoverPending(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "job-a", queue.jobs[0].ID)
}

func TestSyncWorkerMarksJobDone(t *testing.T) {
	store := newSyncJobStoreStub()
	date := time.Date(2024, 9, 19, 0, 0, 0, 0, time.UTC)
	store.jobs["job-1"] = &models.SyncJob{ID: "job-1", Status: models.SyncJobStatusPending, SyncDate: date}
	runner := &syncRunnerStub{report: &models.SyncReport{SchoolYear: "2024/25", Lessons: 42}}
	worker := NewSyncWorker(store, runner, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	require.Len(t, runner.windows, 1)
	assert.Equal(t, date, runner.windows[0].Date)

	job := store.jobs["job-1"]
	assert.Equal(t, models.SyncJobStatusDone, job.Status)
	assert.Contains(t, job.Log, "#lessons: 42")
	assert.Contains(t, job.Log, "school year: 2024/25")
	assert.NotNil(t, job.FinishedAt)
}

func TestSyncWorkerRecordsFailureWithoutRetry(t *testing.T) {
	store := newSyncJobStoreStub()
	store.jobs["job-1"] = &models.SyncJob{ID: "job-1", Status: models.SyncJobStatusPending}
	runner := &syncRunnerStub{err: appErrors.ErrEmptyTimetable}
	worker := NewSyncWorker(store, runner, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	job := store.jobs["job-1"]
	assert.Equal(t, models.SyncJobStatusError, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "timetable contains no lessons", *job.ErrorMessage)
}

func TestSyncWorkerSkipsFinishedJob(t *testing.T) {
	store := newSyncJobStoreStub()
	store.jobs["job-1"] = &models.SyncJob{ID: "job-1", Status: models.SyncJobStatusDone}
	runner := &syncRunnerStub{}
	worker := NewSyncWorker(store, runner, nil)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	assert.Empty(t, runner.windows)
}

func TestSyncWorkerUnknownJob(t *testing.T) {
	worker := NewSyncWorker(newSyncJobStoreStub(), &syncRunnerStub{}, nil)
	err := worker.Handle(context.Background(), jobs.Job{ID: "nope"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
