package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
	"github.com/noah-isme/sma-timetable-sync/internal/remote"
	"github.com/noah-isme/sma-timetable-sync/pkg/batch"
	"github.com/noah-isme/sma-timetable-sync/pkg/classcode"
	"github.com/noah-isme/sma-timetable-sync/pkg/database"
	appErrors "github.com/noah-isme/sma-timetable-sync/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type snapshotWriter interface {
	ReplaceSnapshot(ctx context.Context, exec sqlx.ExtContext, snap models.TimetableSnapshot) error
}

// SyncWindow selects the school year and the current semester of a run. A
// zero Date means today.
type SyncWindow struct {
	Date time.Time
}

// TimetableSyncConfig tunes the reconciliation run.
type TimetableSyncConfig struct {
	BatchSize         int
	LoginMaxAttempts  int
	LoginBackoff      time.Duration
	RepresentativeGap int
	// SemesterSplit is the MM-DD on which the second semester starts.
	SemesterSplit string
}

// TimetableSyncService mirrors the remote timetable into the local store.
type TimetableSyncService struct {
	client   remote.Client
	tx       txProvider
	repo     snapshotWriter
	resolver *classcode.Resolver
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      TimetableSyncConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	running sync.Mutex
}

// NewTimetableSyncService wires the sync dependencies.
func NewTimetableSyncService(
	client remote.Client,
	tx txProvider,
	repo snapshotWriter,
	resolver *classcode.Resolver,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg TimetableSyncConfig,
) *TimetableSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = classcode.NewResolver(classcode.DefaultTable())
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.LoginMaxAttempts <= 0 {
		cfg.LoginMaxAttempts = 3
	}
	if cfg.LoginBackoff < 0 {
		cfg.LoginBackoff = 0
	}
	if cfg.RepresentativeGap < 0 {
		cfg.RepresentativeGap = 0
	}
	if cfg.SemesterSplit == "" {
		cfg.SemesterSplit = "02-01"
	}
	return &TimetableSyncService{
		client:   client,
		tx:       tx,
		repo:     repo,
		resolver: resolver,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fetchedEntry is a timetable entry tagged with the semester whose
// representative week produced it.
type fetchedEntry struct {
	semester string
	entry    remote.TimetableEntry
}

// syncState is the accumulator passed between stages. Stages return an
// updated copy and never modify the value they received.
type syncState struct {
	date      time.Time
	year      remote.SchoolYear
	semesters []models.Semester

	subjects map[int]remote.Subject
	teachers []remote.Teacher
	classes  []remote.Class

	fetched         []fetchedEntry
	partialFailures []string
	accepted        []fetchedEntry
	discarded       int

	lessons        []models.Lesson
	classLessons   []models.ClassLesson
	teacherLessons []models.TeacherLesson
	droppedLinks   int

	snapshot models.TimetableSnapshot
}

type syncStage struct {
	name string
	run  func(ctx context.Context, state syncState) (syncState, error)
}

func (s *TimetableSyncService) stages() []syncStage {
	return []syncStage{
		{name: "login", run: s.stageLogin},
		{name: "school_year", run: s.stageSchoolYear},
		{name: "master_data", run: s.stageMasterData},
		{name: "timetables", run: s.stageTimetables},
		{name: "filter", run: stageFilter},
		{name: "dedupe", run: stageDedupe},
		{name: "associate", run: stageAssociate},
		{name: "departments", run: s.stageDepartments},
		{name: "replace", run: s.stageReplace},
	}
}

// Sync runs one full reconciliation. Only one run may be active at a time;
// a concurrent call fails with SYNC_IN_PROGRESS.
func (s *TimetableSyncService) Sync(ctx context.Context, window SyncWindow) (*models.SyncReport, error) {
	if !s.running.TryLock() {
		return nil, appErrors.ErrSyncInProgress
	}
	defer s.running.Unlock()

	started := s.now()
	date := window.Date
	if date.IsZero() {
		date = started
	}
	sugar := s.logger.Sugar()
	sugar.Infow("timetable sync started", "date", date.Format("2006-01-02"))

	defer s.logout(ctx)

	state := syncState{date: date}
	for _, stage := range s.stages() {
		next, err := stage.run(ctx, state)
		if err != nil {
			appErr := appErrors.FromError(err)
			s.metrics.ObserveSync(appErr.Code, s.now().Sub(started), 0)
			sugar.Errorw("timetable sync failed", "stage", stage.name, "code", appErr.Code, "error", err)
			return nil, err
		}
		state = next
	}

	if err := s.cache.InvalidateAffected(ctx); err != nil {
		sugar.Warnw("impact cache invalidation failed", "error", err)
	}

	report := buildReport(state, started, s.now())
	s.metrics.ObserveSync("ok", report.Duration, report.Lessons)
	sugar.Infow("timetable sync finished",
		"school_year", report.SchoolYear,
		"lessons", report.Lessons,
		"classes", report.Classes,
		"teachers", report.Teachers,
		"discarded", report.DiscardedEntries,
		"dropped_links", report.DroppedLinks,
		"partial_failures", len(report.PartialFailures),
		"duration", report.Duration,
	)
	return report, nil
}

func buildReport(state syncState, started, finished time.Time) *models.SyncReport {
	counts := state.snapshot.Counts()
	return &models.SyncReport{
		SchoolYear:       state.year.Name,
		Semesters:        state.semesters,
		Subjects:         len(state.subjects),
		Teachers:         counts.Teachers,
		Classes:          counts.Classes,
		Lessons:          counts.Lessons,
		ClassLessons:     counts.ClassLessons,
		TeacherLessons:   counts.TeacherLessons,
		DiscardedEntries: state.discarded,
		DroppedLinks:     state.droppedLinks,
		PartialFailures:  state.partialFailures,
		StartedAt:        started,
		Duration:         finished.Sub(started),
	}
}

// logout runs even when ctx was cancelled so the remote session is released.
func (s *TimetableSyncService) logout(ctx context.Context) {
	logoutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.client.Logout(logoutCtx); err != nil {
		s.metrics.RecordRemoteFailure("logout")
		s.logger.Sugar().Warnw("remote logout failed", "error", err)
	}
}

func (s *TimetableSyncService) stageLogin(ctx context.Context, state syncState) (syncState, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.LoginMaxAttempts; attempt++ {
		lastErr = s.client.Login(ctx)
		if lastErr == nil {
			return state, nil
		}
		s.metrics.RecordRemoteFailure("login")
		s.logger.Sugar().Warnw("remote login failed", "attempt", attempt, "max_attempts", s.cfg.LoginMaxAttempts, "error", lastErr)
		if attempt == s.cfg.LoginMaxAttempts {
			break
		}
		if err := s.sleep(ctx, s.cfg.LoginBackoff); err != nil {
			lastErr = err
			break
		}
	}
	return state, appErrors.Wrap(lastErr, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status,
		fmt.Sprintf("login failed after %d attempts", s.cfg.LoginMaxAttempts))
}

func (s *TimetableSyncService) stageSchoolYear(ctx context.Context, state syncState) (syncState, error) {
	years, err := s.client.SchoolYears(ctx)
	if err != nil {
		return state, s.remoteFailure("school_years", err)
	}
	for _, year := range years {
		if !year.Contains(state.date) {
			continue
		}
		semesters, err := s.semestersOf(year, state.date)
		if err != nil {
			return state, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid semester split")
		}
		state.year = year
		state.semesters = semesters
		return state, nil
	}
	return state, appErrors.Clone(appErrors.ErrNoSchoolYearFound,
		fmt.Sprintf("no school year covers %s", state.date.Format("2006-01-02")))
}

// semestersOf splits year at the configured month-day. The semester holding
// date is represented by date itself, the others by a week a fixed number of
// weeks after their start.
func (s *TimetableSyncService) semestersOf(year remote.SchoolYear, date time.Time) ([]models.Semester, error) {
	split, err := time.Parse("01-02", s.cfg.SemesterSplit)
	if err != nil {
		return nil, err
	}
	start, end := truncateDay(year.Start), truncateDay(year.End)

	var boundary time.Time
	for y := start.Year(); y <= end.Year(); y++ {
		candidate := time.Date(y, split.Month(), split.Day(), 0, 0, 0, 0, start.Location())
		if candidate.After(start) && !candidate.After(end) {
			boundary = candidate
			break
		}
	}

	var semesters []models.Semester
	if boundary.IsZero() {
		semesters = []models.Semester{{Label: fmt.Sprintf("HS%d", start.Year()), Start: start, End: end}}
	} else {
		semesters = []models.Semester{
			{Label: fmt.Sprintf("HS%d", start.Year()), Start: start, End: boundary.AddDate(0, 0, -1)},
			{Label: fmt.Sprintf("FS%d", boundary.Year()), Start: boundary, End: end},
		}
	}

	day := truncateDay(date)
	for i := range semesters {
		sem := &semesters[i]
		if !day.Before(sem.Start) && !day.After(sem.End) {
			sem.Representative = day
			continue
		}
		rep := sem.Start.AddDate(0, 0, 7*s.cfg.RepresentativeGap)
		if rep.After(sem.End) {
			rep = sem.Start
		}
		sem.Representative = rep
	}
	return semesters, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *TimetableSyncService) stageMasterData(ctx context.Context, state syncState) (syncState, error) {
	subjects, err := s.client.Subjects(ctx)
	if err != nil {
		return state, s.remoteFailure("subjects", err)
	}
	teachers, err := s.client.Teachers(ctx)
	if err != nil {
		return state, s.remoteFailure("teachers", err)
	}
	classes, err := s.client.Classes(ctx, state.year.ID)
	if err != nil {
		return state, s.remoteFailure("classes", err)
	}

	state.subjects = make(map[int]remote.Subject, len(subjects))
	for _, subject := range subjects {
		if _, ok := state.subjects[subject.ID]; !ok {
			state.subjects[subject.ID] = subject
		}
	}
	state.teachers = firstByID(teachers, func(t remote.Teacher) int { return t.ID })
	state.classes = firstByID(classes, func(c remote.Class) int { return c.ID })
	if dup := len(teachers) - len(state.teachers) + len(classes) - len(state.classes); dup > 0 {
		s.logger.Sugar().Warnw("duplicate master data ids ignored", "count", dup)
	}
	return state, nil
}

// firstByID keeps the first record per id, preserving order.
func firstByID[T any](records []T, id func(T) int) []T {
	seen := make(map[int]struct{}, len(records))
	out := make([]T, 0, len(records))
	for _, record := range records {
		key := id(record)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, record)
	}
	return out
}

func (s *TimetableSyncService) remoteFailure(operation string, err error) error {
	s.metrics.RecordRemoteFailure(operation)
	return appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status,
		fmt.Sprintf("fetch %s", operation))
}

// stageTimetables fetches one representative week per semester. A failed
// pass contributes nothing and is recorded as a partial failure.
func (s *TimetableSyncService) stageTimetables(ctx context.Context, state syncState) (syncState, error) {
	classIDs := make([]int, len(state.classes))
	for i, class := range state.classes {
		classIDs[i] = class.ID
	}

	var fetched []fetchedEntry
	failures := append([]string(nil), state.partialFailures...)
	for _, sem := range state.semesters {
		week := sem.Representative
		perClass, err := batch.Run(ctx, classIDs, s.cfg.BatchSize, func(ctx context.Context, classID int) ([]remote.TimetableEntry, error) {
			return s.client.TimetableForWeek(ctx, week, classID)
		})
		if err != nil {
			partial := appErrors.Wrap(err, appErrors.ErrPartialFetchFailure.Code, appErrors.ErrPartialFetchFailure.Status,
				fmt.Sprintf("%s week %s", sem.Label, week.Format("2006-01-02")))
			failures = append(failures, fmt.Sprintf("%s: %s", partial.Code, partial.Error()))
			s.metrics.RecordPartialFailure()
			s.logger.Sugar().Warnw("timetable batch pass failed", "semester", sem.Label, "week", week.Format("2006-01-02"), "error", err)
			continue
		}
		for _, entries := range perClass {
			for _, entry := range entries {
				fetched = append(fetched, fetchedEntry{semester: sem.Label, entry: entry})
			}
		}
	}

	state.fetched = fetched
	state.partialFailures = failures
	return state, nil
}

func stageFilter(_ context.Context, state syncState) (syncState, error) {
	accepted := make([]fetchedEntry, 0, len(state.fetched))
	for _, f := range state.fetched {
		if f.entry.IsLesson() {
			accepted = append(accepted, f)
		}
	}
	state.accepted = accepted
	state.discarded = len(state.fetched) - len(accepted)
	if len(accepted) == 0 {
		return state, appErrors.ErrEmptyTimetable
	}
	return state, nil
}

// stageDedupe builds one lesson per source id. The first accepted entry of an
// id defines the slot; later entries of the same id only add associations.
func stageDedupe(_ context.Context, state syncState) (syncState, error) {
	byID := make(map[int64]models.Lesson, len(state.accepted))
	for _, f := range state.accepted {
		id := int64(f.entry.ID)
		if _, seen := byID[id]; seen {
			continue
		}
		subject := state.subjects[f.entry.SubjectID]
		byID[id] = models.Lesson{
			ID:          id,
			Room:        f.entry.Room,
			Subject:     subject.Code,
			Description: subject.LongName,
			Semester:    f.semester,
			Weekday:     f.entry.Weekday,
			StartHHMM:   f.entry.StartTime,
			EndHHMM:     f.entry.EndTime,
		}
	}

	lessons := make([]models.Lesson, 0, len(byID))
	for _, lesson := range byID {
		lessons = append(lessons, lesson)
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].ID < lessons[j].ID })
	state.lessons = lessons
	return state, nil
}

// stageAssociate attaches every class and teacher referenced by any accepted
// entry to its lesson. Ids unknown to the master data are dropped.
func stageAssociate(_ context.Context, state syncState) (syncState, error) {
	knownClasses := make(map[int64]struct{}, len(state.classes))
	for _, class := range state.classes {
		knownClasses[int64(class.ID)] = struct{}{}
	}
	knownTeachers := make(map[int64]struct{}, len(state.teachers))
	for _, teacher := range state.teachers {
		knownTeachers[int64(teacher.ID)] = struct{}{}
	}

	classLinks := make(map[models.ClassLesson]struct{})
	teacherLinks := make(map[models.TeacherLesson]struct{})
	dropped := make(map[string]struct{})
	for _, f := range state.accepted {
		lessonID := int64(f.entry.ID)
		for _, classID := range f.entry.ClassIDs {
			if _, ok := knownClasses[int64(classID)]; !ok {
				dropped[fmt.Sprintf("c%d:%d", classID, lessonID)] = struct{}{}
				continue
			}
			classLinks[models.ClassLesson{ClassID: int64(classID), LessonID: lessonID}] = struct{}{}
		}
		for _, teacherID := range f.entry.TeacherIDs {
			if _, ok := knownTeachers[int64(teacherID)]; !ok {
				dropped[fmt.Sprintf("t%d:%d", teacherID, lessonID)] = struct{}{}
				continue
			}
			teacherLinks[models.TeacherLesson{TeacherID: int64(teacherID), LessonID: lessonID}] = struct{}{}
		}
	}

	classLessons := make([]models.ClassLesson, 0, len(classLinks))
	for link := range classLinks {
		classLessons = append(classLessons, link)
	}
	sort.Slice(classLessons, func(i, j int) bool {
		if classLessons[i].LessonID != classLessons[j].LessonID {
			return classLessons[i].LessonID < classLessons[j].LessonID
		}
		return classLessons[i].ClassID < classLessons[j].ClassID
	})

	teacherLessons := make([]models.TeacherLesson, 0, len(teacherLinks))
	for link := range teacherLinks {
		teacherLessons = append(teacherLessons, link)
	}
	sort.Slice(teacherLessons, func(i, j int) bool {
		if teacherLessons[i].LessonID != teacherLessons[j].LessonID {
			return teacherLessons[i].LessonID < teacherLessons[j].LessonID
		}
		return teacherLessons[i].TeacherID < teacherLessons[j].TeacherID
	})

	state.classLessons = classLessons
	state.teacherLessons = teacherLessons
	state.droppedLinks = len(dropped)
	return state, nil
}

func (s *TimetableSyncService) stageDepartments(_ context.Context, state syncState) (syncState, error) {
	classes := make([]models.Class, 0, len(state.classes))
	unresolved := 0
	for _, class := range state.classes {
		res := s.resolver.Resolve(class.Name)
		if !res.OK() {
			unresolved++
		}
		display := class.LongName
		if display == "" {
			display = res.Canonical
		}
		classes = append(classes, models.Class{
			ID:          int64(class.ID),
			Name:        class.Name,
			DisplayName: display,
			Department:  res.Department,
		})
	}
	if unresolved > 0 {
		s.logger.Sugar().Infow("classes without department", "count", unresolved)
	}

	teachers := make([]models.Teacher, 0, len(state.teachers))
	for _, teacher := range state.teachers {
		teachers = append(teachers, models.Teacher{
			ID:       int64(teacher.ID),
			Code:     teacher.Code,
			LongName: teacher.LongName,
			Title:    teacher.Title,
			Active:   teacher.Active,
		})
	}

	state.snapshot = models.TimetableSnapshot{
		Teachers:       teachers,
		Classes:        classes,
		Lessons:        state.lessons,
		ClassLessons:   state.classLessons,
		TeacherLessons: state.teacherLessons,
	}
	return state, nil
}

func (s *TimetableSyncService) stageReplace(ctx context.Context, state syncState) (syncState, error) {
	err := database.RunInTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		return s.repo.ReplaceSnapshot(ctx, tx, state.snapshot)
	})
	if err != nil {
		return state, appErrors.Wrap(err, appErrors.ErrReconciliationWriteFailure.Code,
			appErrors.ErrReconciliationWriteFailure.Status, appErrors.ErrReconciliationWriteFailure.Message)
	}
	return state, nil
}
