package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
	"github.com/noah-isme/sma-timetable-sync/pkg/classcode"
	"github.com/noah-isme/sma-timetable-sync/pkg/database"
	appErrors "github.com/noah-isme/sma-timetable-sync/pkg/errors"
)

const (
	minutesPerDay  = 24 * 60
	minutesPerWeek = 7 * minutesPerDay
)

type lessonReader interface {
	SnapshotVersion(ctx context.Context, exec sqlx.QueryerContext) (int64, error)
	ListLessonClassRows(ctx context.Context, exec sqlx.QueryerContext, yearPrefixes []string) ([]models.LessonClassRow, error)
	ListLessonTeachers(ctx context.Context, exec sqlx.QueryerContext, lessonIDs []int64) ([]models.TeacherLesson, error)
}

// ImpactMatcherService finds the recurring lessons an event collides with.
type ImpactMatcherService struct {
	tx        txProvider
	repo      lessonReader
	resolver  *classcode.Resolver
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
}

// NewImpactMatcherService wires the matcher. Event times are interpreted in
// location, which defaults to UTC.
func NewImpactMatcherService(
	tx txProvider,
	repo lessonReader,
	resolver *classcode.Resolver,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	location *time.Location,
) *ImpactMatcherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = classcode.NewResolver(classcode.DefaultTable())
	}
	if location == nil {
		location = time.UTC
	}
	return &ImpactMatcherService{
		tx:        tx,
		repo:      repo,
		resolver:  resolver,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		location:  location,
	}
}

// eventWindow is an event projected onto the weekly cycle: the weekday and
// minute of its start plus its length.
type eventWindow struct {
	weekday  int
	offset   int
	duration int
	weeks    int
}

func newEventWindow(start, end time.Time) eventWindow {
	duration := int(math.Ceil(end.Sub(start).Seconds() / 60))
	weeks := int(math.Ceil(float64(duration) / minutesPerWeek))
	if weeks < 1 {
		weeks = 1
	}
	return eventWindow{
		weekday:  int(start.Weekday()),
		offset:   start.Hour()*60 + start.Minute(),
		duration: duration,
		weeks:    weeks,
	}
}

// overlaps reports whether any weekly occurrence of the slot intersects the
// window. The slot is shifted to the first occurrence on or after the event's
// start day; if that one ends before the event starts, the following week's
// occurrence is the only other candidate.
func (w eventWindow) overlaps(weekday, startHHMM, endHHMM int) bool {
	shift := ((weekday + w.weeks*7 - w.weekday) % 7) * minutesPerDay
	start := shift + models.MinutesOfHHMM(startHHMM)
	end := shift + models.MinutesOfHHMM(endHHMM)
	limit := w.offset + w.duration

	if start < limit && end > w.offset {
		return true
	}
	return end <= w.offset && start+minutesPerWeek < limit
}

// classTokens normalises the event's class filters.
func classTokens(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

// yearPrefixes returns the cohort prefixes worth loading. Legacy and current
// spellings of a class share the two digit year.
func yearPrefixes(tokens []string) []string {
	seen := make(map[string]struct{})
	var prefixes []string
	for _, token := range tokens {
		if len(token) < 2 {
			continue
		}
		prefix := token[:2]
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// classMatches accepts an exact name, a legacy alias of the same class, or a
// group token that is a strict prefix of the name in either spelling.
func (s *ImpactMatcherService) classMatches(name string, tokens []string) bool {
	canonical := s.resolver.Canonical(name)
	for _, token := range tokens {
		if name == token || s.resolver.Equivalent(name, token) {
			return true
		}
		if len(token) < len(name) && strings.HasPrefix(name, token) {
			return true
		}
		if len(token) < len(canonical) && strings.HasPrefix(canonical, token) {
			return true
		}
	}
	return false
}

// AffectedLessons returns one entry per recurring lesson whose weekly slot
// overlaps the event and which is attended by at least one of the event's
// classes. Entries carry every teacher of the lesson and the matching classes.
func (s *ImpactMatcherService) AffectedLessons(ctx context.Context, event models.Event) ([]models.AffectedLesson, error) {
	if err := s.validator.Struct(event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event")
	}
	if event.Start.IsZero() || event.End.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event start and end are required")
	}

	started := time.Now()
	defer func() { s.metrics.ObserveMatcher(time.Since(started)) }()

	tokens := classTokens(event.Classes)
	if len(tokens) == 0 {
		return []models.AffectedLesson{}, nil
	}

	window := newEventWindow(event.Start.In(s.location), event.End.In(s.location))

	var (
		key       string
		result    []models.AffectedLesson
		fromCache bool
	)
	// The version and the rows come from one snapshot, so a result is only
	// ever cached under the version it was computed from.
	err := database.RunInTx(ctx, s.tx, database.ReadOnlySnapshot(), func(tx *sqlx.Tx) error {
		version, err := s.repo.SnapshotVersion(ctx, tx)
		if err != nil {
			return err
		}
		key = AffectedKey(event, version)
		var cached []models.AffectedLesson
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			result = cached
			fromCache = true
			return nil
		}

		rows, err := s.repo.ListLessonClassRows(ctx, tx, yearPrefixes(tokens))
		if err != nil {
			return err
		}

		byLesson := make(map[int64]*models.AffectedLesson)
		for _, row := range rows {
			if !window.overlaps(row.Weekday, row.StartHHMM, row.EndHHMM) {
				continue
			}
			if !s.classMatches(row.ClassName, tokens) {
				continue
			}
			entry, ok := byLesson[row.ID]
			if !ok {
				entry = &models.AffectedLesson{Lesson: row.Lesson, TeacherIDs: []int64{}, ClassIDs: []int64{}}
				byLesson[row.ID] = entry
			}
			entry.ClassIDs = appendUnique(entry.ClassIDs, row.ClassID)
		}
		if len(byLesson) == 0 {
			result = []models.AffectedLesson{}
			return nil
		}

		ids := make([]int64, 0, len(byLesson))
		for id := range byLesson {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		links, err := s.repo.ListLessonTeachers(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, link := range links {
			if entry, ok := byLesson[link.LessonID]; ok {
				entry.TeacherIDs = appendUnique(entry.TeacherIDs, link.TeacherID)
			}
		}

		result = make([]models.AffectedLesson, 0, len(byLesson))
		for _, entry := range byLesson {
			sort.Slice(entry.ClassIDs, func(i, j int) bool { return entry.ClassIDs[i] < entry.ClassIDs[j] })
			sort.Slice(entry.TeacherIDs, func(i, j int) bool { return entry.TeacherIDs[i] < entry.TeacherIDs[j] })
			result = append(result, *entry)
		}
		return nil
	})
	if err != nil {
		s.logger.Sugar().Errorw("affected lessons lookup failed", "event_id", event.ID, "error", err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if fromCache {
		return result, nil
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Lesson, result[j].Lesson
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.StartHHMM != b.StartHHMM {
			return a.StartHHMM < b.StartHHMM
		}
		return a.ID < b.ID
	})

	_ = s.cache.Set(ctx, key, result, 0)
	return result, nil
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
