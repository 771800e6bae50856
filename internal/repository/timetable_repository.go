package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
)

// insertChunkSize keeps batched inserts well below the postgres parameter limit.
const insertChunkSize = 500

// TimetableRepository persists the synced timetable snapshot.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ReplaceSnapshot deletes the stored timetable, inserts snap and bumps the
// snapshot version. Callers pass a transaction so that readers never observe a
// partially replaced snapshot.
func (r *TimetableRepository) ReplaceSnapshot(ctx context.Context, exec sqlx.ExtContext, snap models.TimetableSnapshot) error {
	target := r.exec(exec)

	for _, table := range []string{"class_lessons", "teacher_lessons", "lessons", "classes", "teachers"} {
		if _, err := target.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	const insertTeachers = `INSERT INTO teachers (id, code, long_name, title, active)
VALUES (:id, :code, :long_name, :title, :active)`
	if err := insertChunked(ctx, target, "teachers", insertTeachers, snap.Teachers); err != nil {
		return err
	}

	const insertClasses = `INSERT INTO classes (id, name, display_name, department)
VALUES (:id, :name, :display_name, :department)`
	if err := insertChunked(ctx, target, "classes", insertClasses, snap.Classes); err != nil {
		return err
	}

	const insertLessons = `INSERT INTO lessons (id, room, subject, description, semester, weekday, start_hhmm, end_hhmm)
VALUES (:id, :room, :subject, :description, :semester, :weekday, :start_hhmm, :end_hhmm)`
	if err := insertChunked(ctx, target, "lessons", insertLessons, snap.Lessons); err != nil {
		return err
	}

	const insertClassLessons = `INSERT INTO class_lessons (class_id, lesson_id) VALUES (:class_id, :lesson_id)`
	if err := insertChunked(ctx, target, "class_lessons", insertClassLessons, snap.ClassLessons); err != nil {
		return err
	}

	const insertTeacherLessons = `INSERT INTO teacher_lessons (teacher_id, lesson_id) VALUES (:teacher_id, :lesson_id)`
	if err := insertChunked(ctx, target, "teacher_lessons", insertTeacherLessons, snap.TeacherLessons); err != nil {
		return err
	}

	const bumpVersion = `INSERT INTO snapshot_meta (id, version, replaced_at) VALUES (1, 1, NOW())
ON CONFLICT (id) DO UPDATE SET version = snapshot_meta.version + 1, replaced_at = EXCLUDED.replaced_at`
	if _, err := target.ExecContext(ctx, bumpVersion); err != nil {
		return fmt.Errorf("bump snapshot version: %w", err)
	}
	return nil
}

// SnapshotVersion returns the generation of the stored timetable. It is zero
// before the first sync.
func (r *TimetableRepository) SnapshotVersion(ctx context.Context, exec sqlx.QueryerContext) (int64, error) {
	var target sqlx.QueryerContext = r.db
	if exec != nil {
		target = exec
	}
	var version int64
	err := sqlx.GetContext(ctx, target, &version, `SELECT version FROM snapshot_meta WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read snapshot version: %w", err)
	}
	return version, nil
}

func insertChunked[T any](ctx context.Context, exec sqlx.ExtContext, table, query string, rows []T) error {
	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := sqlx.NamedExecContext(ctx, exec, query, rows[start:end]); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

// Counts returns the number of rows per snapshot table.
func (r *TimetableRepository) Counts(ctx context.Context) (models.SnapshotCounts, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM teachers) AS teachers,
	(SELECT COUNT(*) FROM classes) AS classes,
	(SELECT COUNT(*) FROM lessons) AS lessons,
	(SELECT COUNT(*) FROM class_lessons) AS class_lessons,
	(SELECT COUNT(*) FROM teacher_lessons) AS teacher_lessons`
	var counts models.SnapshotCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return models.SnapshotCounts{}, fmt.Errorf("count timetable snapshot: %w", err)
	}
	return counts, nil
}

// ListLessonClassRows returns every lesson/class pair whose class name starts
// with one of the given two digit year prefixes. Legacy and current names of
// one cohort share that prefix.
func (r *TimetableRepository) ListLessonClassRows(ctx context.Context, exec sqlx.QueryerContext, yearPrefixes []string) ([]models.LessonClassRow, error) {
	if len(yearPrefixes) == 0 {
		return nil, nil
	}
	var target sqlx.QueryerContext = r.db
	if exec != nil {
		target = exec
	}
	const query = `SELECT l.id, l.room, l.subject, l.description, l.semester, l.weekday, l.start_hhmm, l.end_hhmm,
	c.id AS class_id, c.name AS class_name
FROM lessons l
JOIN class_lessons cl ON cl.lesson_id = l.id
JOIN classes c ON c.id = cl.class_id
WHERE LEFT(c.name, 2) = ANY($1)
ORDER BY l.weekday, l.start_hhmm, l.id, c.id`
	var rows []models.LessonClassRow
	if err := sqlx.SelectContext(ctx, target, &rows, query, pq.Array(yearPrefixes)); err != nil {
		return nil, fmt.Errorf("list lesson classes: %w", err)
	}
	return rows, nil
}

// ListLessonTeachers returns the teacher links of the given lessons.
func (r *TimetableRepository) ListLessonTeachers(ctx context.Context, exec sqlx.QueryerContext, lessonIDs []int64) ([]models.TeacherLesson, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	var target sqlx.QueryerContext = r.db
	if exec != nil {
		target = exec
	}
	const query = `SELECT teacher_id, lesson_id FROM teacher_lessons WHERE lesson_id = ANY($1) ORDER BY lesson_id, teacher_id`
	var links []models.TeacherLesson
	if err := sqlx.SelectContext(ctx, target, &links, query, pq.Array(lessonIDs)); err != nil {
		return nil, fmt.Errorf("list lesson teachers: %w", err)
	}
	return links, nil
}
