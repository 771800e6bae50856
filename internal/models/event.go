package models

import "time"

// Event is a calendar event owned by the CRUD layer. Classes holds class
// names, legacy aliases or group prefixes such as "27G".
type Event struct {
	ID      string    `json:"id" validate:"required"`
	Start   time.Time `json:"start" validate:"required"`
	End     time.Time `json:"end" validate:"required,gtefield=Start"`
	Classes []string  `json:"classes" validate:"dive,required"`
}

// LessonClassRow is one lesson joined with one of its classes.
type LessonClassRow struct {
	Lesson
	ClassID   int64  `db:"class_id"`
	ClassName string `db:"class_name"`
}

// AffectedLesson is a lesson touched by an event together with its teachers and
// the event's classes attending it.
type AffectedLesson struct {
	Lesson     Lesson  `json:"lesson"`
	TeacherIDs []int64 `json:"teacher_ids"`
	ClassIDs   []int64 `json:"class_ids"`
}
