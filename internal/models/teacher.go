package models

// Teacher represents an instructor record. IDs are assigned by the timetable
// service and stay stable across syncs.
type Teacher struct {
	ID       int64  `db:"id" json:"id"`
	Code     string `db:"code" json:"code"`
	LongName string `db:"long_name" json:"long_name"`
	Title    string `db:"title" json:"title"`
	Active   bool   `db:"active" json:"active"`
}

// TeacherLesson links a teacher to a lesson.
type TeacherLesson struct {
	TeacherID int64 `db:"teacher_id" json:"teacher_id"`
	LessonID  int64 `db:"lesson_id" json:"lesson_id"`
}
