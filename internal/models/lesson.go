package models

import "fmt"

// Lesson is one recurring weekly timetable slot.
type Lesson struct {
	ID          int64  `db:"id" json:"id"`
	Room        string `db:"room" json:"room"`
	Subject     string `db:"subject" json:"subject"`
	Description string `db:"description" json:"description"`
	Semester    string `db:"semester" json:"semester"`
	// Weekday follows time.Weekday: Sunday is 0.
	Weekday   int `db:"weekday" json:"weekday"`
	StartHHMM int `db:"start_hhmm" json:"start_hhmm"`
	EndHHMM   int `db:"end_hhmm" json:"end_hhmm"`
}

// StartMinutes returns the lesson start as minutes since midnight.
func (l Lesson) StartMinutes() int {
	return MinutesOfHHMM(l.StartHHMM)
}

// EndMinutes returns the lesson end as minutes since midnight.
func (l Lesson) EndMinutes() int {
	return MinutesOfHHMM(l.EndHHMM)
}

// MinutesOfHHMM converts 1025 into 625.
func MinutesOfHHMM(hhmm int) int {
	return (hhmm/100)*60 + hhmm%100
}

// FormatHHMM renders 825 as "08:25".
func FormatHHMM(hhmm int) string {
	return fmt.Sprintf("%02d:%02d", hhmm/100, hhmm%100)
}

// TimetableSnapshot is the complete persisted timetable produced by one sync.
type TimetableSnapshot struct {
	Teachers       []Teacher
	Classes        []Class
	Lessons        []Lesson
	ClassLessons   []ClassLesson
	TeacherLessons []TeacherLesson
}

// SnapshotCounts summarises a snapshot.
type SnapshotCounts struct {
	Teachers       int `db:"teachers" json:"teachers"`
	Classes        int `db:"classes" json:"classes"`
	Lessons        int `db:"lessons" json:"lessons"`
	ClassLessons   int `db:"class_lessons" json:"class_lessons"`
	TeacherLessons int `db:"teacher_lessons" json:"teacher_lessons"`
}

// Counts returns the row counts of the snapshot.
func (s TimetableSnapshot) Counts() SnapshotCounts {
	return SnapshotCounts{
		Teachers:       len(s.Teachers),
		Classes:        len(s.Classes),
		Lessons:        len(s.Lessons),
		ClassLessons:   len(s.ClassLessons),
		TeacherLessons: len(s.TeacherLessons),
	}
}
