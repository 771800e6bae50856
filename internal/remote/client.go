// Package remote describes the read-only timetable service the sync consumes.
package remote

import (
	"context"
	"time"
)

// Entry status codes reported by the timetable service.
const (
	StatusRegular    = "regular"
	StatusCancelled  = "cancelled"
	StatusIrregular  = "irregular"
	StatusFree       = "free"
	StatusExam       = "exam"
	StatusOfficeHour = "office_hour"
)

// SchoolYear spans one academic year.
type SchoolYear struct {
	ID    int       `yaml:"id" json:"id"`
	Name  string    `yaml:"name" json:"name"`
	Start time.Time `yaml:"start" json:"start"`
	End   time.Time `yaml:"end" json:"end"`
}

// Contains reports whether day falls within the school year, both ends inclusive.
func (y SchoolYear) Contains(day time.Time) bool {
	d := dateOnly(day)
	return !d.Before(dateOnly(y.Start)) && !d.After(dateOnly(y.End))
}

type Subject struct {
	ID       int    `yaml:"id" json:"id"`
	Code     string `yaml:"code" json:"code"`
	LongName string `yaml:"long_name" json:"long_name"`
}

type Teacher struct {
	ID       int    `yaml:"id" json:"id"`
	Code     string `yaml:"code" json:"code"`
	LongName string `yaml:"long_name" json:"long_name"`
	Title    string `yaml:"title" json:"title"`
	Active   bool   `yaml:"active" json:"active"`
}

type Class struct {
	ID       int    `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	LongName string `yaml:"long_name" json:"long_name"`
}

// TimetableEntry is one dated occurrence of a lesson. Entries of a lesson
// taught by several teachers or to several classes may be reported more than
// once with the same ID.
type TimetableEntry struct {
	ID         int    `yaml:"id" json:"id"`
	Weekday    int    `yaml:"weekday" json:"weekday"`
	StartTime  int    `yaml:"start_time" json:"start_time"`
	EndTime    int    `yaml:"end_time" json:"end_time"`
	Room       string `yaml:"room" json:"room"`
	SubjectID  int    `yaml:"subject_id" json:"subject_id"`
	StatusCode string `yaml:"status_code" json:"status_code"`
	TeacherIDs []int  `yaml:"teacher_ids" json:"teacher_ids"`
	ClassIDs   []int  `yaml:"class_ids" json:"class_ids"`
}

// IsLesson reports whether the entry is a regularly held lesson. Cancelled,
// substituted, free and exam periods are not part of the weekly pattern.
func (e TimetableEntry) IsLesson() bool {
	return e.StatusCode == "" || e.StatusCode == StatusRegular
}

// Client is the timetable service. Implementations must be safe for
// concurrent TimetableForWeek calls once logged in.
type Client interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	SchoolYears(ctx context.Context) ([]SchoolYear, error)
	Subjects(ctx context.Context) ([]Subject, error)
	Teachers(ctx context.Context) ([]Teacher, error)
	Classes(ctx context.Context, schoolYearID int) ([]Class, error)
	TimetableForWeek(ctx context.Context, date time.Time, classID int) ([]TimetableEntry, error)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
