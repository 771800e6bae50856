package models

import "github.com/noah-isme/sma-timetable-sync/pkg/classcode"

// Class is a school class as delivered by the timetable service. Name keeps the
// source spelling, which may be a legacy code.
type Class struct {
	ID          int64                `db:"id" json:"id"`
	Name        string               `db:"name" json:"name"`
	DisplayName string               `db:"display_name" json:"display_name"`
	Department  classcode.Department `db:"department" json:"department"`
}

// ClassLesson links a class to a lesson.
type ClassLesson struct {
	ClassID  int64 `db:"class_id" json:"class_id"`
	LessonID int64 `db:"lesson_id" json:"lesson_id"`
}
