package models

import (
	"fmt"
	"strings"
	"time"
)

// SyncJobStatus captures the lifecycle of a sync job.
type SyncJobStatus string

const (
	SyncJobStatusPending SyncJobStatus = "PENDING"
	SyncJobStatusDone    SyncJobStatus = "DONE"
	SyncJobStatusError   SyncJobStatus = "ERROR"
)

// SyncJob is the persisted record of one sync request.
type SyncJob struct {
	ID           string        `db:"id" json:"id"`
	Status       SyncJobStatus `db:"status" json:"status"`
	Source       string        `db:"source" json:"source"`
	SyncDate     time.Time     `db:"sync_date" json:"sync_date"`
	Log          string        `db:"log" json:"log"`
	ErrorMessage *string       `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
	FinishedAt   *time.Time    `db:"finished_at" json:"finished_at,omitempty"`
}

// Semester is one half of a school year together with the week used as its
// recurring pattern.
type Semester struct {
	Label          string    `json:"label"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Representative time.Time `json:"representative"`
}

// SyncReport summarises a successful sync run.
type SyncReport struct {
	SchoolYear       string        `json:"school_year"`
	Semesters        []Semester    `json:"semesters"`
	Subjects         int           `json:"subjects"`
	Teachers         int           `json:"teachers"`
	Classes          int           `json:"classes"`
	Lessons          int           `json:"lessons"`
	ClassLessons     int           `json:"class_lessons"`
	TeacherLessons   int           `json:"teacher_lessons"`
	DiscardedEntries int           `json:"discarded_entries"`
	DroppedLinks     int           `json:"dropped_links"`
	PartialFailures  []string      `json:"partial_failures,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
}

// Log renders the human readable summary stored on the sync job.
func (r SyncReport) Log() string {
	weeks := make([]string, 0, len(r.Semesters))
	for _, sem := range r.Semesters {
		weeks = append(weeks, fmt.Sprintf("%s=%s", sem.Label, sem.Representative.Format("2006-01-02")))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "#subjects: %d\n", r.Subjects)
	fmt.Fprintf(&b, "#teachers: %d\n", r.Teachers)
	fmt.Fprintf(&b, "#classes: %d\n", r.Classes)
	fmt.Fprintf(&b, "#lessons: %d\n", r.Lessons)
	fmt.Fprintf(&b, "synced weeks: %s\n", strings.Join(weeks, ", "))
	fmt.Fprintf(&b, "school year: %s", r.SchoolYear)
	if len(r.PartialFailures) > 0 {
		fmt.Fprintf(&b, "\npartial failures: %s", strings.Join(r.PartialFailures, "; "))
	}
	return b.String()
}
