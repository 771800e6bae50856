package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is an export of the timetable service, one timetable per week.
type Snapshot struct {
	SchoolYears []SchoolYear `yaml:"school_years"`
	Subjects    []Subject    `yaml:"subjects"`
	Teachers    []Teacher    `yaml:"teachers"`
	Classes     []Class      `yaml:"classes"`
	// Weeks is keyed by the Monday of the week (2006-01-02), then by class id.
	Weeks map[string]map[int][]TimetableEntry `yaml:"weeks"`
}

var errNotLoggedIn = errors.New("remote: not logged in")

// FileClient serves a Snapshot as if it were the live timetable service.
type FileClient struct {
	snapshot Snapshot

	mu       sync.RWMutex
	loggedIn bool
}

// NewFileClient wraps an in-memory snapshot.
func NewFileClient(snapshot Snapshot) *FileClient {
	return &FileClient{snapshot: snapshot}
}

// LoadFileClient reads a YAML snapshot from disk.
func LoadFileClient(path string) (*FileClient, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timetable snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := yaml.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("parse timetable snapshot: %w", err)
	}
	return NewFileClient(snapshot), nil
}

func (c *FileClient) Login(ctx context.Context) error {
	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

func (c *FileClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()
	return nil
}

func (c *FileClient) SchoolYears(ctx context.Context) ([]SchoolYear, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}
	return c.snapshot.SchoolYears, nil
}

func (c *FileClient) Subjects(ctx context.Context) ([]Subject, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}
	return c.snapshot.Subjects, nil
}

func (c *FileClient) Teachers(ctx context.Context) ([]Teacher, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}
	return c.snapshot.Teachers, nil
}

func (c *FileClient) Classes(ctx context.Context, schoolYearID int) ([]Class, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}
	return c.snapshot.Classes, nil
}

func (c *FileClient) TimetableForWeek(ctx context.Context, date time.Time, classID int) ([]TimetableEntry, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}
	week := c.snapshot.Weeks[WeekKey(date)]
	return week[classID], nil
}

func (c *FileClient) ensureSession() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loggedIn {
		return errNotLoggedIn
	}
	return nil
}

// WeekKey returns the Monday of date's week formatted as 2006-01-02.
func WeekKey(date time.Time) string {
	d := dateOnly(date)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset).Format("2006-01-02")
}
