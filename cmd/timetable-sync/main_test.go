package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
)

func TestParseSyncWindow(t *testing.T) {
	window, err := parseSyncWindow("")
	require.NoError(t, err)
	assert.True(t, window.Date.IsZero())

	window, err = parseSyncWindow("2024-09-19")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 19, 0, 0, 0, 0, time.UTC), window.Date)

	_, err = parseSyncWindow("19.09.2024")
	assert.Error(t, err)
}

func TestParseEvent(t *testing.T) {
	zurich := time.FixedZone("CEST", 2*60*60)

	event, err := parseEvent("sport-day", "2024-09-19T08:00", "2024-09-19T12:00:00Z", " 27mT, ,24G", zurich)
	require.NoError(t, err)
	assert.Equal(t, "sport-day", event.ID)
	assert.Equal(t, time.Date(2024, 9, 19, 6, 0, 0, 0, time.UTC), event.Start.UTC())
	assert.Equal(t, time.Date(2024, 9, 19, 12, 0, 0, 0, time.UTC), event.End)
	assert.Equal(t, []string{"27mT", "24G"}, event.Classes)

	_, err = parseEvent("x", "tomorrow", "2024-09-19T12:00", "", zurich)
	assert.Error(t, err)
}

type triggerStub struct {
	sources []string
	err     error
}

func (s *triggerStub) Trigger(ctx context.Context, date time.Time, source string) (*models.SyncJob, error) {
	s.sources = append(s.sources, source)
	return &models.SyncJob{ID: "job-1"}, s.err
}

func TestNewScheduler(t *testing.T) {
	c, err := newScheduler("", &triggerStub{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = newScheduler("every tuesday", &triggerStub{}, zap.NewNop())
	assert.Error(t, err)

	trigger := &triggerStub{err: errors.New("queue full")}
	c, err = newScheduler("0 3 * * 1", trigger, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)

	c.Entries()[0].Job.Run()
	assert.Equal(t, []string{"cron"}, trigger.sources)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "sync", "affected"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
