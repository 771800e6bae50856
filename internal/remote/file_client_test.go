package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileClient(t *testing.T) {
	client, err := LoadFileClient("testdata/snapshot.yaml")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Subjects(ctx)
	assert.ErrorIs(t, err, errNotLoggedIn)

	require.NoError(t, client.Login(ctx))
	years, err := client.SchoolYears(ctx)
	require.NoError(t, err)
	require.Len(t, years, 1)
	assert.True(t, years[0].Contains(time.Date(2024, 9, 19, 15, 0, 0, 0, time.UTC)))
	assert.False(t, years[0].Contains(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)))

	entries, err := client.TimetableForWeek(ctx, time.Date(2024, 9, 19, 0, 0, 0, 0, time.UTC), 101)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 5000, entries[0].ID)
	assert.Equal(t, []int{100, 101}, entries[0].ClassIDs)
	assert.True(t, entries[0].IsLesson())

	empty, err := client.TimetableForWeek(ctx, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), 101)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, client.Logout(ctx))
	_, err = client.Teachers(ctx)
	assert.Error(t, err)
}

func TestWeekKey(t *testing.T) {
	assert.Equal(t, "2024-09-16", WeekKey(time.Date(2024, 9, 16, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-09-16", WeekKey(time.Date(2024, 9, 22, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-09-23", WeekKey(time.Date(2024, 9, 23, 0, 0, 0, 0, time.UTC)))
}

func TestIsLesson(t *testing.T) {
	assert.True(t, TimetableEntry{}.IsLesson())
	assert.True(t, TimetableEntry{StatusCode: StatusRegular}.IsLesson())
	for _, code := range []string{StatusCancelled, StatusIrregular, StatusFree, StatusExam, StatusOfficeHour} {
		assert.False(t, TimetableEntry{StatusCode: code}.IsLesson(), code)
	}
}
