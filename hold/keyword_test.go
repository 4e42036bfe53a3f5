package hold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIndefinite(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	got, err := Resolve("indefinite", now)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestResolveDayTime(t *testing.T) {
	loc := time.UTC
	morning := time.Date(2026, 3, 5, 10, 0, 0, 0, loc)
	got, err := Resolve("day-time", morning)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 6, 6, 0, 0, 0, loc), got)

	evening := time.Date(2026, 3, 5, 19, 0, 0, 0, loc)
	got, err = Resolve("day-time", evening)
	require.NoError(t, err)
	assert.Equal(t, evening, got, "day-time after 18:00 releases immediately")
}

func TestResolveThirdShiftRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	got, err := Resolve("third-shift", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), got)

	before8 := time.Date(2026, 3, 5, 3, 0, 0, 0, time.UTC)
	got, err = Resolve("third-shift", before8)
	require.NoError(t, err)
	assert.Equal(t, before8, got, "already within third shift releases immediately")
}

func TestResolveWeekend(t *testing.T) {
	wednesday := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	got, err := Resolve("weekend", wednesday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), got)

	saturday := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)
	got, err = Resolve("weekend", saturday)
	require.NoError(t, err)
	assert.Equal(t, saturday, got)
}

func TestResolveClockToday(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	got, err := Resolve("14:30", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC), got)
}

func TestResolveClockRollsToTomorrowWhenPast(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	got, err := Resolve("09:00:00", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC), got,
		"a past clock time advances by exactly one day, not a historical double-add")
}

func TestResolveClockConvertsLocalToUTC(t *testing.T) {
	loc := time.FixedZone("TEST", 5*3600)
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, loc) // 05:00 UTC
	got, err := Resolve("06:00", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC), got)
}

func TestResolveUnrecognized(t *testing.T) {
	_, err := Resolve("whenever", time.Now())
	assert.ErrorIs(t, err, ErrUnrecognized)

	_, err = Resolve("25:00", time.Now())
	assert.ErrorIs(t, err, ErrUnrecognized)

	_, err = Resolve("1:2:3:4", time.Now())
	assert.ErrorIs(t, err, ErrUnrecognized)
}
