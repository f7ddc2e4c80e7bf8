package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResetter struct {
	daily       int
	monthly     int
	periodStart time.Time
}

func (f *fakeResetter) ResetDailyChatUsage(context.Context) (int64, error) {
	f.daily++
	return 3, nil
}

func (f *fakeResetter) ResetMonthlyMeetingUsage(_ context.Context, periodStart time.Time) (int64, error) {
	f.monthly++
	f.periodStart = periodStart
	return 5, nil
}

func TestNextResets(t *testing.T) {
	s, err := NewUsageResetScheduler(&fakeResetter{}, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 10, 19, 13, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), s.NextDailyReset(now))
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), s.NextMonthlyReset(now))

	midnight := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), s.NextDailyReset(midnight), "strictly after")

	dec := time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), s.NextMonthlyReset(dec))
}

func TestRunDue(t *testing.T) {
	repo := &fakeResetter{}
	s, err := NewUsageResetScheduler(repo, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()

	// A plain midnight only resets chat usage.
	oct20 := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	s.runDue(ctx, oct20, oct20, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, repo.daily)
	assert.Equal(t, 0, repo.monthly)

	// The first of the month resets both.
	nov1 := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	s.runDue(ctx, nov1, nov1, nov1)
	assert.Equal(t, 2, repo.daily)
	assert.Equal(t, 1, repo.monthly)
	assert.Equal(t, nov1, repo.periodStart)
}

func TestStartStop(t *testing.T) {
	s, err := NewUsageResetScheduler(&fakeResetter{}, zerolog.Nop())
	require.NoError(t, err)
	s.Start()
	s.Stop()
	assert.NotPanics(t, s.Stop, "second stop is a no-op")
}
