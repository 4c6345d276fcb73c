package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domu-platform/domu/internal/config"
)

type fakePolls struct{ calls int }

func (f *fakePolls) CloseExpired(context.Context) (int, error) {
	f.calls++
	return 2, nil
}

type fakeVisits struct{ at time.Time }

func (f *fakeVisits) ExpireVisits(_ context.Context, now time.Time) (int64, error) {
	f.at = now
	return 0, errors.New("database unavailable")
}

type fakeTokens struct{ before time.Time }

func (f *fakeTokens) PurgeTokens(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 5, nil
}

func TestRunNow(t *testing.T) {
	cfg := config.Default().Jobs
	polls, visits, tokens := &fakePolls{}, &fakeVisits{}, &fakeTokens{}
	s := New(cfg, polls, visits, tokens, nil)
	fixed := time.Date(2025, 5, 20, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	assert.Equal(t, []string{JobClosePolls, JobExpireVisits, JobPurgeTokens}, s.Jobs())

	n, err := s.RunNow(context.Background(), JobClosePolls)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, polls.calls)

	_, err = s.RunNow(context.Background(), JobExpireVisits)
	assert.Error(t, err)
	assert.Equal(t, fixed, visits.at)

	n, err = s.RunNow(context.Background(), JobPurgeTokens)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, fixed.Add(-30*24*time.Hour), tokens.before)

	_, err = s.RunNow(context.Background(), "reindex")
	assert.Error(t, err)
}

func TestEmptyScheduleSkipsJob(t *testing.T) {
	cfg := config.JobsConfig{Enabled: true, ClosePolls: "@every 1m"}
	s := New(cfg, &fakePolls{}, &fakeVisits{}, &fakeTokens{}, nil)
	assert.Equal(t, []string{JobClosePolls}, s.Jobs())
}

func TestStartStop(t *testing.T) {
	s := New(config.Default().Jobs, &fakePolls{}, &fakeVisits{}, &fakeTokens{}, nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := config.JobsConfig{Enabled: true, ClosePolls: "every now and then"}
	s := New(cfg, &fakePolls{}, nil, nil, nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestDisabledSchedulerDoesNothing(t *testing.T) {
	cfg := config.Default().Jobs
	cfg.Enabled = false
	s := New(cfg, &fakePolls{}, &fakeVisits{}, &fakeTokens{}, nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
