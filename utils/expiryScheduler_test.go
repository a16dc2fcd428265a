package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursebridge/services/progress"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpirer struct {
	at  []time.Time
	res progress.ExpiryResult
	err error
}

func (f *fakeExpirer) ExpireOverdue(_ context.Context, at time.Time) (progress.ExpiryResult, error) {
	f.at = append(f.at, at)
	return f.res, f.err
}

func TestRunExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeExpirer{res: progress.ExpiryResult{Records: 2, Elements: 5}}

	res, err := RunExpiry(context.Background(), f, now)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, []time.Time{now}, f.at)

	f.err = errors.New("db down")
	_, err = RunExpiry(context.Background(), f, now)
	assert.EqualError(t, err, "db down")
}

func TestStartExpirySchedulerRejectsBadSpec(t *testing.T) {
	c := cron.New()
	assert.Error(t, StartExpiryScheduler(c, "not a cron spec", &fakeExpirer{}))
	require.NoError(t, StartExpiryScheduler(c, "*/5 * * * *", &fakeExpirer{}))
	assert.Len(t, c.Entries(), 1)
}
