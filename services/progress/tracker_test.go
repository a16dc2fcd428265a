package progress

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"coursebridge/apperr"
	"coursebridge/database/dbtest"
	"coursebridge/models/learning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTracker(t *testing.T) *Tracker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTracker(dbtest.New(t), logger).WithClock(func() time.Time { return testNow })
}

func threeElementSource(enforce bool) Source {
	past := testNow.AddDate(0, 0, -1)
	return Source{
		Type:         learning.SourceAssignment,
		ID:           7,
		EnforceOrder: enforce,
		Elements: []learning.ScheduleElement{
			{Position: 0, ContentType: learning.ContentModule, ContentID: 1, AssignOn: past},
			{Position: 1, ContentType: learning.ContentPackageType, ContentID: 2, AssignOn: past},
			{Position: 2, ContentType: learning.ContentAssessment, ContentID: 3, AssignOn: past},
		},
	}
}

func states(v *View) []string {
	out := make([]string, len(v.Elements))
	for i, e := range v.Elements {
		out[i] = e.State
	}
	return out
}

func TestCreateAndSequence(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	rec, err := tr.Create(ctx, threeElementSource(true), 42)
	require.NoError(t, err)
	assert.Equal(t, learning.ProgressAssigned, rec.Status)
	require.Len(t, rec.Elements, 3)

	v, err := tr.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"assigned", "locked", "locked"}, states(v))

	v, err = tr.CompleteElement(ctx, rec.ID, 42, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"completed", "assigned", "locked"}, states(v))
	assert.Equal(t, learning.ProgressInProgress, v.Status)
	assert.Equal(t, 33.33, v.Percentage)
	assert.NotNil(t, v.StartedAt)
	assert.NotNil(t, v.LastActivityAt)
}

func TestCreateConflict(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	_, err := tr.Create(ctx, threeElementSource(false), 42)
	require.NoError(t, err)

	_, err = tr.Create(ctx, threeElementSource(false), 42)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// another learner on the same assignment is fine
	_, err = tr.Create(ctx, threeElementSource(false), 43)
	assert.NoError(t, err)
}

func TestCreateWithoutElements(t *testing.T) {
	_, err := newTracker(t).Create(context.Background(), Source{Type: learning.SourceAssignment, ID: 1}, 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCompleteLockedElement(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	rec, err := tr.Create(ctx, threeElementSource(true), 42)
	require.NoError(t, err)

	_, err = tr.CompleteElement(ctx, rec.ID, 42, 2)
	assert.ErrorIs(t, err, apperr.ErrState)

	_, err = tr.StartElement(ctx, rec.ID, 42, 1)
	assert.ErrorIs(t, err, apperr.ErrState)

	_, err = tr.CompleteElement(ctx, rec.ID, 42, 9)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = tr.CompleteElement(ctx, rec.ID, 99, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCompleteAllElements(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	rec, err := tr.Create(ctx, threeElementSource(true), 42)
	require.NoError(t, err)

	v, err := tr.StartElement(ctx, rec.ID, 42, 0)
	require.NoError(t, err)
	assert.Equal(t, learning.ProgressInProgress, v.Status)
	assert.Equal(t, "in_progress", v.Elements[0].State)

	for pos := 0; pos < 3; pos++ {
		v, err = tr.CompleteElement(ctx, rec.ID, 42, pos)
		require.NoError(t, err)
	}
	assert.Equal(t, learning.ProgressCompleted, v.Status)
	assert.Equal(t, float64(100), v.Percentage)
	assert.NotNil(t, v.CompletedAt)

	// completed records accept no further activity, and stay unique
	_, err = tr.CompleteElement(ctx, rec.ID, 42, 0)
	assert.ErrorIs(t, err, apperr.ErrState)
	_, err = tr.Create(ctx, threeElementSource(true), 42)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCompleteContent(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	rec, err := tr.Create(ctx, threeElementSource(true), 42)
	require.NoError(t, err)

	// the package element is still locked behind element 0
	n, err := tr.CompleteContent(ctx, 42, learning.ContentPackageType, 2, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = tr.CompleteElement(ctx, rec.ID, 42, 0)
	require.NoError(t, err)

	n, err = tr.CompleteContent(ctx, 42, learning.ContentPackageType, 2, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := tr.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"completed", "completed", "assigned"}, states(v))
	assert.Equal(t, 66.67, v.Percentage)

	// other learners are untouched
	n, err = tr.CompleteContent(ctx, 43, learning.ContentPackageType, 2, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCompleteContentSkipsLaterRecords(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	rec, err := tr.Create(ctx, threeElementSource(false), 42)
	require.NoError(t, err)

	n, err := tr.CompleteContent(ctx, 42, learning.ContentPackageType, 2, rec.CreatedAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = tr.CompleteContent(ctx, 42, learning.ContentPackageType, 2, rec.CreatedAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExpireOverdue(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	src := threeElementSource(false)
	src.DueAt = &due
	rec, err := tr.Create(ctx, src, 42)
	require.NoError(t, err)
	_, err = tr.CompleteElement(ctx, rec.ID, 42, 0)
	require.NoError(t, err)

	// still inside the due day
	res, err := tr.ExpireOverdue(ctx, time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, ExpiryResult{}, res)

	res, err = tr.ExpireOverdue(ctx, time.Date(2026, 6, 2, 0, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, ExpiryResult{Records: 1, Elements: 2}, res)

	v, err := tr.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, learning.ProgressExpired, v.Status)
	assert.Equal(t, []string{"completed", "expired", "expired"}, states(v))

	// an expired pair can be tracked again; the row is re-armed, not duplicated
	again, err := tr.Create(ctx, threeElementSource(false), 42)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)
	assert.Equal(t, learning.ProgressAssigned, again.Status)
}

func TestExpireElementOnly(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	due := testNow.AddDate(0, 0, -2)
	src := threeElementSource(false)
	src.Elements[2].DueAt = &due
	rec, err := tr.Create(ctx, src, 42)
	require.NoError(t, err)

	res, err := tr.ExpireOverdue(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, ExpiryResult{Records: 0, Elements: 1}, res)

	v, err := tr.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, learning.ProgressAssigned, v.Status)
	assert.Equal(t, []string{"assigned", "assigned", "expired"}, states(v))

	_, err = tr.CompleteElement(ctx, rec.ID, 42, 2)
	assert.ErrorIs(t, err, apperr.ErrState)
}

func TestExpiredElementBlockingTheRestExpiresRecord(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	due := testNow.AddDate(0, 0, -2)
	src := threeElementSource(true)
	src.Elements[1].DueAt = &due
	rec, err := tr.Create(ctx, src, 42)
	require.NoError(t, err)
	_, err = tr.CompleteElement(ctx, rec.ID, 42, 0)
	require.NoError(t, err)

	res, err := tr.ExpireOverdue(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, ExpiryResult{Records: 1, Elements: 2}, res)

	v, err := tr.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, learning.ProgressExpired, v.Status)
	assert.Equal(t, []string{"completed", "expired", "expired"}, states(v))
}

func TestExpiredElementWithLaterWorkLeftKeepsRecordOpen(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)

	due := testNow.AddDate(0, 0, -2)
	src := threeElementSource(true)
	src.Elements[2].DueAt = &due
	rec, err := tr.Create(ctx, src, 42)
	require.NoError(t, err)

	// elements 0 and 1 come before the expired one and stay reachable
	res, err := tr.ExpireOverdue(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, ExpiryResult{Elements: 1}, res)

	v, err := tr.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, learning.ProgressAssigned, v.Status)
	assert.Equal(t, []string{"assigned", "locked", "expired"}, states(v))
}

func TestDeleteForSources(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	rec, err := tr.Create(ctx, threeElementSource(false), 42)
	require.NoError(t, err)

	require.NoError(t, tr.DeleteForSources(ctx, learning.SourceAssignment, []uint{7}))
	_, err = tr.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var n int64
	require.NoError(t, tr.db.Model(&learning.ProgressElement{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t)
	_, err := tr.Create(ctx, threeElementSource(false), 42)
	require.NoError(t, err)

	views, err := tr.ListForUser(ctx, 42)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Len(t, views[0].Elements, 3)

	views, err = tr.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, views)
}
