// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dschwenke/clippy/internal/errkind"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func anonRecord(jobID, sessionID string, createdAt time.Time) *Record {
	expires := createdAt.Add(24 * time.Hour)
	return &Record{
		JobID:        jobID,
		Owner:        sessionID,
		SessionOwned: true,
		SourceURL:    "https://youtu.be/" + jobID,
		FinalPath:    "clips/" + jobID + ".mp4",
		CreatedAt:    createdAt,
		ExpiresAt:    &expires,
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := anonRecord("job-1", "sess-a", time.Now())
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-a", got.Owner)
	assert.True(t, got.SessionOwned)
	require.NotNil(t, got.ExpiresAt)
}

func TestLoadMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Load(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, errkind.KindNotFound, errkind.KindOf(err))
}

func TestSaveValidatesExpiryInvariant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Session-owned without expiry.
	bad := anonRecord("job-x", "sess-a", time.Now())
	bad.ExpiresAt = nil
	require.Error(t, s.Save(ctx, bad))

	// Owned with expiry.
	expires := time.Now().Add(time.Hour)
	require.Error(t, s.Save(ctx, &Record{
		JobID: "job-y", Owner: "user-1", CreatedAt: time.Now(), ExpiresAt: &expires,
	}))

	// Owned without expiry is fine.
	require.NoError(t, s.Save(ctx, &Record{
		JobID: "job-z", Owner: "user-1", CreatedAt: time.Now(),
	}))
}

func TestListBySessionNewestFirstWithLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		rec := anonRecord(string(rune('a'+i)), "sess-a", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Save(ctx, rec))
	}
	require.NoError(t, s.Save(ctx, anonRecord("other", "sess-b", base)))

	got, err := s.ListBySession(ctx, "sess-a", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e", got[0].JobID)
	assert.Equal(t, "d", got[1].JobID)
	assert.Equal(t, "c", got[2].JobID)
}

func TestPromoteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, anonRecord("job-1", "sess-a", time.Now())))
	require.NoError(t, s.Save(ctx, anonRecord("job-2", "sess-a", time.Now())))

	moved, err := s.Promote(ctx, "sess-a", "user-9")
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	got, err := s.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "user-9", got.Owner)
	assert.False(t, got.SessionOwned)
	assert.Nil(t, got.ExpiresAt)

	// Second promotion finds nothing to move and changes nothing.
	moved, err = s.Promote(ctx, "sess-a", "user-9")
	require.NoError(t, err)
	assert.Equal(t, 0, moved)

	again, err := s.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, got, again)

	// The session listing is empty after promotion.
	listed, err := s.ListBySession(ctx, "sess-a", 10)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	// Save insists on a future expiry, so "old" gets one minute and the
	// sweep runs with a clock two minutes ahead.
	old := anonRecord("old", "sess-a", now)
	oldExpiry := now.Add(time.Minute)
	old.ExpiresAt = &oldExpiry
	require.NoError(t, s.Save(ctx, old))
	require.NoError(t, s.Save(ctx, anonRecord("fresh", "sess-a", now)))
	require.NoError(t, s.Save(ctx, &Record{JobID: "owned", Owner: "user-1", CreatedAt: now}))

	// Sweep as of two minutes from now: only "old" has expired.
	removed, err := s.Sweep(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.Load(ctx, "old")
	assert.Equal(t, errkind.KindNotFound, errkind.KindOf(err))
	_, err = s.Load(ctx, "fresh")
	assert.NoError(t, err)
	_, err = s.Load(ctx, "owned")
	assert.NoError(t, err)

	// Sweep again: nothing left to do.
	removed, err = s.Sweep(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestPromotedRecordSurvivesSweep(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, anonRecord("job-1", "sess-a", time.Now())))
	_, err := s.Promote(ctx, "sess-a", "user-1")
	require.NoError(t, err)

	removed, err := s.Sweep(ctx, time.Now().Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	got, err := s.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.Owner)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, anonRecord("job-1", "sess-a", time.Now())))
	require.NoError(t, s.Delete(ctx, "job-1"))
	require.NoError(t, s.Delete(ctx, "job-1"))

	listed, err := s.ListBySession(ctx, "sess-a", 10)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
