package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/config"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
)

func testMatch(status string) *model.Match {
	return &model.Match{
		MatchID:     "m1",
		TeamAID:     "team-a",
		TeamAName:   "Alpha",
		TeamBID:     "team-b",
		TeamBName:   "Bravo",
		ScheduledAt: time.Now().Add(6 * time.Hour).Unix(),
		Status:      status,
	}
}

func TestThreadNamesCarryMatchTag(t *testing.T) {
	t.Parallel()

	m := testMatch(model.StatusScheduled)
	assert.Equal(t, "Match: Alpha vs Bravo [m:m1]", upcomingThreadName(m))

	m.Result = []byte(`{"score_a":2,"score_b":1,"winner":"team-a"}`)
	assert.Equal(t, "Result: Alpha 2:1 Bravo [m:m1]", finishedThreadName(m))
	assert.Equal(t, "Final score: Alpha 2 : 1 Bravo — winner: Alpha", summaryMessage(m))
}

func TestSummaryMessageWithoutResult(t *testing.T) {
	t.Parallel()

	m := testMatch(model.StatusFinished)
	assert.Equal(t, "Result: Alpha 0:0 Bravo [m:m1]", finishedThreadName(m))
	assert.Equal(t, "Final score: Alpha 0 : 0 Bravo — winner: draw", summaryMessage(m))
}

func newLifecycleEnv() (*ThreadLifecycle, *fakePlatform, *fakeThreadRepo, *fakeMarkerRepo) {
	platform := newFakePlatform()
	threads := newFakeThreadRepo()
	markers := newFakeMarkerRepo()
	matches := newFakeMatchRepo()
	cfg := &config.SyncConfig{LockAfter: 72 * time.Hour, FinishedRetention: 7 * 24 * time.Hour}
	life := NewThreadLifecycle(platform, threads, markers, newTestCache(matches), cfg, quietLogger())
	return life, platform, threads, markers
}

func TestCreateAnnouncesExactlyOnce(t *testing.T) {
	t.Parallel()

	life, platform, threads, markers := newLifecycleEnv()
	ctx := context.Background()
	m := testMatch(model.StatusScheduled)

	require.NoError(t, life.Create(ctx, m))
	assoc, err := threads.GetByMatch(ctx, m.MatchID)
	require.NoError(t, err)
	require.NotNil(t, assoc)

	marked, err := markers.IsMarked(ctx, m.MatchID)
	require.NoError(t, err)
	assert.True(t, marked)
	assert.Len(t, platform.messages[assoc.ThreadID], 1)

	// 关联丢失后重建引用不会再次发通知
	require.NoError(t, threads.Remove(ctx, m.MatchID))
	life.announce(ctx, m, assoc.ThreadID)
	assert.Len(t, platform.messages[assoc.ThreadID], 1)
}

func TestCreateRecoversOrphanThread(t *testing.T) {
	t.Parallel()

	life, platform, threads, _ := newLifecycleEnv()
	ctx := context.Background()
	m := testMatch(model.StatusScheduled)

	// 平台上已有孤儿子区
	_, err := platform.CreateThread(ctx, upcomingThreadName(m))
	require.NoError(t, err)

	require.NoError(t, life.Create(ctx, m))
	assert.Equal(t, 1, platform.threadCount())

	assoc, err := threads.GetByMatch(ctx, m.MatchID)
	require.NoError(t, err)
	require.NotNil(t, assoc)
}

func TestConvertToFinishedSurvivesDeadThread(t *testing.T) {
	t.Parallel()

	life, platform, threads, _ := newLifecycleEnv()
	ctx := context.Background()
	m := testMatch(model.StatusScheduled)
	require.NoError(t, life.Create(ctx, m))

	assoc, _ := threads.GetByMatch(ctx, m.MatchID)
	platform.deleteThread(assoc.ThreadID)

	finishedAt := time.Now().Add(-time.Hour).Unix()
	m.Status = model.StatusFinished
	m.FinishedAt = &finishedAt
	m.Result = []byte(`{"score_a":2,"score_b":0,"winner":"team-a"}`)

	require.NoError(t, life.ConvertToFinished(ctx, m))

	rebuilt, err := threads.GetByMatch(ctx, m.MatchID)
	require.NoError(t, err)
	require.NotNil(t, rebuilt)
	assert.Equal(t, model.ThreadTypeFinished, rebuilt.ThreadType)
	assert.NotEqual(t, assoc.ThreadID, rebuilt.ThreadID)
	assert.Equal(t, 1, platform.threadCount())
}

func TestLockAgedLocksOnlyOldFinishedThreads(t *testing.T) {
	t.Parallel()

	life, platform, threads, _ := newLifecycleEnv()
	ctx := context.Background()

	mkAssoc := func(matchID string, age time.Duration) string {
		id, err := platform.CreateThread(ctx, "Result: x "+ThreadTag(matchID))
		require.NoError(t, err)
		require.NoError(t, threads.Create(ctx, &model.ThreadAssociation{
			MatchID:    matchID,
			ThreadID:   id,
			ThreadType: model.ThreadTypeFinished,
		}))
		threads.rows[matchID].UpdatedAt = time.Now().Add(-age)
		return id
	}
	oldID := mkAssoc("old", 100*time.Hour)
	freshID := mkAssoc("fresh", time.Hour)

	life.LockAged(ctx)

	assert.True(t, platform.threads[oldID].locked)
	assert.False(t, platform.threads[freshID].locked)

	oldAssoc, _ := threads.GetByMatch(ctx, "old")
	require.NotNil(t, oldAssoc.LockedAt)

	// 已锁定的子区不会被重复锁定
	locked := *oldAssoc.LockedAt
	life.LockAged(ctx)
	oldAssoc, _ = threads.GetByMatch(ctx, "old")
	assert.Equal(t, locked, *oldAssoc.LockedAt)
}
