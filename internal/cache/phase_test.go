package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/model"
)

func TestMatchPhase(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	finishedRecent := now.Add(-3 * time.Hour).Unix()
	finishedOld := now.Add(-10 * time.Hour).Unix()

	tests := []struct {
		name     string
		m        *model.Match
		expected Phase
	}{
		{
			name:     "far future match",
			m:        &model.Match{Status: model.StatusScheduled, ScheduledAt: now.Add(8 * time.Hour).Unix()},
			expected: PhaseNormal,
		},
		{
			name:     "starts within the hour",
			m:        &model.Match{Status: model.StatusScheduled, ScheduledAt: now.Add(40 * time.Minute).Unix()},
			expected: PhaseApproaching,
		},
		{
			name:     "live status",
			m:        &model.Match{Status: model.StatusLive, ScheduledAt: now.Add(-time.Hour).Unix()},
			expected: PhaseActive,
		},
		{
			name:     "past scheduled start within active window",
			m:        &model.Match{Status: model.StatusReady, ScheduledAt: now.Add(-time.Hour).Unix()},
			expected: PhaseActive,
		},
		{
			name:     "finished three hours ago",
			m:        &model.Match{Status: model.StatusFinished, ScheduledAt: now.Add(-5 * time.Hour).Unix(), FinishedAt: &finishedRecent},
			expected: PhaseCooldown,
		},
		{
			name:     "finished long ago",
			m:        &model.Match{Status: model.StatusFinished, ScheduledAt: now.Add(-12 * time.Hour).Unix(), FinishedAt: &finishedOld},
			expected: PhaseNormal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchPhase(now, tt.m))
		})
	}
}

func TestComputePhaseMostUrgentWins(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	matches := []*model.Match{
		{Status: model.StatusScheduled, ScheduledAt: now.Add(8 * time.Hour).Unix()},
		{Status: model.StatusScheduled, ScheduledAt: now.Add(30 * time.Minute).Unix()},
	}
	assert.Equal(t, PhaseApproaching, ComputePhase(now, matches))

	matches = append(matches, &model.Match{Status: model.StatusLive, ScheduledAt: now.Unix()})
	assert.Equal(t, PhaseActive, ComputePhase(now, matches))

	assert.Equal(t, PhaseNormal, ComputePhase(now, nil))
}

func TestTTLShrinksWithUrgency(t *testing.T) {
	t.Parallel()

	for _, class := range []Class{ClassFinishedList, ClassUpcomingList, ClassRoster, ClassPlayer, ClassSearch} {
		assert.Less(t, TTL(PhaseActive, class), TTL(PhaseNormal, class), "class %s", class)
		assert.LessOrEqual(t, TTL(PhaseApproaching, class), TTL(PhaseNormal, class), "class %s", class)
	}
	// APPROACHING 下数据源拉取类别必须比平静期更激进
	assert.Less(t, TTL(PhaseApproaching, ClassUpcomingList), TTL(PhaseNormal, ClassUpcomingList))
	assert.Less(t, TTL(PhaseApproaching, ClassFinishedList), TTL(PhaseNormal, ClassFinishedList))
}
