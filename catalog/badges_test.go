package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearspace/core"
)

func testBadgeCatalog(t *testing.T) *BadgeCatalog {
	t.Helper()
	c, err := NewBadgeCatalog(DefaultBadges())
	require.NoError(t, err)
	return c
}

func TestNewlyEarnedCrossesThresholds(t *testing.T) {
	c := testBadgeCatalog(t)

	stats := core.NewUserStats("alice")
	stats.TotalPoints = 60
	stats.TasksCompleted = 1

	earned := c.NewlyEarned(stats.Clone(), stats.BadgesEarned)
	ids := badgeIDs(earned)
	assert.Contains(t, ids, core.BadgeID("first_steps"))
	assert.Contains(t, ids, core.BadgeID("first_task"))
	assert.NotContains(t, ids, core.BadgeID("getting_started"))
}

func TestNewlyEarnedIdempotent(t *testing.T) {
	c := testBadgeCatalog(t)

	stats := core.NewUserStats("alice")
	stats.TotalPoints = 300
	stats.StreakDays = 7

	first := c.NewlyEarned(stats.Clone(), stats.BadgesEarned)
	second := c.NewlyEarned(stats.Clone(), stats.BadgesEarned)
	require.Equal(t, first, second)

	// nothing already earned ever comes back
	already := map[core.BadgeID]struct{}{}
	for _, b := range first {
		already[b.ID] = struct{}{}
	}
	require.Empty(t, c.NewlyEarned(stats, already))
}

func TestNewlyEarnedCatalogOrderAndNoRetrigger(t *testing.T) {
	c := testBadgeCatalog(t)

	// user at 240 points with first_steps already earned; new total 260
	// must trigger getting_started exactly once and never re-trigger
	// first_steps
	stats := core.NewUserStats("alice")
	stats.TotalPoints = 260
	stats.BadgesEarned["first_steps"] = struct{}{}

	earned := c.NewlyEarned(stats, stats.BadgesEarned)
	ids := badgeIDs(earned)
	assert.Contains(t, ids, core.BadgeID("getting_started"))
	assert.NotContains(t, ids, core.BadgeID("first_steps"))

	// output follows catalog order, not rarity
	order := map[core.BadgeID]int{}
	for i, b := range c.All() {
		order[b.ID] = i
	}
	for i := 1; i < len(earned); i++ {
		assert.Less(t, order[earned[i-1].ID], order[earned[i].ID])
	}
}

func TestNewlyEarnedCategoryCounters(t *testing.T) {
	c := testBadgeCatalog(t)

	stats := core.NewUserStats("alice")
	stats.TasksByCategory["finance"] = 5

	ids := badgeIDs(c.NewlyEarned(stats, stats.BadgesEarned))
	assert.Contains(t, ids, core.BadgeID("money_minimalist"))
	assert.NotContains(t, ids, core.BadgeID("digital_detoxer"))
}

func TestNewlyEarnedToleratesUnknownEarnedIDs(t *testing.T) {
	c := testBadgeCatalog(t)

	stats := core.NewUserStats("alice")
	stats.TotalPoints = 60
	stats.BadgesEarned["badge_retired_in_2019"] = struct{}{}

	ids := badgeIDs(c.NewlyEarned(stats, stats.BadgesEarned))
	assert.Contains(t, ids, core.BadgeID("first_steps"))
}

func TestNewBadgeCatalogRejectsBadEntries(t *testing.T) {
	_, err := NewBadgeCatalog([]Badge{
		{ID: "a", Requirement: Requirement{Type: ReqPoints, Value: 1}},
		{ID: "a", Requirement: Requirement{Type: ReqPoints, Value: 2}},
	})
	require.Error(t, err)

	_, err = NewBadgeCatalog([]Badge{{ID: "", Requirement: Requirement{Type: ReqPoints, Value: 1}}})
	require.Error(t, err)

	_, err = NewBadgeCatalog([]Badge{{ID: "neg", Requirement: Requirement{Type: ReqPoints, Value: 1}, PointsReward: -5}})
	require.Error(t, err)
}

func badgeIDs(badges []Badge) []core.BadgeID {
	out := make([]core.BadgeID, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.ID)
	}
	return out
}
