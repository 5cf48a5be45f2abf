package engine_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "clearspace/adapters/memory"
	"clearspace/catalog"
	"clearspace/core"
	"clearspace/engine"
)

// Tuesday midday: no time-window bonus in play unless a test wants one.
var quietNoon = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, store engine.Storage, opts ...engine.Option) *engine.ProgressService {
	t.Helper()
	bus := engine.NewEventBus(engine.DispatchSync)
	if len(opts) == 0 {
		opts = []engine.Option{engine.WithClock(func() time.Time { return quietNoon })}
	}
	return engine.NewProgressService(store, bus, catalog.Defaults(), opts...)
}

func TestCompleteTaskAwardsAndCascades(t *testing.T) {
	svc := newService(t, mem.New())
	ctx := context.Background()

	task := core.Task{ID: "t1", Difficulty: core.DifficultyMedium, Category: "finance"}
	res, err := svc.CompleteTask(ctx, "Alice", task)
	require.NoError(t, err)

	// day one of activity starts a 1-day streak; multiplier still 1.0
	assert.Equal(t, int64(195), res.Points)
	assert.Equal(t, int64(1), res.Stats.TasksCompleted)
	assert.Equal(t, 1, res.Stats.StreakDays)

	// 195 points crosses first_steps (50) and first_task (1 task)
	ids := map[core.BadgeID]bool{}
	for _, b := range res.NewBadges {
		ids[b.ID] = true
	}
	assert.True(t, ids["first_steps"])
	assert.True(t, ids["first_task"])
	assert.Equal(t, int64(20), res.BonusPoints) // 10 + 10
	assert.Equal(t, int64(215), res.Stats.TotalPoints)
	assert.True(t, res.LeveledUp) // 215 >= 100
	assert.Equal(t, 2, res.Stats.Level)
}

func TestCompleteTaskIsIdempotentPerTask(t *testing.T) {
	svc := newService(t, mem.New())
	ctx := context.Background()
	task := core.Task{ID: "t1", Difficulty: core.DifficultyEasy}

	first, err := svc.CompleteTask(ctx, "alice", task)
	require.NoError(t, err)
	second, err := svc.CompleteTask(ctx, "alice", task)
	require.NoError(t, err)

	assert.Equal(t, int64(0), second.Points)
	assert.Empty(t, second.NewBadges)
	assert.Equal(t, first.Stats.TotalPoints, second.Stats.TotalPoints)
	assert.Equal(t, first.Stats.TasksCompleted, second.Stats.TasksCompleted)
}

func TestUncompleteTaskIsExactInverseButKeepsBadges(t *testing.T) {
	svc := newService(t, mem.New())
	ctx := context.Background()
	task := core.Task{ID: "t1", Difficulty: core.DifficultyMedium, Category: "finance"}

	done, err := svc.CompleteTask(ctx, "alice", task)
	require.NoError(t, err)
	badgesAfterComplete := len(done.Stats.BadgesEarned)
	require.NotZero(t, badgesAfterComplete)

	undone, err := svc.UncompleteTask(ctx, "alice", task)
	require.NoError(t, err)

	// exactly the direct award is subtracted; badge bonuses stay
	assert.Equal(t, done.Stats.TotalPoints-done.Points, undone.Stats.TotalPoints)
	assert.Equal(t, int64(0), undone.Stats.TasksCompleted)
	assert.Len(t, undone.Stats.BadgesEarned, badgesAfterComplete, "uncompleting never revokes badges")
	assert.NotContains(t, undone.Stats.TaskAwards, "t1")
	assert.NotContains(t, undone.Stats.TasksByCategory, "finance")

	// unknown task: no-op
	again, err := svc.UncompleteTask(ctx, "alice", task)
	require.NoError(t, err)
	assert.Equal(t, undone.Stats.TotalPoints, again.Stats.TotalPoints)
}

func TestUncompleteTaskReversesCategoryFromLedger(t *testing.T) {
	svc := newService(t, mem.New())
	ctx := context.Background()

	done, err := svc.CompleteTask(ctx, "alice", core.Task{ID: "t1", Difficulty: core.DifficultyMedium, Category: "finance"})
	require.NoError(t, err)
	require.Equal(t, int64(1), done.Stats.TasksByCategory["finance"])

	// the reversal request carries no category; the ledger does
	undone, err := svc.UncompleteTask(ctx, "alice", core.Task{ID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), undone.Stats.TasksCompleted)
	assert.NotContains(t, undone.Stats.TasksByCategory, "finance")

	// a wrong category on the request must not touch the wrong counter
	done2, err := svc.CompleteTask(ctx, "alice", core.Task{ID: "t2", Difficulty: core.DifficultyEasy, Category: "kitchen"})
	require.NoError(t, err)
	require.Equal(t, int64(1), done2.Stats.TasksByCategory["kitchen"])
	undone2, err := svc.UncompleteTask(ctx, "alice", core.Task{ID: "t2", Category: "digital"})
	require.NoError(t, err)
	assert.NotContains(t, undone2.Stats.TasksByCategory, "kitchen")
	assert.NotContains(t, undone2.Stats.TasksByCategory, "digital")
}

func TestAwardSaturatesInsteadOfWrapping(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	stats := core.NewUserStats("alice")
	stats.TotalPoints = math.MaxInt64 - 10
	stats.Level = 10
	require.NoError(t, store.SaveStats(ctx, "alice", stats))

	res, err := svc.CompleteTask(ctx, "alice", core.Task{ID: "t1", Difficulty: core.DifficultyHard})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), res.Stats.TotalPoints)
}

func TestBadgeCascadeDoesNotRetrigger(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	// seed a user at 240 points with the early badges already earned
	stats := core.NewUserStats("alice")
	stats.TotalPoints = 240
	stats.Level = 2
	stats.BadgesEarned["first_steps"] = struct{}{}
	stats.BadgesEarned["first_task"] = struct{}{}
	stats.BadgesEarned["task_tamer"] = struct{}{}
	stats.TasksCompleted = 10
	stats.LastActivity = quietNoon.Add(-time.Hour)
	require.NoError(t, store.SaveStats(ctx, "alice", stats))

	// an easy task (+60) crosses getting_started (250) exactly once
	res, err := svc.CompleteTask(ctx, "alice", core.Task{ID: "t99", Difficulty: core.DifficultyEasy})
	require.NoError(t, err)

	var names []core.BadgeID
	for _, b := range res.NewBadges {
		names = append(names, b.ID)
	}
	assert.Contains(t, names, core.BadgeID("getting_started"))
	assert.NotContains(t, names, core.BadgeID("first_steps"))
	// 240 + 60 + 50 reward
	assert.Equal(t, int64(350), res.Stats.TotalPoints)
	assert.Equal(t, 3, res.Stats.Level) // re-evaluated after the bonus
}

func TestReadArticleAndUnread(t *testing.T) {
	svc := newService(t, mem.New())
	ctx := context.Background()
	article := core.Article{ID: "a1", ReadMinutes: 6}

	res, err := svc.ReadArticle(ctx, "alice", article)
	require.NoError(t, err)
	assert.Equal(t, int64(75), res.Points)
	assert.Equal(t, int64(1), res.Stats.ArticlesRead)

	undone, err := svc.UnreadArticle(ctx, "alice", article)
	require.NoError(t, err)
	assert.Equal(t, res.Stats.TotalPoints-75, undone.Stats.TotalPoints)
	assert.Equal(t, int64(0), undone.Stats.ArticlesRead)
}

func TestTransformRoomFixedAward(t *testing.T) {
	svc := newService(t, mem.New())
	ctx := context.Background()

	res, err := svc.TransformRoom(ctx, "alice", "living-room")
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Points)
	assert.Equal(t, int64(1), res.Stats.RoomsTransformed)

	ids := map[core.BadgeID]bool{}
	for _, b := range res.NewBadges {
		ids[b.ID] = true
	}
	assert.True(t, ids["room_reborn"])
}

func TestStreakExtendsAndResets(t *testing.T) {
	store := mem.New()
	now := quietNoon
	svc := newService(t, store, engine.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	day := func(n int, taskID string) core.UserStats {
		now = quietNoon.AddDate(0, 0, n)
		res, err := svc.CompleteTask(ctx, "alice", core.Task{ID: taskID, Difficulty: core.DifficultyEasy})
		require.NoError(t, err)
		return res.Stats
	}

	s := day(0, "d0")
	assert.Equal(t, 1, s.StreakDays)
	s = day(1, "d1")
	assert.Equal(t, 2, s.StreakDays)
	// second action the same day does not double-count
	s = day(1, "d1b")
	assert.Equal(t, 2, s.StreakDays)
	s = day(2, "d2")
	assert.Equal(t, 3, s.StreakDays)
	assert.Equal(t, 3, s.LongestStreak)
	// a gap resets silently but longest stays
	s = day(5, "d5")
	assert.Equal(t, 1, s.StreakDays)
	assert.Equal(t, 3, s.LongestStreak)
}

func TestStreakMultiplierAppliedToAward(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	stats := core.NewUserStats("alice")
	stats.StreakDays = 7
	stats.LongestStreak = 7
	stats.LastActivity = quietNoon.Add(-time.Hour)
	require.NoError(t, store.SaveStats(ctx, "alice", stats))

	res, err := svc.CompleteTask(ctx, "alice", core.Task{ID: "t1", Difficulty: core.DifficultyMedium, Category: "finance"})
	require.NoError(t, err)
	assert.Equal(t, int64(234), res.Points) // 150 x 1.3 x 1.2
}

func TestUseDesignCredit(t *testing.T) {
	store := mem.New()
	svc := newService(t, store)
	ctx := context.Background()

	sub := core.NewSubscription("alice")
	sub.PlanID = "plus"
	sub.CreditsRemaining = 1
	require.NoError(t, store.SaveSubscription(ctx, "alice", sub))

	rctx := core.RequestContext{UserID: "alice"}
	next, ok, err := svc.UseDesignCredit(ctx, rctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), next.CreditsRemaining)
	assert.Equal(t, int64(1), next.CreditsUsed)

	// exhausted balance: denied, state unchanged, no error
	denied, ok, err := svc.UseDesignCredit(ctx, rctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), denied.CreditsRemaining)

	// admin override allows without consuming
	admin := core.RequestContext{UserID: "alice", IsAdmin: true}
	after, ok, err := svc.UseDesignCredit(ctx, admin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), after.CreditsRemaining)
	assert.Equal(t, int64(1), after.CreditsUsed)
}

// failingStore wraps a Storage and fails all stat writes.
type failingStore struct {
	engine.Storage
}

func (f *failingStore) SaveStats(context.Context, core.UserID, core.UserStats) error {
	return errors.New("backend unavailable")
}

func TestSaveFailureReportsPreAwardState(t *testing.T) {
	store := mem.New()
	svc := newService(t, &failingStore{Storage: store})
	ctx := context.Background()

	res, err := svc.CompleteTask(ctx, "alice", core.Task{ID: "t1", Difficulty: core.DifficultyHard})
	require.Error(t, err)

	// the reported truth is the pre-award record, not optimistic state
	assert.Equal(t, int64(0), res.Stats.TotalPoints)
	persisted, loadErr := store.LoadStats(ctx, "alice")
	require.NoError(t, loadErr)
	assert.Equal(t, int64(0), persisted.TotalPoints)
	assert.Empty(t, persisted.BadgesEarned)
}

func TestSequentialAwardsSumExactlyUnderConcurrency(t *testing.T) {
	svc := newService(t, mem.New())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := core.Task{ID: string(rune('a'+i%26)) + string(rune('0'+i/26)), Difficulty: core.DifficultyEasy}
			_, err := svc.CompleteTask(ctx, "alice", task)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats, err := svc.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(n), stats.TasksCompleted)

	// every direct award is on the ledger; totals must sum exactly
	var direct int64
	for _, award := range stats.TaskAwards {
		direct += award.Points
	}
	var bonus int64
	for id := range stats.BadgesEarned {
		if b, ok := svc.Catalogs().Badges.Get(id); ok {
			bonus += b.PointsReward
		}
	}
	assert.Equal(t, direct+bonus, stats.TotalPoints)
}
