package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"clearspace/catalog"
	"clearspace/core"
	"clearspace/entitlement"
)

// maxCascadeRounds bounds the badge cascade so a misconfigured catalog
// cannot loop forever.
const maxCascadeRounds = 8

// ErrNoCredits reports a credit debit attempt with an empty balance.
var ErrNoCredits = errors.New("no design credits remaining")

// Result is what one logical progress operation reports back to the UI
// layer: the persisted stats after every award in the operation, the
// direct points for the triggering action, any badge bonus points, and
// the badges newly earned along the way.
type Result struct {
	Stats       core.UserStats  `json:"stats"`
	Points      int64           `json:"points"`
	BonusPoints int64           `json:"bonus_points"`
	NewBadges   []catalog.Badge `json:"new_badges,omitempty"`
	LeveledUp   bool            `json:"leveled_up"`
}

// ProgressService is the stateful coordinator for user progress. All
// stat mutations for one user run under that user's lock, so awards are
// strictly sequential per user and badge evaluation always observes the
// state that crossed a threshold.
type ProgressService struct {
	storage Storage
	bus     *EventBus
	cats    *catalog.Catalogs
	now     func() time.Time

	locks sync.Map // core.UserID -> *sync.Mutex
}

// Option configures the ProgressService.
type Option func(*ProgressService)

// WithClock overrides the wall clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ProgressService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewProgressService(storage Storage, bus *EventBus, cats *catalog.Catalogs, opts ...Option) *ProgressService {
	if storage == nil || bus == nil || cats == nil {
		panic("NewProgressService requires non-nil storage, bus, and catalogs")
	}
	s := &ProgressService{storage: storage, bus: bus, cats: cats, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Subscribe convenience method.
func (s *ProgressService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *ProgressService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *ProgressService) Close() { s.bus.Close() }

func (s *ProgressService) userLock(user core.UserID) *sync.Mutex {
	if v, ok := s.locks.Load(user); ok {
		return v.(*sync.Mutex)
	}
	actual, _ := s.locks.LoadOrStore(user, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// CompleteTask awards points for a completed task and runs the badge
// cascade. A task already on the award ledger is a no-op, so a retried
// request cannot double-count.
func (s *ProgressService) CompleteTask(ctx context.Context, user core.UserID, task core.Task) (Result, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return Result{}, err
	}
	if task.ID == "" {
		return Result{}, errors.New("task id is required")
	}

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	stats, err := s.storage.LoadStats(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("load stats: %w", err)
	}
	if _, done := stats.TaskAwards[task.ID]; done {
		return Result{Stats: stats}, nil
	}

	now := s.now().UTC()
	working := stats.Clone()
	touchStreak(&working, now)

	points := core.PointsForTask(task, working.StreakDays, core.TimeContextAt(now))
	working.TotalPoints = addPoints(working.TotalPoints, points)
	working.TasksCompleted++
	cat := core.NormalizeCategory(task.Category)
	if cat != "" {
		working.TasksByCategory[cat]++
	}
	working.TaskAwards[task.ID] = core.TaskAward{Points: points, Category: cat}
	working.LastActivity = now

	return s.finishAward(ctx, user, stats, working, points,
		core.NewPointsAwarded(user, core.ActionTask, task.ID, points, 0))
}

// UncompleteTask reverses a prior completion exactly: the points from
// the award ledger are subtracted and counters step back. Badges stay
// earned and the evaluator does not run; this asymmetry is deliberate,
// badges mark milestones reached rather than current state.
func (s *ProgressService) UncompleteTask(ctx context.Context, user core.UserID, task core.Task) (Result, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return Result{}, err
	}

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	stats, err := s.storage.LoadStats(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("load stats: %w", err)
	}
	award, done := stats.TaskAwards[task.ID]
	if !done {
		return Result{Stats: stats}, nil
	}
	points := award.Points

	// Reverse from the ledger, not the request: the category recorded at
	// completion is the one the counter was bumped under.
	working := stats.Clone()
	working.TotalPoints = clampNonNegative(working.TotalPoints - points)
	working.TasksCompleted = clampNonNegative(working.TasksCompleted - 1)
	if award.Category != "" {
		if n := working.TasksByCategory[award.Category] - 1; n > 0 {
			working.TasksByCategory[award.Category] = n
		} else {
			delete(working.TasksByCategory, award.Category)
		}
	}
	delete(working.TaskAwards, task.ID)
	working.Level = s.cats.Levels.LevelFor(working.TotalPoints).Level

	if err := s.storage.SaveStats(ctx, user, working); err != nil {
		return Result{Stats: stats}, fmt.Errorf("save stats: %w", err)
	}
	s.bus.Publish(ctx, core.NewPointsRevoked(user, core.ActionTask, task.ID, points, working.TotalPoints))
	return Result{Stats: working, Points: -points}, nil
}

// ReadArticle awards points for a read article and runs the badge
// cascade. Rereading an article already on the ledger is a no-op.
func (s *ProgressService) ReadArticle(ctx context.Context, user core.UserID, article core.Article) (Result, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return Result{}, err
	}
	if article.ID == "" {
		return Result{}, errors.New("article id is required")
	}

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	stats, err := s.storage.LoadStats(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("load stats: %w", err)
	}
	if _, done := stats.ArticleAwards[article.ID]; done {
		return Result{Stats: stats}, nil
	}

	now := s.now().UTC()
	working := stats.Clone()
	touchStreak(&working, now)

	points := core.PointsForArticle(article, working.StreakDays)
	working.TotalPoints = addPoints(working.TotalPoints, points)
	working.ArticlesRead++
	working.ArticleAwards[article.ID] = points
	working.LastActivity = now

	return s.finishAward(ctx, user, stats, working, points,
		core.NewPointsAwarded(user, core.ActionArticle, article.ID, points, 0))
}

// UnreadArticle reverses a prior read; the task-side asymmetry rules
// apply identically.
func (s *ProgressService) UnreadArticle(ctx context.Context, user core.UserID, article core.Article) (Result, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return Result{}, err
	}

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	stats, err := s.storage.LoadStats(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("load stats: %w", err)
	}
	points, done := stats.ArticleAwards[article.ID]
	if !done {
		return Result{Stats: stats}, nil
	}

	working := stats.Clone()
	working.TotalPoints = clampNonNegative(working.TotalPoints - points)
	working.ArticlesRead = clampNonNegative(working.ArticlesRead - 1)
	delete(working.ArticleAwards, article.ID)
	working.Level = s.cats.Levels.LevelFor(working.TotalPoints).Level

	if err := s.storage.SaveStats(ctx, user, working); err != nil {
		return Result{Stats: stats}, fmt.Errorf("save stats: %w", err)
	}
	s.bus.Publish(ctx, core.NewPointsRevoked(user, core.ActionArticle, article.ID, points, working.TotalPoints))
	return Result{Stats: working, Points: -points}, nil
}

// TransformRoom records a successful AI room transformation: a fixed
// award, then the same badge cascade path as task completion. Callers
// must debit a design credit first; a failed debit must never reach
// this method.
func (s *ProgressService) TransformRoom(ctx context.Context, user core.UserID, roomID string) (Result, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return Result{}, err
	}

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	stats, err := s.storage.LoadStats(ctx, user)
	if err != nil {
		return Result{}, fmt.Errorf("load stats: %w", err)
	}

	now := s.now().UTC()
	working := stats.Clone()
	touchStreak(&working, now)

	points := core.PointsForRoomTransform()
	working.TotalPoints = addPoints(working.TotalPoints, points)
	working.RoomsTransformed++
	working.LastActivity = now

	return s.finishAward(ctx, user, stats, working, points,
		core.NewPointsAwarded(user, core.ActionRoom, roomID, points, 0))
}

// UseDesignCredit consumes one AI-design credit for the user. The debit
// is a single atomic transition: either through the storage backend's
// native check-and-decrement, or under the user lock. ok=false with a
// nil error means the balance was empty.
func (s *ProgressService) UseDesignCredit(ctx context.Context, rctx core.RequestContext) (core.Subscription, bool, error) {
	user, err := core.NormalizeUserID(rctx.UserID)
	if err != nil {
		return core.Subscription{}, false, err
	}

	lock := s.userLock(user)
	lock.Lock()
	defer lock.Unlock()

	// Admin override: allowed, nothing consumed.
	if rctx.HasPermission(catalog.FeatureAIDesigner) {
		sub, err := s.storage.LoadSubscription(ctx, user)
		if err != nil {
			return core.Subscription{}, false, fmt.Errorf("load subscription: %w", err)
		}
		return sub, true, nil
	}

	if debiter, ok := s.storage.(CreditDebiter); ok {
		sub, ok, err := debiter.DebitCredit(ctx, user)
		if err != nil {
			return core.Subscription{}, false, fmt.Errorf("debit credit: %w", err)
		}
		if ok {
			s.bus.Publish(ctx, core.NewCreditUsed(user, sub.CreditsRemaining))
		}
		return sub, ok, nil
	}

	sub, err := s.storage.LoadSubscription(ctx, user)
	if err != nil {
		return core.Subscription{}, false, fmt.Errorf("load subscription: %w", err)
	}
	next, ok := entitlement.UseCredit(rctx, sub, s.now())
	if !ok {
		return sub, false, nil
	}
	if err := s.storage.SaveSubscription(ctx, user, next); err != nil {
		return sub, false, fmt.Errorf("save subscription: %w", err)
	}
	s.bus.Publish(ctx, core.NewCreditUsed(user, next.CreditsRemaining))
	return next, true, nil
}

// Stats returns the persisted stats snapshot for a user.
func (s *ProgressService) Stats(ctx context.Context, user core.UserID) (core.UserStats, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return core.UserStats{}, err
	}
	return s.storage.LoadStats(ctx, user)
}

// Subscription returns the persisted subscription snapshot for a user.
func (s *ProgressService) Subscription(ctx context.Context, user core.UserID) (core.Subscription, error) {
	user, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Subscription{}, err
	}
	return s.storage.LoadSubscription(ctx, user)
}

// Plan resolves the user's subscription to its plan.
func (s *ProgressService) Plan(ctx context.Context, user core.UserID) (catalog.Plan, error) {
	sub, err := s.Subscription(ctx, user)
	if err != nil {
		return catalog.Plan{}, err
	}
	return s.cats.Plans.Get(sub.PlanID), nil
}

// Catalogs exposes the immutable catalogs for presentation layers.
func (s *ProgressService) Catalogs() *catalog.Catalogs { return s.cats }

// finishAward persists the working stats, publishes the triggering
// award event, then runs the badge cascade: evaluate, append badges,
// pay their rewards, recompute the level, and repeat until no badge
// newly qualifies. The whole operation is written before anything is
// reported, so a failed save leaves the pre-award record as the truth.
func (s *ProgressService) finishAward(ctx context.Context, user core.UserID, prev, working core.UserStats, points int64, trigger core.Event) (Result, error) {
	levelBefore := prev.Level
	working.Level = s.cats.Levels.LevelFor(working.TotalPoints).Level

	var (
		newBadges []catalog.Badge
		bonus     int64
		events    []core.Event
	)
	for round := 0; round < maxCascadeRounds; round++ {
		earned := s.cats.Badges.NewlyEarned(working, working.BadgesEarned)
		if len(earned) == 0 {
			break
		}
		for _, b := range earned {
			working.BadgesEarned[b.ID] = struct{}{}
			events = append(events, core.NewBadgeEarned(user, b.ID, b.PointsReward))
			if b.PointsReward > 0 {
				working.TotalPoints = addPoints(working.TotalPoints, b.PointsReward)
				bonus += b.PointsReward
				working.Level = s.cats.Levels.LevelFor(working.TotalPoints).Level
				events = append(events, core.NewPointsAwarded(user, core.ActionBadgeBonus, string(b.ID), b.PointsReward, working.TotalPoints))
			}
			newBadges = append(newBadges, b)
		}
	}

	if err := s.storage.SaveStats(ctx, user, working); err != nil {
		return Result{Stats: prev}, fmt.Errorf("save stats: %w", err)
	}

	trigger.Total = working.TotalPoints
	s.bus.Publish(ctx, trigger)
	for _, ev := range events {
		s.bus.Publish(ctx, ev)
	}
	leveled := working.Level > levelBefore
	if leveled {
		s.bus.Publish(ctx, core.NewLevelUp(user, working.Level, working.TotalPoints))
	}

	return Result{Stats: working, Points: points, BonusPoints: bonus, NewBadges: newBadges, LeveledUp: leveled}, nil
}

// touchStreak applies the daily streak rules: a repeat action on the
// same day is a no-op, the day after the last activity extends the
// streak, and any longer gap resets it silently to 1.
func touchStreak(s *core.UserStats, now time.Time) {
	switch {
	case s.LastActivity.IsZero():
		s.StreakDays = 1
	case sameDay(s.LastActivity, now):
		// already counted today
	case sameDay(s.LastActivity.AddDate(0, 0, 1), now):
		s.StreakDays++
	default:
		s.StreakDays = 1
	}
	if s.StreakDays > s.LongestStreak {
		s.LongestStreak = s.StreakDays
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// addPoints saturates at MaxInt64 instead of wrapping; award paths stay
// total even against an absurd running balance.
func addPoints(base, delta int64) int64 {
	sum, err := core.AddSafe(base, delta)
	if err != nil {
		return math.MaxInt64
	}
	return sum
}
