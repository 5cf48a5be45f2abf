package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a user in the habit-tracking domain.
type UserID string

// BadgeID is a badge identifier from the static badge catalog.
type BadgeID string

// Difficulty classifies a task into one of three scoring tiers.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Task is the scoring-relevant view of a habit task.
type Task struct {
	ID         string     `json:"id"`
	Difficulty Difficulty `json:"difficulty"`
	Category   string     `json:"category,omitempty"`
}

// Article is the scoring-relevant view of a content article.
type Article struct {
	ID          string `json:"id"`
	ReadMinutes int    `json:"read_minutes"`
}

// RequestContext carries the resolved identity for a single call.
// It replaces any ambient session state: resolvers never consult globals.
type RequestContext struct {
	UserID      UserID   `json:"user_id"`
	IsAdmin     bool     `json:"is_admin"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission reports whether the context carries the named admin
// permission. A bare IsAdmin with no permission set grants everything,
// as does the "*" wildcard.
func (r RequestContext) HasPermission(perm string) bool {
	if !r.IsAdmin {
		return false
	}
	if len(r.Permissions) == 0 {
		return true
	}
	for _, p := range r.Permissions {
		if p == "*" || p == perm {
			return true
		}
	}
	return false
}

// UserStats is a snapshot of a user's cumulative progress.
// Implementations should return deep copies to maintain immutability
// guarantees; all mutation flows through the progress engine.
type UserStats struct {
	UserID           UserID               `json:"user_id"`
	TotalPoints      int64                `json:"total_points"`
	Level            int                  `json:"level"`
	StreakDays       int                  `json:"streak_days"`
	LongestStreak    int                  `json:"longest_streak"`
	TasksCompleted   int64                `json:"tasks_completed"`
	ArticlesRead     int64                `json:"articles_read"`
	RoomsTransformed int64                `json:"rooms_transformed"`
	BadgesEarned     map[BadgeID]struct{} `json:"badges_earned"`
	TasksByCategory  map[string]int64     `json:"tasks_by_category,omitempty"`
	TaskAwards       map[string]TaskAward `json:"task_awards,omitempty"`
	ArticleAwards    map[string]int64     `json:"article_awards,omitempty"`
	LastActivity     time.Time            `json:"last_activity"`
}

// TaskAward is the ledger record written at completion time. Reversal
// reads points and category from here, never from the caller's request,
// so an uncomplete with a changed or missing category still reverses
// exactly what was granted.
type TaskAward struct {
	Points   int64  `json:"points"`
	Category string `json:"category,omitempty"`
}

// NewUserStats returns an all-zero stats record for first access.
func NewUserStats(user UserID) UserStats {
	return UserStats{
		UserID:          user,
		Level:           1,
		BadgesEarned:    map[BadgeID]struct{}{},
		TasksByCategory: map[string]int64{},
		TaskAwards:      map[string]TaskAward{},
		ArticleAwards:   map[string]int64{},
	}
}

// Clone returns a deep copy of the stats to uphold immutability.
func (s UserStats) Clone() UserStats {
	cp := s
	cp.BadgesEarned = make(map[BadgeID]struct{}, len(s.BadgesEarned))
	for k := range s.BadgesEarned {
		cp.BadgesEarned[k] = struct{}{}
	}
	cp.TasksByCategory = make(map[string]int64, len(s.TasksByCategory))
	for k, v := range s.TasksByCategory {
		cp.TasksByCategory[k] = v
	}
	cp.TaskAwards = make(map[string]TaskAward, len(s.TaskAwards))
	for k, v := range s.TaskAwards {
		cp.TaskAwards[k] = v
	}
	cp.ArticleAwards = make(map[string]int64, len(s.ArticleAwards))
	for k, v := range s.ArticleAwards {
		cp.ArticleAwards[k] = v
	}
	return cp
}

// HasBadge reports whether the badge has already been earned.
func (s UserStats) HasBadge(id BadgeID) bool {
	_, ok := s.BadgesEarned[id]
	return ok
}

// Subscription is a user's current plan membership and credit balance.
type Subscription struct {
	UserID           UserID    `json:"user_id"`
	PlanID           string    `json:"plan_id"`
	Status           string    `json:"status"`
	CreditsRemaining int64     `json:"credits_remaining"`
	CreditsUsed      int64     `json:"credits_used"`
	Updated          time.Time `json:"updated"`
}

// Subscription status values mirror what the billing provider reports.
const (
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// NewSubscription returns a free-plan subscription for first access.
func NewSubscription(user UserID) Subscription {
	return Subscription{UserID: user, PlanID: "free", Status: SubscriptionActive}
}

// Lapsed reports whether the subscription can no longer spend credits.
// Credits already on the books stay recorded but are frozen until the
// billing provider restores the subscription.
func (s Subscription) Lapsed() bool {
	return s.Status == SubscriptionPastDue || s.Status == SubscriptionCanceled
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// NormalizeCategory lowercases and trims a task category for table lookups.
func NormalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
