package insights

import (
	"sort"
	"sync"
	"time"

	"clearspace/core"
)

// DaySummary aggregates one user's activity on one calendar day (UTC).
type DaySummary struct {
	Day           string `json:"day"`
	Points        int64  `json:"points"`
	Tasks         int64  `json:"tasks"`
	Articles      int64  `json:"articles"`
	Rooms         int64  `json:"rooms"`
	BadgesEarned  int64  `json:"badges_earned"`
	PointsRevoked int64  `json:"points_revoked"`
}

// UserInsights is the per-user report served by the API.
type UserInsights struct {
	UserID       core.UserID  `json:"user_id"`
	TotalPoints  int64        `json:"total_points"`
	TotalActions int64        `json:"total_actions"`
	ActiveDays   int          `json:"active_days"`
	Days         []DaySummary `json:"days"`
}

// Collector folds the progress event stream into daily aggregates.
// It is registered as an event bus subscriber.
type Collector struct {
	mu      sync.RWMutex
	active  map[string]map[core.UserID]struct{}
	points  map[string]int64
	byUser  map[core.UserID]map[string]*DaySummary
	actions map[core.Action]int64
}

func NewCollector() *Collector {
	return &Collector{
		active:  map[string]map[core.UserID]struct{}{},
		points:  map[string]int64{},
		byUser:  map[core.UserID]map[string]*DaySummary{},
		actions: map[core.Action]int64{},
	}
}

// OnEvent records one domain event. Safe for concurrent use.
func (c *Collector) OnEvent(ev core.Event) {
	day := ev.Time.UTC().Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()

	users := c.active[day]
	if users == nil {
		users = map[core.UserID]struct{}{}
		c.active[day] = users
	}
	users[ev.UserID] = struct{}{}

	sum := c.daySummary(ev.UserID, day)

	switch ev.Type {
	case core.EventPointsAwarded:
		c.points[day] += ev.Delta
		c.actions[ev.Action]++
		sum.Points += ev.Delta
		switch ev.Action {
		case core.ActionTask:
			sum.Tasks++
		case core.ActionArticle:
			sum.Articles++
		case core.ActionRoom:
			sum.Rooms++
		}
	case core.EventPointsRevoked:
		c.points[day] -= ev.Delta
		sum.PointsRevoked += ev.Delta
		sum.Points -= ev.Delta
		switch ev.Action {
		case core.ActionTask:
			sum.Tasks--
		case core.ActionArticle:
			sum.Articles--
		}
	case core.EventBadgeEarned:
		sum.BadgesEarned++
	}
}

func (c *Collector) daySummary(user core.UserID, day string) *DaySummary {
	days := c.byUser[user]
	if days == nil {
		days = map[string]*DaySummary{}
		c.byUser[user] = days
	}
	sum := days[day]
	if sum == nil {
		sum = &DaySummary{Day: day}
		days[day] = sum
	}
	return sum
}

// ActiveUsers returns the number of distinct users active on a day.
func (c *Collector) ActiveUsers(day string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.active[day])
}

// PointsAwarded returns net points recorded for a day across all users.
func (c *Collector) PointsAwarded(day string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.points[day]
}

// ActionCount returns how many award events carried the given action.
func (c *Collector) ActionCount(action core.Action) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actions[action]
}

// ForUser builds the per-user report, newest day first, capped at limit
// days (0 means all).
func (c *Collector) ForUser(user core.UserID, limit int) UserInsights {
	if normalized, err := core.NormalizeUserID(user); err == nil {
		user = normalized
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := UserInsights{UserID: user}
	days := c.byUser[user]
	out.Days = make([]DaySummary, 0, len(days))
	for _, sum := range days {
		out.Days = append(out.Days, *sum)
		out.TotalPoints += sum.Points
		out.TotalActions += sum.Tasks + sum.Articles + sum.Rooms
	}
	out.ActiveDays = len(out.Days)
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Day > out.Days[j].Day })
	if limit > 0 && len(out.Days) > limit {
		out.Days = out.Days[:limit]
	}
	return out
}

// Today formats the current UTC day the way the collector keys it.
func Today(now time.Time) string { return now.UTC().Format("2006-01-02") }
