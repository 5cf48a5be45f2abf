// Package catalog holds the static gamification catalogs: badges, levels,
// and subscription plans. Catalogs are loaded once at process start and
// treated as read-only immutable tables afterwards.
package catalog

import (
	"fmt"

	"clearspace/core"
)

// BadgeCategory groups badges for presentation.
type BadgeCategory string

const (
	BadgeMilestone BadgeCategory = "milestone"
	BadgeStreak    BadgeCategory = "streak"
	BadgeMastery   BadgeCategory = "mastery"
	BadgeSpecial   BadgeCategory = "special"
	BadgeSeasonal  BadgeCategory = "seasonal"
)

// Rarity is a presentational weight, also usable as a severity signal.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// RequirementType names the cumulative stat a badge watches.
type RequirementType string

const (
	ReqPoints     RequirementType = "points"
	ReqTasks      RequirementType = "tasks"
	ReqArticles   RequirementType = "articles"
	ReqStreak     RequirementType = "streak"
	ReqRooms      RequirementType = "rooms"
	ReqCategories RequirementType = "categories"
)

// Requirement is the threshold a badge unlocks at. Every watched stat is
// a monotonic counter, so earned status never needs revoking.
type Requirement struct {
	Type     RequirementType `json:"type"`
	Value    int64           `json:"value"`
	Category string          `json:"category,omitempty"`
}

// Badge is one entry of the static badge catalog.
type Badge struct {
	ID           core.BadgeID  `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Icon         string        `json:"icon"`
	Category     BadgeCategory `json:"category"`
	Rarity       Rarity        `json:"rarity"`
	Requirement  Requirement   `json:"requirement"`
	PointsReward int64         `json:"points_reward"`
}

// BadgeCatalog is an ordered, immutable badge table with id lookup.
type BadgeCatalog struct {
	badges []Badge
	byID   map[core.BadgeID]Badge
}

// NewBadgeCatalog builds a catalog, rejecting duplicate or empty ids and
// negative rewards.
func NewBadgeCatalog(badges []Badge) (*BadgeCatalog, error) {
	c := &BadgeCatalog{byID: make(map[core.BadgeID]Badge, len(badges))}
	for _, b := range badges {
		if b.ID == "" {
			return nil, fmt.Errorf("badge %q: empty id", b.Name)
		}
		if _, dup := c.byID[b.ID]; dup {
			return nil, fmt.Errorf("badge %q: duplicate id", b.ID)
		}
		if b.PointsReward < 0 {
			return nil, fmt.Errorf("badge %q: negative reward", b.ID)
		}
		if b.Requirement.Value <= 0 {
			return nil, fmt.Errorf("badge %q: requirement value must be positive", b.ID)
		}
		c.byID[b.ID] = b
		c.badges = append(c.badges, b)
	}
	return c, nil
}

// All returns the badges in catalog order. Callers must not mutate.
func (c *BadgeCatalog) All() []Badge { return c.badges }

// Get looks up a badge by id.
func (c *BadgeCatalog) Get(id core.BadgeID) (Badge, bool) {
	b, ok := c.byID[id]
	return b, ok
}

// Len returns the catalog size.
func (c *BadgeCatalog) Len() int { return len(c.badges) }

// statValue resolves the counter a requirement watches against the stats.
func statValue(req Requirement, stats core.UserStats) int64 {
	switch req.Type {
	case ReqPoints:
		return stats.TotalPoints
	case ReqTasks:
		return stats.TasksCompleted
	case ReqArticles:
		return stats.ArticlesRead
	case ReqStreak:
		return int64(stats.StreakDays)
	case ReqRooms:
		return stats.RoomsTransformed
	case ReqCategories:
		return stats.TasksByCategory[core.NormalizeCategory(req.Category)]
	default:
		return -1
	}
}

// NewlyEarned returns, in catalog order, every badge whose threshold the
// stats now satisfy and that is not in the earned set. Pure and
// idempotent: identical inputs yield identical output, and a badge in
// the earned set is never returned. Unknown ids in the earned set are
// tolerated.
func (c *BadgeCatalog) NewlyEarned(stats core.UserStats, earned map[core.BadgeID]struct{}) []Badge {
	var out []Badge
	for _, b := range c.badges {
		if _, have := earned[b.ID]; have {
			continue
		}
		if v := statValue(b.Requirement, stats); v >= b.Requirement.Value {
			out = append(out, b)
		}
	}
	return out
}

// DefaultBadges is the built-in badge catalog. Config may replace it
// with a JSON file at startup.
func DefaultBadges() []Badge {
	return []Badge{
		{ID: "first_steps", Name: "First Steps", Description: "Earn your first 50 points", Icon: "footprints", Category: BadgeMilestone, Rarity: RarityCommon, Requirement: Requirement{Type: ReqPoints, Value: 50}, PointsReward: 10},
		{ID: "getting_started", Name: "Getting Started", Description: "Reach 250 points", Icon: "seedling", Category: BadgeMilestone, Rarity: RarityCommon, Requirement: Requirement{Type: ReqPoints, Value: 250}, PointsReward: 50},
		{ID: "point_collector", Name: "Point Collector", Description: "Reach 1,000 points", Icon: "gem", Category: BadgeMilestone, Rarity: RarityRare, Requirement: Requirement{Type: ReqPoints, Value: 1000}, PointsReward: 100},
		{ID: "simplicity_sage", Name: "Simplicity Sage", Description: "Reach 5,000 points", Icon: "lotus", Category: BadgeMilestone, Rarity: RarityEpic, Requirement: Requirement{Type: ReqPoints, Value: 5000}, PointsReward: 250},

		{ID: "first_task", Name: "Fresh Start", Description: "Complete your first task", Icon: "check", Category: BadgeMilestone, Rarity: RarityCommon, Requirement: Requirement{Type: ReqTasks, Value: 1}, PointsReward: 10},
		{ID: "task_tamer", Name: "Task Tamer", Description: "Complete 10 tasks", Icon: "broom", Category: BadgeMastery, Rarity: RarityCommon, Requirement: Requirement{Type: ReqTasks, Value: 10}, PointsReward: 25},
		{ID: "declutter_devotee", Name: "Declutter Devotee", Description: "Complete 50 tasks", Icon: "boxes", Category: BadgeMastery, Rarity: RarityRare, Requirement: Requirement{Type: ReqTasks, Value: 50}, PointsReward: 75},
		{ID: "habit_hero", Name: "Habit Hero", Description: "Complete 200 tasks", Icon: "trophy", Category: BadgeMastery, Rarity: RarityEpic, Requirement: Requirement{Type: ReqTasks, Value: 200}, PointsReward: 200},

		{ID: "curious_reader", Name: "Curious Reader", Description: "Read your first article", Icon: "book", Category: BadgeMilestone, Rarity: RarityCommon, Requirement: Requirement{Type: ReqArticles, Value: 1}, PointsReward: 10},
		{ID: "well_read", Name: "Well Read", Description: "Read 10 articles", Icon: "bookshelf", Category: BadgeMastery, Rarity: RarityRare, Requirement: Requirement{Type: ReqArticles, Value: 10}, PointsReward: 50},
		{ID: "minimalist_scholar", Name: "Minimalist Scholar", Description: "Read 40 articles", Icon: "scroll", Category: BadgeMastery, Rarity: RarityEpic, Requirement: Requirement{Type: ReqArticles, Value: 40}, PointsReward: 150},

		{ID: "three_day_spark", Name: "Three-Day Spark", Description: "Hold a 3-day streak", Icon: "spark", Category: BadgeStreak, Rarity: RarityCommon, Requirement: Requirement{Type: ReqStreak, Value: 3}, PointsReward: 15},
		{ID: "week_of_focus", Name: "Week of Focus", Description: "Hold a 7-day streak", Icon: "flame", Category: BadgeStreak, Rarity: RarityRare, Requirement: Requirement{Type: ReqStreak, Value: 7}, PointsReward: 50},
		{ID: "fortnight_flow", Name: "Fortnight Flow", Description: "Hold a 14-day streak", Icon: "wave", Category: BadgeStreak, Rarity: RarityRare, Requirement: Requirement{Type: ReqStreak, Value: 14}, PointsReward: 75},
		{ID: "monthly_momentum", Name: "Monthly Momentum", Description: "Hold a 30-day streak", Icon: "calendar", Category: BadgeStreak, Rarity: RarityEpic, Requirement: Requirement{Type: ReqStreak, Value: 30}, PointsReward: 150},

		{ID: "room_reborn", Name: "Room Reborn", Description: "Transform your first room", Icon: "sofa", Category: BadgeSpecial, Rarity: RarityRare, Requirement: Requirement{Type: ReqRooms, Value: 1}, PointsReward: 50},
		{ID: "space_shifter", Name: "Space Shifter", Description: "Transform 5 rooms", Icon: "house", Category: BadgeSpecial, Rarity: RarityEpic, Requirement: Requirement{Type: ReqRooms, Value: 5}, PointsReward: 150},

		{ID: "money_minimalist", Name: "Money Minimalist", Description: "Complete 5 finance tasks", Icon: "piggybank", Category: BadgeMastery, Rarity: RarityRare, Requirement: Requirement{Type: ReqCategories, Value: 5, Category: "finance"}, PointsReward: 50},
		{ID: "digital_detoxer", Name: "Digital Detoxer", Description: "Complete 5 digital tasks", Icon: "phone-off", Category: BadgeMastery, Rarity: RarityRare, Requirement: Requirement{Type: ReqCategories, Value: 5, Category: "digital"}, PointsReward: 50},
	}
}
