package catalog

import "fmt"

// LevelInfo is one entry of the static level ladder.
type LevelInfo struct {
	Level       int      `json:"level"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	// PointsRequired is the delta from the previous level;
	// TotalPointsRequired is the cumulative threshold.
	PointsRequired      int64    `json:"points_required"`
	TotalPointsRequired int64    `json:"total_points_required"`
	Rewards             []string `json:"rewards,omitempty"`
}

// Progress reports movement toward the next level.
type Progress struct {
	Current    int64   `json:"current"`
	Needed     int64   `json:"needed"`
	Percentage float64 `json:"percentage"`
}

// LevelCatalog is an immutable level ladder with strictly increasing
// cumulative thresholds.
type LevelCatalog struct {
	levels []LevelInfo
}

// NewLevelCatalog validates ordering: levels indexed from 1, thresholds
// strictly increasing, level 1 at threshold 0.
func NewLevelCatalog(levels []LevelInfo) (*LevelCatalog, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("level catalog cannot be empty")
	}
	if levels[0].Level != 1 || levels[0].TotalPointsRequired != 0 {
		return nil, fmt.Errorf("level catalog must start at level 1 with threshold 0")
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].Level != levels[i-1].Level+1 {
			return nil, fmt.Errorf("level %d: non-contiguous level index", levels[i].Level)
		}
		if levels[i].TotalPointsRequired <= levels[i-1].TotalPointsRequired {
			return nil, fmt.Errorf("level %d: threshold not strictly increasing", levels[i].Level)
		}
	}
	return &LevelCatalog{levels: levels}, nil
}

// All returns the ladder in order. Callers must not mutate.
func (c *LevelCatalog) All() []LevelInfo { return c.levels }

// LevelFor resolves the highest level whose cumulative threshold does
// not exceed totalPoints. Total over non-negative input; negative input
// resolves to level 1.
func (c *LevelCatalog) LevelFor(totalPoints int64) LevelInfo {
	current := c.levels[0]
	for _, l := range c.levels {
		if totalPoints >= l.TotalPointsRequired {
			current = l
		} else {
			break
		}
	}
	return current
}

// NextLevel returns the level after the one totalPoints resolves to,
// or nil when the ladder is maxed out.
func (c *LevelCatalog) NextLevel(totalPoints int64) *LevelInfo {
	cur := c.LevelFor(totalPoints)
	if cur.Level >= c.levels[len(c.levels)-1].Level {
		return nil
	}
	next := c.levels[cur.Level] // levels are 1-indexed and contiguous
	return &next
}

// ProgressToNext reports points into the current level, points still
// needed, and a percentage clamped to [0,100]. At max level the
// terminal state is needed=0, percentage=100.
func (c *LevelCatalog) ProgressToNext(totalPoints int64) Progress {
	if totalPoints < 0 {
		totalPoints = 0
	}
	cur := c.LevelFor(totalPoints)
	next := c.NextLevel(totalPoints)
	if next == nil {
		return Progress{Current: totalPoints - cur.TotalPointsRequired, Needed: 0, Percentage: 100}
	}
	span := next.TotalPointsRequired - cur.TotalPointsRequired
	into := totalPoints - cur.TotalPointsRequired
	pct := float64(into) / float64(span) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return Progress{Current: into, Needed: next.TotalPointsRequired - totalPoints, Percentage: pct}
}

// DefaultLevels is the built-in ten-step ladder.
func DefaultLevels() []LevelInfo {
	return []LevelInfo{
		{Level: 1, Title: "Clutter Novice", Description: "Everyone starts somewhere", PointsRequired: 0, TotalPointsRequired: 0},
		{Level: 2, Title: "Tidy Beginner", Description: "The first drawers are empty", PointsRequired: 100, TotalPointsRequired: 100, Rewards: []string{"profile_frame_bronze"}},
		{Level: 3, Title: "Space Seeker", Description: "Surfaces are reappearing", PointsRequired: 150, TotalPointsRequired: 250},
		{Level: 4, Title: "Mindful Organizer", Description: "A place for everything", PointsRequired: 250, TotalPointsRequired: 500, Rewards: []string{"bonus_article_pack"}},
		{Level: 5, Title: "Simplicity Adept", Description: "Less is clearly more", PointsRequired: 500, TotalPointsRequired: 1000, Rewards: []string{"profile_frame_silver"}},
		{Level: 6, Title: "Declutter Pro", Description: "Rooms transform around you", PointsRequired: 1000, TotalPointsRequired: 2000},
		{Level: 7, Title: "Zen Curator", Description: "Only the essential remains", PointsRequired: 1500, TotalPointsRequired: 3500, Rewards: []string{"profile_frame_gold"}},
		{Level: 8, Title: "Minimalist Master", Description: "A calm and ordered home", PointsRequired: 2000, TotalPointsRequired: 5500},
		{Level: 9, Title: "Essential Sage", Description: "Teaching others the way", PointsRequired: 2500, TotalPointsRequired: 8000, Rewards: []string{"mentor_badge_access"}},
		{Level: 10, Title: "Lagom Legend", Description: "Perfect balance achieved", PointsRequired: 4000, TotalPointsRequired: 12000, Rewards: []string{"profile_frame_platinum", "lifetime_wall"}},
	}
}
