package core

import (
	"math"
	"strconv"
	"strings"
)

// Base point values per difficulty tier. The tiers fold the legacy
// base-value and difficulty-multiplier pair into one monotonic table
// (60 = 50x1.2, 150 = 100x1.5, 300 = 150x2.0), so the net award per
// tier is unchanged.
var difficultyBase = map[Difficulty]float64{
	DifficultyEasy:   60,
	DifficultyMedium: 150,
	DifficultyHard:   300,
}

// categoryRatios is the fixed per-category bonus table. Unlisted
// categories score at 1.0.
var categoryRatios = map[string]float64{
	"finance":     1.3,
	"digital":     1.2,
	"wardrobe":    1.15,
	"kitchen":     1.1,
	"mindfulness": 1.05,
}

const (
	articleBasePoints  = 25.0
	articleRefMinutes  = 2.0
	articleLengthCap   = 3.0
	roomTransformValue = 100
)

// CategoryMultiplier returns the bonus ratio for a task category,
// defaulting to a neutral 1.0 for anything not in the table.
func CategoryMultiplier(category string) float64 {
	if r, ok := categoryRatios[NormalizeCategory(category)]; ok {
		return r
	}
	return 1.0
}

// PointsForTask computes the award for completing a task. The value is
// base(difficulty) x category x streak x time window, rounded once at
// the end so the result is reproducible from the inputs alone.
// Total function: an unknown difficulty scores as medium, an unknown
// category and TimeNone as 1.0.
func PointsForTask(task Task, streakDays int, tc TimeContext) int64 {
	base, ok := difficultyBase[task.Difficulty]
	if !ok {
		base = difficultyBase[DifficultyMedium]
	}
	v := base * CategoryMultiplier(task.Category) * StreakMultiplier(streakDays) * TimeMultiplier(tc)
	return int64(math.Round(v))
}

// PointsForArticle computes the award for reading an article: a fixed
// base scaled by reading time against a reference duration, capped so
// very long content cannot produce unbounded rewards, then the streak
// multiplier, rounded once.
func PointsForArticle(article Article, streakDays int) int64 {
	minutes := float64(article.ReadMinutes)
	if minutes < 0 {
		minutes = 0
	}
	scale := minutes / articleRefMinutes
	if scale > articleLengthCap {
		scale = articleLengthCap
	}
	v := articleBasePoints * scale * StreakMultiplier(streakDays)
	return int64(math.Round(v))
}

// PointsForRoomTransform is the fixed award for one room transformation.
func PointsForRoomTransform() int64 { return roomTransformValue }

// ParseReadTime extracts the minute count from a display string such as
// "6 min" or "12 minutes". Unparseable input yields 0.
func ParseReadTime(s string) int {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
