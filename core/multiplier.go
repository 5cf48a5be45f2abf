package core

import "time"

// TimeContext identifies the scoring window an action occurred in.
// At most one applies to a given instant; hour windows take precedence
// over the weekend window.
type TimeContext string

const (
	TimeNone         TimeContext = ""
	TimeEarlyMorning TimeContext = "early_morning"
	TimeLateNight    TimeContext = "late_night"
	TimeWeekend      TimeContext = "weekend"
)

// streakTiers maps a minimum streak length to its bonus ratio.
// Resolution picks the highest threshold not exceeding the streak.
var streakTiers = []struct {
	Days  int
	Ratio float64
}{
	{0, 1.0},
	{3, 1.1},
	{7, 1.2},
	{14, 1.3},
	{21, 1.4},
	{30, 1.5},
}

var timeRatios = map[TimeContext]float64{
	TimeEarlyMorning: 1.15,
	TimeLateNight:    1.10,
	TimeWeekend:      1.05,
}

// StreakMultiplier returns the bonus ratio for a streak length.
// Always >= 1.0; negative input resolves like zero.
func StreakMultiplier(streakDays int) float64 {
	ratio := 1.0
	for _, tier := range streakTiers {
		if streakDays >= tier.Days {
			ratio = tier.Ratio
		}
	}
	return ratio
}

// TimeMultiplier returns the ratio for a recognized time window, 1.0 otherwise.
func TimeMultiplier(tc TimeContext) float64 {
	if r, ok := timeRatios[tc]; ok {
		return r
	}
	return 1.0
}

// TimeContextAt buckets a wall-clock instant into a scoring window.
func TimeContextAt(t time.Time) TimeContext {
	h := t.Hour()
	switch {
	case h >= 5 && h < 9:
		return TimeEarlyMorning
	case h >= 22 || h < 2:
		return TimeLateNight
	case t.Weekday() == time.Saturday || t.Weekday() == time.Sunday:
		return TimeWeekend
	default:
		return TimeNone
	}
}

// Multiplier describes one active bonus for UI breakdowns.
type Multiplier struct {
	Type        string  `json:"type"`
	Ratio       float64 `json:"ratio"`
	Description string  `json:"description"`
}

// ActiveMultipliers reports every bonus ratio in effect for the given
// context. The ratios are the exact values the scoring functions apply,
// so a breakdown rendered from this list always sums to the awarded total.
func ActiveMultipliers(streakDays int, tc TimeContext, category string) []Multiplier {
	var out []Multiplier
	if r := StreakMultiplier(streakDays); r > 1.0 {
		out = append(out, Multiplier{Type: "streak", Ratio: r, Description: streakDescription(streakDays)})
	}
	if r, ok := timeRatios[tc]; ok {
		out = append(out, Multiplier{Type: string(tc), Ratio: r, Description: timeDescription(tc)})
	}
	if r := CategoryMultiplier(category); r != 1.0 {
		out = append(out, Multiplier{Type: "category", Ratio: r, Description: NormalizeCategory(category) + " category bonus"})
	}
	return out
}

func streakDescription(days int) string {
	switch {
	case days >= 30:
		return "30+ day streak"
	case days >= 21:
		return "21+ day streak"
	case days >= 14:
		return "14+ day streak"
	case days >= 7:
		return "7+ day streak"
	default:
		return "3+ day streak"
	}
}

func timeDescription(tc TimeContext) string {
	switch tc {
	case TimeEarlyMorning:
		return "early bird bonus"
	case TimeLateNight:
		return "night owl bonus"
	case TimeWeekend:
		return "weekend bonus"
	default:
		return ""
	}
}
