package core

import (
	"testing"
	"time"
)

func TestStreakMultiplierTiers(t *testing.T) {
	cases := map[int]float64{
		0: 1.0, 1: 1.0, 2: 1.0,
		3: 1.1, 6: 1.1,
		7: 1.2, 13: 1.2,
		14: 1.3, 21: 1.4,
		30: 1.5, 365: 1.5,
		-1: 1.0,
	}
	for days, want := range cases {
		if got := StreakMultiplier(days); got != want {
			t.Fatalf("streak %d: got %v want %v", days, got, want)
		}
	}
}

func TestTimeContextAt(t *testing.T) {
	// a Wednesday
	base := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		t    time.Time
		want TimeContext
	}{
		{base.Add(6 * time.Hour), TimeEarlyMorning},
		{base.Add(23 * time.Hour), TimeLateNight},
		{base.Add(1 * time.Hour), TimeLateNight},
		{base.Add(12 * time.Hour), TimeNone},
		// Saturday midday
		{time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC), TimeWeekend},
		// Saturday early morning: hour window wins over weekend
		{time.Date(2025, 6, 14, 6, 0, 0, 0, time.UTC), TimeEarlyMorning},
	}
	for _, c := range cases {
		if got := TimeContextAt(c.t); got != c.want {
			t.Fatalf("%v: got %q want %q", c.t, got, c.want)
		}
	}
}

func TestActiveMultipliersMatchScoring(t *testing.T) {
	task := Task{ID: "t1", Difficulty: DifficultyMedium, Category: "finance"}
	streak := 7
	tc := TimeEarlyMorning

	product := 1.0
	for _, m := range ActiveMultipliers(streak, tc, task.Category) {
		if m.Ratio <= 1.0 {
			t.Fatalf("reported multiplier must exceed 1.0: %+v", m)
		}
		product *= m.Ratio
	}

	// breakdown product must reproduce the applied multipliers exactly
	applied := StreakMultiplier(streak) * TimeMultiplier(tc) * CategoryMultiplier(task.Category)
	if product != applied {
		t.Fatalf("breakdown product %v != applied %v", product, applied)
	}
}

func TestActiveMultipliersEmptyAtBaseline(t *testing.T) {
	if ms := ActiveMultipliers(0, TimeNone, "unlisted"); len(ms) != 0 {
		t.Fatalf("expected no active multipliers, got %+v", ms)
	}
}
