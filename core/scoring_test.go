package core

import "testing"

func TestPointsForTaskFinanceScenarios(t *testing.T) {
	task := Task{ID: "t1", Difficulty: DifficultyMedium, Category: "Finance"}

	// medium (150) x finance (1.3) with no streak or time bonus
	if got := PointsForTask(task, 0, TimeNone); got != 195 {
		t.Fatalf("expected 195, got %d", got)
	}

	// same task at a 7-day streak (1.2)
	if got := PointsForTask(task, 7, TimeNone); got != 234 {
		t.Fatalf("expected 234, got %d", got)
	}
}

func TestPointsForTaskNonDecreasingInStreak(t *testing.T) {
	task := Task{ID: "t1", Difficulty: DifficultyHard, Category: "digital"}
	prev := int64(0)
	for streak := 0; streak <= 40; streak++ {
		got := PointsForTask(task, streak, TimeNone)
		if got <= 0 {
			t.Fatalf("streak %d: points must be positive, got %d", streak, got)
		}
		if got < prev {
			t.Fatalf("streak %d: points dropped from %d to %d", streak, prev, got)
		}
		prev = got
	}
}

func TestPointsForTaskUnknownInputsFallBack(t *testing.T) {
	got := PointsForTask(Task{ID: "t1", Difficulty: "brutal", Category: "underwater basket weaving"}, 0, TimeNone)
	want := PointsForTask(Task{ID: "t1", Difficulty: DifficultyMedium}, 0, TimeNone)
	if got != want {
		t.Fatalf("fallback mismatch: got %d want %d", got, want)
	}
}

func TestPointsForTaskDifficultyOrdering(t *testing.T) {
	easy := PointsForTask(Task{Difficulty: DifficultyEasy}, 0, TimeNone)
	medium := PointsForTask(Task{Difficulty: DifficultyMedium}, 0, TimeNone)
	hard := PointsForTask(Task{Difficulty: DifficultyHard}, 0, TimeNone)
	if !(easy < medium && medium < hard) {
		t.Fatalf("difficulty tiers not strictly increasing: %d %d %d", easy, medium, hard)
	}
}

func TestPointsForTaskTimeWindow(t *testing.T) {
	task := Task{ID: "t1", Difficulty: DifficultyEasy}
	plain := PointsForTask(task, 0, TimeNone)
	early := PointsForTask(task, 0, TimeEarlyMorning)
	if early != 69 { // round(60 * 1.15)
		t.Fatalf("expected 69, got %d", early)
	}
	if early <= plain {
		t.Fatalf("time bonus should increase award: %d vs %d", early, plain)
	}
}

func TestPointsForArticle(t *testing.T) {
	// 25 x min(6/2, 3) x 1.0
	if got := PointsForArticle(Article{ID: "a1", ReadMinutes: 6}, 0); got != 75 {
		t.Fatalf("expected 75, got %d", got)
	}
	// length cap: a 60-minute read scores the same as a 6-minute one
	if got := PointsForArticle(Article{ID: "a2", ReadMinutes: 60}, 0); got != 75 {
		t.Fatalf("expected capped 75, got %d", got)
	}
	// streak multiplier applies
	if got := PointsForArticle(Article{ID: "a1", ReadMinutes: 6}, 7); got != 90 {
		t.Fatalf("expected 90, got %d", got)
	}
	// negative read time treated as zero
	if got := PointsForArticle(Article{ID: "a3", ReadMinutes: -5}, 0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestParseReadTime(t *testing.T) {
	cases := map[string]int{
		"6 min":      6,
		"12 minutes": 12,
		" 3 min ":    3,
		"min":        0,
		"":           0,
		"-4 min":     0,
	}
	for in, want := range cases {
		if got := ParseReadTime(in); got != want {
			t.Fatalf("ParseReadTime(%q) = %d, want %d", in, got, want)
		}
	}
}
