package core

import (
	"math"
	"testing"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestUserStatsClone(t *testing.T) {
	s := NewUserStats("alice")
	s.BadgesEarned["first_steps"] = struct{}{}
	s.TasksByCategory["finance"] = 2
	s.TaskAwards["t1"] = TaskAward{Points: 195, Category: "finance"}

	cp := s.Clone()
	cp.BadgesEarned["extra"] = struct{}{}
	cp.TasksByCategory["finance"] = 99
	cp.TaskAwards["t2"] = TaskAward{Points: 1}

	if s.HasBadge("extra") {
		t.Fatal("clone mutation leaked into original badges")
	}
	if s.TasksByCategory["finance"] != 2 {
		t.Fatal("clone mutation leaked into category counters")
	}
	if _, ok := s.TaskAwards["t2"]; ok {
		t.Fatal("clone mutation leaked into award ledger")
	}
}

func TestRequestContextPermissions(t *testing.T) {
	if (RequestContext{}).HasPermission("ai_designer") {
		t.Fatal("non-admin must hold no permissions")
	}
	if !(RequestContext{IsAdmin: true}).HasPermission("ai_designer") {
		t.Fatal("admin with empty permission set grants everything")
	}
	scoped := RequestContext{IsAdmin: true, Permissions: []string{"content:unlimited"}}
	if scoped.HasPermission("ai_designer") {
		t.Fatal("scoped admin must not hold unrelated permission")
	}
	if !scoped.HasPermission("content:unlimited") {
		t.Fatal("scoped admin must hold listed permission")
	}
	wildcard := RequestContext{IsAdmin: true, Permissions: []string{"*"}}
	if !wildcard.HasPermission("anything") {
		t.Fatal("wildcard grants everything")
	}
}
