package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventPointsAwarded EventType = "points_awarded"
	EventPointsRevoked EventType = "points_revoked"
	EventBadgeEarned   EventType = "badge_earned"
	EventLevelUp       EventType = "level_up"
	EventCreditUsed    EventType = "credit_used"
)

// Action names the user activity that produced a points event.
type Action string

const (
	ActionTask       Action = "task"
	ActionArticle    Action = "article"
	ActionRoom       Action = "room"
	ActionBadgeBonus Action = "badge_bonus"
)

// Event represents an immutable domain event.
type Event struct {
	ID       string         `json:"id"`
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	UserID   UserID         `json:"user_id"`
	Action   Action         `json:"action,omitempty"`
	RefID    string         `json:"ref_id,omitempty"`
	Delta    int64          `json:"delta,omitempty"`
	Total    int64          `json:"total,omitempty"`
	Badge    BadgeID        `json:"badge,omitempty"`
	Level    int            `json:"level,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType, user UserID) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), UserID: user}
}

func NewPointsAwarded(user UserID, action Action, refID string, delta, total int64) Event {
	ev := newEvent(EventPointsAwarded, user)
	ev.Action = action
	ev.RefID = refID
	ev.Delta = delta
	ev.Total = total
	return ev
}

func NewPointsRevoked(user UserID, action Action, refID string, delta, total int64) Event {
	ev := newEvent(EventPointsRevoked, user)
	ev.Action = action
	ev.RefID = refID
	ev.Delta = delta
	ev.Total = total
	return ev
}

func NewBadgeEarned(user UserID, badge BadgeID, reward int64) Event {
	ev := newEvent(EventBadgeEarned, user)
	ev.Badge = badge
	ev.Delta = reward
	return ev
}

func NewLevelUp(user UserID, level int, total int64) Event {
	ev := newEvent(EventLevelUp, user)
	ev.Level = level
	ev.Total = total
	return ev
}

func NewCreditUsed(user UserID, remaining int64) Event {
	ev := newEvent(EventCreditUsed, user)
	ev.Total = remaining
	return ev
}
