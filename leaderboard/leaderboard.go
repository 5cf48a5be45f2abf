package leaderboard

import "clearspace/core"

// Entry is a ranked user on the points leaderboard.
type Entry struct {
	User   core.UserID `json:"user_id"`
	Points int64       `json:"points"`
	Level  int         `json:"level"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(user core.UserID, points int64, level int)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	RankOf(user core.UserID) (int, bool)
}

// Tracker keeps a board in sync with the progress event stream. It is
// meant to be registered as an event bus subscriber.
type Tracker struct {
	board Board
}

func NewTracker(board Board) *Tracker { return &Tracker{board: board} }

func (t *Tracker) Board() Board { return t.board }

// Apply folds one event into the board. Points events carry the user's
// running total, so the board is overwritten rather than incremented and
// replayed or duplicated events stay harmless.
func (t *Tracker) Apply(ev core.Event) {
	switch ev.Type {
	case core.EventPointsAwarded, core.EventPointsRevoked:
		entry, _ := t.board.Get(ev.UserID)
		level := entry.Level
		if level == 0 {
			level = 1
		}
		t.board.Update(ev.UserID, ev.Total, level)
	case core.EventLevelUp:
		points := ev.Total
		if entry, ok := t.board.Get(ev.UserID); ok && points == 0 {
			points = entry.Points
		}
		t.board.Update(ev.UserID, points, ev.Level)
	}
}
