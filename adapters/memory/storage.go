package memory

import (
	"context"
	"sync"
	"time"

	"clearspace/core"
)

// Store is a concurrent in-memory Storage implementation.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu    sync.Mutex
	stats core.UserStats
	sub   core.Subscription
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{
		stats: core.NewUserStats(user),
		sub:   core.NewSubscription(user),
	}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

func (s *Store) LoadStats(_ context.Context, user core.UserID) (core.UserStats, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.stats.Clone(), nil
}

func (s *Store) SaveStats(_ context.Context, user core.UserID, stats core.UserStats) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.stats = stats.Clone()
	return nil
}

func (s *Store) LoadSubscription(_ context.Context, user core.UserID) (core.Subscription, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.sub, nil
}

func (s *Store) SaveSubscription(_ context.Context, user core.UserID, sub core.Subscription) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.sub = sub
	return nil
}

// DebitCredit consumes one credit as a single locked check-and-decrement.
func (s *Store) DebitCredit(_ context.Context, user core.UserID) (core.Subscription, bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.sub.Lapsed() || rec.sub.CreditsRemaining <= 0 {
		return rec.sub, false, nil
	}
	rec.sub.CreditsRemaining--
	rec.sub.CreditsUsed++
	rec.sub.Updated = time.Now().UTC()
	return rec.sub, true, nil
}
