package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clearspace/core"
)

// Store persists entire state to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.UserID]*record
}

type record struct {
	Stats        core.UserStats    `json:"stats"`
	Subscription core.Subscription `json:"subscription"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]*record{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]*record
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]*record, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) *record {
	if rec, ok := s.data[user]; ok {
		return rec
	}
	rec := &record{Stats: core.NewUserStats(user), Subscription: core.NewSubscription(user)}
	s.data[user] = rec
	return rec
}

func (s *Store) LoadStats(_ context.Context, user core.UserID) (core.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Stats.Clone(), nil
}

func (s *Store) SaveStats(_ context.Context, user core.UserID, stats core.UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(user).Stats = stats.Clone()
	return s.persist()
}

func (s *Store) LoadSubscription(_ context.Context, user core.UserID) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Subscription, nil
}

func (s *Store) SaveSubscription(_ context.Context, user core.UserID, sub core.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(user).Subscription = sub
	return s.persist()
}

// DebitCredit consumes one credit under the store lock so interleaved
// debits cannot double-spend.
func (s *Store) DebitCredit(_ context.Context, user core.UserID) (core.Subscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.get(user)
	if rec.Subscription.Lapsed() || rec.Subscription.CreditsRemaining <= 0 {
		return rec.Subscription, false, nil
	}
	rec.Subscription.CreditsRemaining--
	rec.Subscription.CreditsUsed++
	rec.Subscription.Updated = time.Now().UTC()
	if err := s.persist(); err != nil {
		// roll back the in-memory change so cache and file agree
		rec.Subscription.CreditsRemaining++
		rec.Subscription.CreditsUsed--
		return rec.Subscription, false, err
	}
	return rec.Subscription, true, nil
}
