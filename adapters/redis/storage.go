package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"clearspace/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - user:{user_id}:stats -> JSON blob of UserStats
// - user:{user_id}:subscription -> hash {plan_id, status, credits_remaining, credits_used, updated}
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func statsKey(user core.UserID) string {
	return fmt.Sprintf("user:%s:stats", user)
}

func subscriptionKey(user core.UserID) string {
	return fmt.Sprintf("user:%s:subscription", user)
}

// LoadStats retrieves the stats blob, returning a fresh record for a
// user seen for the first time.
func (s *Store) LoadStats(ctx context.Context, user core.UserID) (core.UserStats, error) {
	data, err := s.client.Get(ctx, statsKey(user)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.NewUserStats(user), nil
	}
	if err != nil {
		return core.UserStats{}, fmt.Errorf("failed to load stats: %w", err)
	}
	var stats core.UserStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return core.UserStats{}, fmt.Errorf("failed to decode stats: %w", err)
	}
	ensureMaps(&stats)
	return stats, nil
}

// SaveStats stores the stats blob.
func (s *Store) SaveStats(ctx context.Context, user core.UserID, stats core.UserStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	if err := s.client.Set(ctx, statsKey(user), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// LoadSubscription retrieves the subscription hash, defaulting to the
// free plan for a user with no record.
func (s *Store) LoadSubscription(ctx context.Context, user core.UserID) (core.Subscription, error) {
	fields, err := s.client.HGetAll(ctx, subscriptionKey(user)).Result()
	if err != nil {
		return core.Subscription{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	if len(fields) == 0 {
		return core.NewSubscription(user), nil
	}
	sub := core.Subscription{UserID: user, PlanID: fields["plan_id"], Status: fields["status"]}
	sub.CreditsRemaining, _ = strconv.ParseInt(fields["credits_remaining"], 10, 64)
	sub.CreditsUsed, _ = strconv.ParseInt(fields["credits_used"], 10, 64)
	if ts, err := strconv.ParseInt(fields["updated"], 10, 64); err == nil {
		sub.Updated = time.Unix(ts, 0).UTC()
	}
	return sub, nil
}

// SaveSubscription stores the subscription hash.
func (s *Store) SaveSubscription(ctx context.Context, user core.UserID, sub core.Subscription) error {
	err := s.client.HSet(ctx, subscriptionKey(user), map[string]any{
		"plan_id":           sub.PlanID,
		"status":            sub.Status,
		"credits_remaining": sub.CreditsRemaining,
		"credits_used":      sub.CreditsUsed,
		"updated":           sub.Updated.Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// Lua script for atomic credit debit: a single check-and-decrement so
// two simultaneous uses can never double-spend one remaining credit.
var debitCreditScript = redis.NewScript(`
	local key = KEYS[1]
	local status = redis.call('HGET', key, 'status')
	if status == 'past_due' or status == 'canceled' then
		return {-1, 0}
	end
	local remaining = tonumber(redis.call('HGET', key, 'credits_remaining') or '0')
	if remaining <= 0 then
		return {-1, remaining}
	end
	local left = redis.call('HINCRBY', key, 'credits_remaining', -1)
	local used = redis.call('HINCRBY', key, 'credits_used', 1)
	redis.call('HSET', key, 'updated', ARGV[1])
	return {left, used}
`)

// DebitCredit atomically consumes one credit, reporting ok=false with
// an unchanged balance when none remain.
func (s *Store) DebitCredit(ctx context.Context, user core.UserID) (core.Subscription, bool, error) {
	now := time.Now().UTC()
	result, err := debitCreditScript.Run(ctx, s.client, []string{subscriptionKey(user)}, now.Unix()).Result()
	if err != nil {
		return core.Subscription{}, false, fmt.Errorf("failed to debit credit: %w", err)
	}
	vals, ok := result.([]any)
	if !ok || len(vals) != 2 {
		return core.Subscription{}, false, errors.New("unexpected result type from Redis script")
	}
	first, _ := vals[0].(int64)
	if first < 0 {
		sub, err := s.LoadSubscription(ctx, user)
		return sub, false, err
	}
	sub, err := s.LoadSubscription(ctx, user)
	if err != nil {
		return core.Subscription{}, false, err
	}
	return sub, true, nil
}

// ensureMaps re-initializes nil maps after JSON decoding so callers can
// write without nil checks.
func ensureMaps(stats *core.UserStats) {
	if stats.BadgesEarned == nil {
		stats.BadgesEarned = map[core.BadgeID]struct{}{}
	}
	if stats.TasksByCategory == nil {
		stats.TasksByCategory = map[string]int64{}
	}
	if stats.TaskAwards == nil {
		stats.TaskAwards = map[string]core.TaskAward{}
	}
	if stats.ArticleAwards == nil {
		stats.ArticleAwards = map[string]int64{}
	}
}
