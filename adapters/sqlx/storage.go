package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// database drivers selected via Config.Driver
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"clearspace/core"
)

// Driver identifies the SQL dialect in use.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver"`
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		DSN:             "",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements the engine.Storage interface on a SQL database.
// Schema:
//   - user_stats(user_id PK, data JSON blob, updated_at)
//   - user_subscriptions(user_id PK, plan_id, status, credits_remaining, credits_used, updated_at)
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection pool and verifies it.
func New(cfg Config) (*Store, error) {
	db, err := sqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db, driver: cfg.Driver}, nil
}

// NewWithDB wraps an existing connection (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id VARCHAR(191) PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_subscriptions (
			user_id VARCHAR(191) PRIMARY KEY,
			plan_id VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL,
			credits_remaining BIGINT NOT NULL DEFAULT 0,
			credits_used BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) LoadStats(ctx context.Context, user core.UserID) (core.UserStats, error) {
	var data []byte
	q := s.db.Rebind(`SELECT data FROM user_stats WHERE user_id = ?`)
	err := s.db.QueryRowxContext(ctx, q, user).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *Store) SaveStats(ctx context.Context, user core.UserID, stats core.UserStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	now := time.Now().UTC()

	var q string
	switch s.driver {
	case DriverMySQL:
		q = `INSERT INTO user_stats (user_id, data, updated_at) VALUES (?, ?, ?)
		     ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = VALUES(updated_at)`
	default:
		q = `INSERT INTO user_stats (user_id, data, updated_at) VALUES (?, ?, ?)
		     ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), user, data, now); err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

func (s *Store) LoadSubscription(ctx context.Context, user core.UserID) (core.Subscription, error) {
	var row struct {
		PlanID           string    `db:"plan_id"`
		Status           string    `db:"status"`
		CreditsRemaining int64     `db:"credits_remaining"`
		CreditsUsed      int64     `db:"credits_used"`
		UpdatedAt        time.Time `db:"updated_at"`
	}
	q := s.db.Rebind(`SELECT plan_id, status, credits_remaining, credits_used, updated_at
	                  FROM user_subscriptions WHERE user_id = ?`)
	err := s.db.GetContext(ctx, &row, q, user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewSubscription(user), nil
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	return core.Subscription{
		UserID:           user,
		PlanID:           row.PlanID,
		Status:           row.Status,
		CreditsRemaining: row.CreditsRemaining,
		CreditsUsed:      row.CreditsUsed,
		Updated:          row.UpdatedAt,
	}, nil
}

func (s *Store) SaveSubscription(ctx context.Context, user core.UserID, sub core.Subscription) error {
	now := time.Now().UTC()

	var q string
	switch s.driver {
	case DriverMySQL:
		q = `INSERT INTO user_subscriptions (user_id, plan_id, status, credits_remaining, credits_used, updated_at)
		     VALUES (?, ?, ?, ?, ?, ?)
		     ON DUPLICATE KEY UPDATE plan_id = VALUES(plan_id), status = VALUES(status),
		       credits_remaining = VALUES(credits_remaining), credits_used = VALUES(credits_used),
		       updated_at = VALUES(updated_at)`
	default:
		q = `INSERT INTO user_subscriptions (user_id, plan_id, status, credits_remaining, credits_used, updated_at)
		     VALUES (?, ?, ?, ?, ?, ?)
		     ON CONFLICT (user_id) DO UPDATE SET plan_id = EXCLUDED.plan_id, status = EXCLUDED.status,
		       credits_remaining = EXCLUDED.credits_remaining, credits_used = EXCLUDED.credits_used,
		       updated_at = EXCLUDED.updated_at`
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), user, sub.PlanID, sub.Status, sub.CreditsRemaining, sub.CreditsUsed, now); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// DebitCredit consumes one credit with a guarded UPDATE, so the
// check-and-decrement is a single statement and cannot double-spend.
func (s *Store) DebitCredit(ctx context.Context, user core.UserID) (core.Subscription, bool, error) {
	q := s.db.Rebind(`UPDATE user_subscriptions
	                  SET credits_remaining = credits_remaining - 1,
	                      credits_used = credits_used + 1,
	                      updated_at = ?
	                  WHERE user_id = ? AND credits_remaining > 0
	                    AND status NOT IN (?, ?)`)
	res, err := s.db.ExecContext(ctx, q, time.Now().UTC(), user,
		core.SubscriptionPastDue, core.SubscriptionCanceled)
	if err != nil {
		return core.Subscription{}, false, fmt.Errorf("failed to debit credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Subscription{}, false, fmt.Errorf("failed to debit credit: %w", err)
	}
	sub, loadErr := s.LoadSubscription(ctx, user)
	if loadErr != nil {
		return core.Subscription{}, false, loadErr
	}
	return sub, n == 1, nil
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
