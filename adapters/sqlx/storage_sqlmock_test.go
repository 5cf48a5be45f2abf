package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearspace/core"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(libsqlx.NewDb(db, "postgres"), DriverPostgres), mock
}

func TestLoadStatsMissingUserReturnsFresh(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT data FROM user_stats").
		WithArgs(core.UserID("maya")).
		WillReturnError(sql.ErrNoRows)

	stats, err := store.LoadStats(context.Background(), "maya")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("maya"), stats.UserID)
	assert.Zero(t, stats.TotalPoints)
	assert.Equal(t, 1, stats.Level)
	assert.NotNil(t, stats.BadgesEarned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadStatsDecodesStoredRow(t *testing.T) {
	store, mock := newMockStore(t)

	stored := core.NewUserStats("maya")
	stored.TotalPoints = 480
	stored.Level = 3
	stored.TasksCompleted = 4
	stored.BadgesEarned["first_task"] = struct{}{}
	data, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT data FROM user_stats").
		WithArgs(core.UserID("maya")).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	stats, err := store.LoadStats(context.Background(), "maya")
	require.NoError(t, err)
	assert.Equal(t, int64(480), stats.TotalPoints)
	assert.Equal(t, 3, stats.Level)
	assert.True(t, stats.HasBadge("first_task"))
	assert.NotNil(t, stats.TaskAwards)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveStatsUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO user_stats").
		WillReturnResult(sqlmock.NewResult(0, 1))

	stats := core.NewUserStats("maya")
	stats.TotalPoints = 195
	require.NoError(t, store.SaveStats(context.Background(), "maya", stats))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSubscriptionMissingUserDefaultsToFree(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT plan_id, status, credits_remaining").
		WithArgs(core.UserID("maya")).
		WillReturnError(sql.ErrNoRows)

	sub, err := store.LoadSubscription(context.Background(), "maya")
	require.NoError(t, err)
	assert.Equal(t, "free", sub.PlanID)
	assert.Equal(t, "active", sub.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSubscriptionReadsRow(t *testing.T) {
	store, mock := newMockStore(t)

	updated := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT plan_id, status, credits_remaining").
		WithArgs(core.UserID("maya")).
		WillReturnRows(sqlmock.
			NewRows([]string{"plan_id", "status", "credits_remaining", "credits_used", "updated_at"}).
			AddRow("plus", "active", int64(4), int64(1), updated))

	sub, err := store.LoadSubscription(context.Background(), "maya")
	require.NoError(t, err)
	assert.Equal(t, "plus", sub.PlanID)
	assert.Equal(t, int64(4), sub.CreditsRemaining)
	assert.Equal(t, int64(1), sub.CreditsUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSubscriptionUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO user_subscriptions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sub := core.NewSubscription("maya")
	sub.PlanID = "pro"
	sub.CreditsRemaining = 25
	require.NoError(t, store.SaveSubscription(context.Background(), "maya", sub))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitCreditConsumesWhenAvailable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE user_subscriptions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT plan_id, status, credits_remaining").
		WithArgs(core.UserID("maya")).
		WillReturnRows(sqlmock.
			NewRows([]string{"plan_id", "status", "credits_remaining", "credits_used", "updated_at"}).
			AddRow("plus", "active", int64(4), int64(1), time.Now().UTC()))

	sub, ok, err := store.DebitCredit(context.Background(), "maya")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4), sub.CreditsRemaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitCreditDeniesLapsedSubscription(t *testing.T) {
	store, mock := newMockStore(t)

	// the guard clause filters lapsed rows, so the UPDATE touches nothing
	mock.ExpectExec("UPDATE user_subscriptions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT plan_id, status, credits_remaining").
		WithArgs(core.UserID("maya")).
		WillReturnRows(sqlmock.
			NewRows([]string{"plan_id", "status", "credits_remaining", "credits_used", "updated_at"}).
			AddRow("plus", core.SubscriptionPastDue, int64(5), int64(0), time.Now().UTC()))

	sub, ok, err := store.DebitCredit(context.Background(), "maya")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(5), sub.CreditsRemaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitCreditDeniesWhenExhausted(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE user_subscriptions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT plan_id, status, credits_remaining").
		WithArgs(core.UserID("maya")).
		WillReturnRows(sqlmock.
			NewRows([]string{"plan_id", "status", "credits_remaining", "credits_used", "updated_at"}).
			AddRow("plus", "active", int64(0), int64(5), time.Now().UTC()))

	sub, ok, err := store.DebitCredit(context.Background(), "maya")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), sub.CreditsRemaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}
