package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// UserStats mirrors the public JSON surface of core.UserStats.
type UserStats struct {
	UserID           string              `json:"user_id"`
	TotalPoints      int64               `json:"total_points"`
	Level            int                 `json:"level"`
	StreakDays       int                 `json:"streak_days"`
	LongestStreak    int                 `json:"longest_streak"`
	TasksCompleted   int64               `json:"tasks_completed"`
	ArticlesRead     int64               `json:"articles_read"`
	RoomsTransformed int64               `json:"rooms_transformed"`
	BadgesEarned     map[string]struct{} `json:"badges_earned"`
	TasksByCategory  map[string]int64    `json:"tasks_by_category,omitempty"`
	LastActivity     time.Time           `json:"last_activity"`
}

// LevelInfo mirrors catalog.LevelInfo.
type LevelInfo struct {
	Level               int    `json:"level"`
	Title               string `json:"title"`
	Description         string `json:"description,omitempty"`
	PointsRequired      int64  `json:"points_required"`
	TotalPointsRequired int64  `json:"total_points_required"`
}

// LevelProgress mirrors catalog.Progress.
type LevelProgress struct {
	Current    int64   `json:"current"`
	Needed     int64   `json:"needed"`
	Percentage float64 `json:"percentage"`
}

// Badge mirrors the catalog badge surface returned with award results.
type Badge struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Rarity       string `json:"rarity,omitempty"`
	PointsReward int64  `json:"points_reward,omitempty"`
}

// AwardResult is the response to task, article, and room operations.
type AwardResult struct {
	Stats       UserStats `json:"stats"`
	Points      int64     `json:"points"`
	BonusPoints int64     `json:"bonus_points"`
	NewBadges   []Badge   `json:"new_badges,omitempty"`
	LeveledUp   bool      `json:"leveled_up"`
}

// UserState is the combined GET /users/{id} response.
type UserState struct {
	Stats    UserStats     `json:"stats"`
	Level    LevelInfo     `json:"level"`
	Progress LevelProgress `json:"progress"`
}

// Entitlements is the GET /users/{id}/entitlements response.
type Entitlements struct {
	Features         map[string]bool `json:"features"`
	CanAdd           map[string]bool `json:"can_add"`
	CreditsRemaining int64           `json:"credits_remaining"`
}

// CreditResult is the response to POST /users/{id}/credits/use.
type CreditResult struct {
	OK               bool  `json:"ok"`
	CreditsRemaining int64 `json:"credits_remaining"`
}

// TransformResult is the response to POST /users/{id}/rooms/transform.
type TransformResult struct {
	Result           AwardResult `json:"result"`
	CreditsRemaining int64       `json:"credits_remaining"`
}

// LeaderboardEntry is one row of GET /leaderboard.
type LeaderboardEntry struct {
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
	Level  int    `json:"level"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// APIError is the structured error body the server returns.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			return fmt.Errorf("request failed: status %d", resp.StatusCode)
		}
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
