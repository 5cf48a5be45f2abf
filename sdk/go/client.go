package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"clearspace/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the progress HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithAdmin marks all requests as admin with the given permissions.
// Meant for trusted backend callers behind the auth proxy.
func WithAdmin(permissions ...string) Option {
	return func(c *Client) {
		c.headers.Set("X-Admin", "true")
		if len(permissions) > 0 {
			c.headers.Set("X-Permissions", strings.Join(permissions, ","))
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// CompleteTask records a task completion and returns the award.
func (c *Client) CompleteTask(ctx context.Context, userID, taskID, difficulty, category string) (AwardResult, error) {
	var res AwardResult
	path := fmt.Sprintf("/users/%s/tasks/%s/complete", url.PathEscape(userID), url.PathEscape(taskID))
	err := c.post(ctx, userID, path, map[string]string{"difficulty": difficulty, "category": category}, &res)
	return res, err
}

// UncompleteTask reverses a prior completion.
func (c *Client) UncompleteTask(ctx context.Context, userID, taskID, difficulty, category string) (AwardResult, error) {
	var res AwardResult
	path := fmt.Sprintf("/users/%s/tasks/%s/uncomplete", url.PathEscape(userID), url.PathEscape(taskID))
	err := c.post(ctx, userID, path, map[string]string{"difficulty": difficulty, "category": category}, &res)
	return res, err
}

// ReadArticle records an article read. readMinutes is the article's
// estimated reading time.
func (c *Client) ReadArticle(ctx context.Context, userID, articleID string, readMinutes int) (AwardResult, error) {
	var res AwardResult
	path := fmt.Sprintf("/users/%s/articles/%s/read", url.PathEscape(userID), url.PathEscape(articleID))
	err := c.post(ctx, userID, path, map[string]int{"read_minutes": readMinutes}, &res)
	return res, err
}

// UnreadArticle reverses a prior read.
func (c *Client) UnreadArticle(ctx context.Context, userID, articleID string) (AwardResult, error) {
	var res AwardResult
	path := fmt.Sprintf("/users/%s/articles/%s/unread", url.PathEscape(userID), url.PathEscape(articleID))
	err := c.post(ctx, userID, path, nil, &res)
	return res, err
}

// TransformRoom debits one design credit and records the transformation.
func (c *Client) TransformRoom(ctx context.Context, userID, roomID string) (TransformResult, error) {
	var res TransformResult
	path := fmt.Sprintf("/users/%s/rooms/transform", url.PathEscape(userID))
	err := c.post(ctx, userID, path, map[string]string{"room_id": roomID}, &res)
	return res, err
}

// UseCredit consumes one design credit.
func (c *Client) UseCredit(ctx context.Context, userID string) (CreditResult, error) {
	var res CreditResult
	path := fmt.Sprintf("/users/%s/credits/use", url.PathEscape(userID))
	err := c.post(ctx, userID, path, nil, &res)
	return res, err
}

// GetUser fetches the combined stats, level, and progress view.
func (c *Client) GetUser(ctx context.Context, userID string) (UserState, error) {
	var st UserState
	err := c.get(ctx, userID, fmt.Sprintf("/users/%s", url.PathEscape(userID)), &st)
	return st, err
}

// GetEntitlements fetches the plan gates for a user.
func (c *Client) GetEntitlements(ctx context.Context, userID string) (Entitlements, error) {
	var ent Entitlements
	err := c.get(ctx, userID, fmt.Sprintf("/users/%s/entitlements", url.PathEscape(userID)), &ent)
	return ent, err
}

// GetLeaderboard fetches the top n users by points.
func (c *Client) GetLeaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	var body struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
	path := "/leaderboard"
	if n > 0 {
		path = fmt.Sprintf("/leaderboard?n=%d", n)
	}
	if err := c.get(ctx, "-", path, &body); err != nil {
		return nil, err
	}
	return body.Entries, nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.get(ctx, "-", "/healthz", &hs)
	return hs, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event
// values. userID, when non-empty, limits the stream to that user. The
// returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	wsURL := c.wsURL
	if userID != "" {
		wsURL += "?user=" + url.QueryEscape(userID)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				var evt core.Event
				if err := conn.ReadJSON(&evt); err != nil {
					return
				}
				select {
				case out <- evt:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) get(ctx context.Context, userID, path string, target any) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) post(ctx context.Context, userID, path string, body, target any) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, target)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
