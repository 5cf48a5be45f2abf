package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	wsadapter "clearspace/adapters/websocket"
	"clearspace/catalog"
	"clearspace/core"
	"clearspace/engine"
	"clearspace/entitlement"
	"clearspace/insights"
	"clearspace/leaderboard"
	"clearspace/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
}

// Deps are the optional read-model collaborators. Nil fields disable
// their routes.
type Deps struct {
	Hub       *realtime.Hub
	Board     leaderboard.Board
	Collector *insights.Collector
}

type completeTaskRequest struct {
	Difficulty string `json:"difficulty"`
	Category   string `json:"category,omitempty"`
}

type readArticleRequest struct {
	ReadMinutes int    `json:"read_minutes,omitempty"`
	ReadTime    string `json:"read_time,omitempty"`
}

type transformRoomRequest struct {
	RoomID string `json:"room_id"`
}

// NewMux builds an http.Handler exposing the progress REST API and
// WebSocket stream.
// Routes:
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
//   - GET  {prefix}/leaderboard?n=10
//   - GET  {prefix}/users/{id}
//   - GET  {prefix}/users/{id}/progress
//   - GET  {prefix}/users/{id}/multipliers
//   - GET  {prefix}/users/{id}/entitlements
//   - GET  {prefix}/users/{id}/insights?days=30
//   - POST {prefix}/users/{id}/tasks/{taskID}/complete
//   - POST {prefix}/users/{id}/tasks/{taskID}/uncomplete
//   - POST {prefix}/users/{id}/articles/{articleID}/read
//   - POST {prefix}/users/{id}/articles/{articleID}/unread
//   - POST {prefix}/users/{id}/rooms/transform
//   - POST {prefix}/users/{id}/credits/use
//
// Identity arrives via the X-Admin and X-Permissions headers set by the
// fronting auth proxy; user-facing calls carry neither.
func NewMux(svc *engine.ProgressService, deps Deps, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})

	if deps.Hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(deps.Hub))
	}

	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard"), func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || deps.Board == nil {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		n := 10
		if raw := r.URL.Query().Get("n"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
				n = v
			}
		}
		writeJSON(w, map[string]any{"entries": deps.Board.TopN(n)})
	})

	api := &userAPI{svc: svc, deps: deps}
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/users/"), func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, opts.PathPrefix)
		api.route(w, r, split(path, '/'))
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

type userAPI struct {
	svc  *engine.ProgressService
	deps Deps
}

// route dispatches /users/{id}/... paths already split into segments.
func (a *userAPI) route(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) < 2 || parts[0] != "users" {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
		return
	}
	user, err := core.NormalizeUserID(core.UserID(parts[1]))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
		return
	}
	rctx := requestContext(r, user)
	rest := parts[2:]

	switch r.Method {
	case http.MethodGet:
		a.routeGet(w, r, user, rctx, rest)
	case http.MethodPost:
		a.routePost(w, r, user, rctx, rest)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	}
}

func (a *userAPI) routeGet(w http.ResponseWriter, r *http.Request, user core.UserID, rctx core.RequestContext, rest []string) {
	switch {
	case len(rest) == 0:
		a.handleState(w, r, user)
	case len(rest) == 1 && rest[0] == "progress":
		a.handleProgress(w, r, user)
	case len(rest) == 1 && rest[0] == "multipliers":
		a.handleMultipliers(w, r, user)
	case len(rest) == 1 && rest[0] == "entitlements":
		a.handleEntitlements(w, r, user, rctx)
	case len(rest) == 1 && rest[0] == "insights":
		a.handleInsights(w, r, user)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	}
}

func (a *userAPI) routePost(w http.ResponseWriter, r *http.Request, user core.UserID, rctx core.RequestContext, rest []string) {
	switch {
	case len(rest) == 3 && rest[0] == "tasks" && rest[2] == "complete":
		a.handleCompleteTask(w, r, user, rest[1])
	case len(rest) == 3 && rest[0] == "tasks" && rest[2] == "uncomplete":
		a.handleUncompleteTask(w, r, user, rest[1])
	case len(rest) == 3 && rest[0] == "articles" && rest[2] == "read":
		a.handleReadArticle(w, r, user, rest[1])
	case len(rest) == 3 && rest[0] == "articles" && rest[2] == "unread":
		a.handleUnreadArticle(w, r, user, rest[1])
	case len(rest) == 2 && rest[0] == "rooms" && rest[1] == "transform":
		a.handleTransformRoom(w, r, rctx)
	case len(rest) == 2 && rest[0] == "credits" && rest[1] == "use":
		a.handleUseCredit(w, r, rctx)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	}
}

func (a *userAPI) handleState(w http.ResponseWriter, r *http.Request, user core.UserID) {
	stats, err := a.svc.Stats(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	levels := a.svc.Catalogs().Levels
	writeJSON(w, map[string]any{
		"stats":    stats,
		"level":    levels.LevelFor(stats.TotalPoints),
		"progress": levels.ProgressToNext(stats.TotalPoints),
	})
}

func (a *userAPI) handleProgress(w http.ResponseWriter, r *http.Request, user core.UserID) {
	stats, err := a.svc.Stats(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	levels := a.svc.Catalogs().Levels
	resp := map[string]any{
		"level":    levels.LevelFor(stats.TotalPoints),
		"progress": levels.ProgressToNext(stats.TotalPoints),
	}
	if next := levels.NextLevel(stats.TotalPoints); next != nil {
		resp["next_level"] = next
	}
	writeJSON(w, resp)
}

func (a *userAPI) handleMultipliers(w http.ResponseWriter, r *http.Request, user core.UserID) {
	stats, err := a.svc.Stats(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	category := r.URL.Query().Get("category")
	active := core.ActiveMultipliers(stats.StreakDays, core.TimeContextAt(time.Now().UTC()), category)
	writeJSON(w, map[string]any{"multipliers": active, "streak_days": stats.StreakDays})
}

func (a *userAPI) handleEntitlements(w http.ResponseWriter, r *http.Request, user core.UserID, rctx core.RequestContext) {
	stats, err := a.svc.Stats(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	sub, err := a.svc.Subscription(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	plan := a.svc.Catalogs().Plans.Get(sub.PlanID)
	writeJSON(w, map[string]any{
		"plan":         plan,
		"subscription": sub,
		"features": map[string]bool{
			catalog.FeatureAIDesigner:       entitlement.HasFeature(rctx, plan, catalog.FeatureAIDesigner),
			catalog.FeatureUnlimitedContent: entitlement.HasFeature(rctx, plan, catalog.FeatureUnlimitedContent),
		},
		"can_add": map[string]bool{
			string(catalog.ContentTasks):    entitlement.CanAdd(rctx, plan, stats.TasksCompleted, catalog.ContentTasks),
			string(catalog.ContentArticles): entitlement.CanAdd(rctx, plan, stats.ArticlesRead, catalog.ContentArticles),
			string(catalog.ContentRooms):    entitlement.CanAdd(rctx, plan, stats.RoomsTransformed, catalog.ContentRooms),
		},
		"credits_remaining": entitlement.CreditsRemaining(rctx, sub),
	})
}

func (a *userAPI) handleInsights(w http.ResponseWriter, r *http.Request, user core.UserID) {
	if a.deps.Collector == nil {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
		return
	}
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 365 {
			days = v
		}
	}
	writeJSON(w, a.deps.Collector.ForUser(user, days))
}

func (a *userAPI) handleCompleteTask(w http.ResponseWriter, r *http.Request, user core.UserID, taskID string) {
	var req completeTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	task := core.Task{ID: taskID, Difficulty: core.Difficulty(req.Difficulty), Category: req.Category}
	res, err := a.svc.CompleteTask(r.Context(), user, task)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, res)
}

func (a *userAPI) handleUncompleteTask(w http.ResponseWriter, r *http.Request, user core.UserID, taskID string) {
	var req completeTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	task := core.Task{ID: taskID, Difficulty: core.Difficulty(req.Difficulty), Category: req.Category}
	res, err := a.svc.UncompleteTask(r.Context(), user, task)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, res)
}

func (a *userAPI) handleReadArticle(w http.ResponseWriter, r *http.Request, user core.UserID, articleID string) {
	var req readArticleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	minutes := req.ReadMinutes
	if minutes == 0 && req.ReadTime != "" {
		minutes = core.ParseReadTime(req.ReadTime)
	}
	res, err := a.svc.ReadArticle(r.Context(), user, core.Article{ID: articleID, ReadMinutes: minutes})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, res)
}

func (a *userAPI) handleUnreadArticle(w http.ResponseWriter, r *http.Request, user core.UserID, articleID string) {
	res, err := a.svc.UnreadArticle(r.Context(), user, core.Article{ID: articleID})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, res)
}

// handleTransformRoom debits one design credit and, only on success,
// records the transformation award.
func (a *userAPI) handleTransformRoom(w http.ResponseWriter, r *http.Request, rctx core.RequestContext) {
	var req transformRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	sub, ok, err := a.svc.UseDesignCredit(r.Context(), rctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	if !ok {
		writeError(w, http.StatusPaymentRequired, "no_credits", engine.ErrNoCredits.Error(),
			map[string]any{"credits_remaining": sub.CreditsRemaining})
		return
	}
	res, err := a.svc.TransformRoom(r.Context(), rctx.UserID, req.RoomID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"result": res, "credits_remaining": sub.CreditsRemaining})
}

func (a *userAPI) handleUseCredit(w http.ResponseWriter, r *http.Request, rctx core.RequestContext) {
	sub, ok, err := a.svc.UseDesignCredit(r.Context(), rctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	if !ok {
		writeError(w, http.StatusPaymentRequired, "no_credits", engine.ErrNoCredits.Error(),
			map[string]any{"credits_remaining": sub.CreditsRemaining})
		return
	}
	writeJSON(w, map[string]any{"ok": true, "credits_remaining": sub.CreditsRemaining})
}

// Helpers

// requestContext resolves the caller identity from trusted proxy headers.
func requestContext(r *http.Request, user core.UserID) core.RequestContext {
	rctx := core.RequestContext{UserID: user}
	switch strings.ToLower(r.Header.Get("X-Admin")) {
	case "1", "true", "yes":
		rctx.IsAdmin = true
	}
	if raw := r.Header.Get("X-Permissions"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				rctx.Permissions = append(rctx.Permissions, p)
			}
		}
	}
	return rctx
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// healthCheck verifies storage is reachable with a lightweight probe read.
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.ProgressService) {
	_, err := svc.Stats(r.Context(), core.UserID("healthcheck_probe"))

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	} else {
		w.WriteHeader(http.StatusOK)
	}
	writeJSON(w, status)
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	for _, r := range p {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Admin,X-Permissions")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
