// Package progress is the embedding facade: one call builds a fully
// wired ProgressService with sensible defaults for applications that
// consume the engine as a library rather than running the server.
package progress

import (
	"context"
	"time"

	mem "clearspace/adapters/memory"
	"clearspace/catalog"
	"clearspace/core"
	"clearspace/engine"
	"clearspace/insights"
	"clearspace/integrations/webhook"
	"clearspace/leaderboard"
	"clearspace/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage   engine.Storage
	cats      *catalog.Catalogs
	mode      engine.DispatchMode
	hub       *realtime.Hub
	sink      *webhook.Sink
	tracker   *leaderboard.Tracker
	collector *insights.Collector
	clock     func() time.Time
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithCatalogs replaces the built-in badge, level, and plan catalogs.
func WithCatalogs(cats *catalog.Catalogs) Option { return func(c *config) { c.cats = cats } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all progress events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhook wires an outbound webhook sink into the event stream.
func WithWebhook(s *webhook.Sink) Option { return func(c *config) { c.sink = s } }

// WithLeaderboard keeps the given tracker's board in sync with awards.
func WithLeaderboard(t *leaderboard.Tracker) Option { return func(c *config) { c.tracker = t } }

// WithInsights feeds the collector from the event stream.
func WithInsights(col *insights.Collector) Option { return func(c *config) { c.collector = col } }

// WithClock overrides the wall clock, primarily for tests.
func WithClock(now func() time.Time) Option { return func(c *config) { c.clock = now } }

var allEventTypes = []core.EventType{
	core.EventPointsAwarded,
	core.EventPointsRevoked,
	core.EventBadgeEarned,
	core.EventLevelUp,
	core.EventCreditUsed,
}

// New builds a configured ProgressService. Defaults when not provided:
//   - storage: in-memory
//   - catalogs: built-in defaults
//   - dispatch: async
func New(opts ...Option) *engine.ProgressService {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	if cfg.cats == nil {
		cfg.cats = catalog.Defaults()
	}

	bus := engine.NewEventBus(cfg.mode)
	var eopts []engine.Option
	if cfg.clock != nil {
		eopts = append(eopts, engine.WithClock(cfg.clock))
	}
	svc := engine.NewProgressService(cfg.storage, bus, cfg.cats, eopts...)

	for _, typ := range allEventTypes {
		typ := typ
		if cfg.hub != nil {
			bus.Subscribe(typ, func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) })
		}
		if cfg.sink != nil {
			bus.Subscribe(typ, func(_ context.Context, e core.Event) { cfg.sink.OnEvent(e) })
		}
		if cfg.tracker != nil {
			bus.Subscribe(typ, func(_ context.Context, e core.Event) { cfg.tracker.Apply(e) })
		}
		if cfg.collector != nil {
			bus.Subscribe(typ, func(_ context.Context, e core.Event) { cfg.collector.OnEvent(e) })
		}
	}
	return svc
}
