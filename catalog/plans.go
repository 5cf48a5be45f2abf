package catalog

import "fmt"

// Unlimited marks a quota with no cap.
const Unlimited int64 = -1

// Billing interval values.
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// Feature names gate-checkable capabilities.
const (
	FeatureAIDesigner       = "ai_designer"
	FeatureUnlimitedContent = "content:unlimited"
)

// ContentType names countable content quotas.
type ContentType string

const (
	ContentTasks    ContentType = "tasks"
	ContentArticles ContentType = "articles"
	ContentRooms    ContentType = "rooms"
)

// PlanLimits holds the per-plan content and feature caps.
// Numeric limits use Unlimited (-1) for no cap.
type PlanLimits struct {
	Tasks          int64 `json:"tasks"`
	Articles       int64 `json:"articles"`
	AIDesigner     bool  `json:"ai_designer"`
	RoomTransforms int64 `json:"room_transforms"`
}

// Plan is one entry of the static subscription plan catalog.
type Plan struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	PriceCents      int64      `json:"price_cents"`
	BillingInterval string     `json:"billing_interval"`
	Limits          PlanLimits `json:"limits"`
	// MonthlyCredits is the AI-designer credit grant per billing cycle.
	MonthlyCredits int64 `json:"monthly_credits"`
}

// Limit returns the numeric cap for a content type; unknown types are
// unlimited (never block on a typo).
func (p Plan) Limit(ct ContentType) int64 {
	switch ct {
	case ContentTasks:
		return p.Limits.Tasks
	case ContentArticles:
		return p.Limits.Articles
	case ContentRooms:
		return p.Limits.RoomTransforms
	default:
		return Unlimited
	}
}

// PlanCatalog is an immutable plan table keyed by id.
type PlanCatalog struct {
	plans []Plan
	byID  map[string]Plan
}

// NewPlanCatalog builds a catalog, rejecting duplicates and requiring a
// "free" fallback plan.
func NewPlanCatalog(plans []Plan) (*PlanCatalog, error) {
	c := &PlanCatalog{byID: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan %q: empty id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("plan %q: duplicate id", p.ID)
		}
		c.byID[p.ID] = p
		c.plans = append(c.plans, p)
	}
	if _, ok := c.byID["free"]; !ok {
		return nil, fmt.Errorf("plan catalog must contain a free plan")
	}
	return c, nil
}

// All returns the plans in catalog order. Callers must not mutate.
func (c *PlanCatalog) All() []Plan { return c.plans }

// Get looks up a plan. Unknown ids fall back to the free plan so a
// stale subscription record degrades rather than fails.
func (c *PlanCatalog) Get(id string) Plan {
	if p, ok := c.byID[id]; ok {
		return p
	}
	return c.byID["free"]
}

// DefaultPlans is the built-in plan catalog.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID: "free", Name: "Free", PriceCents: 0, BillingInterval: IntervalMonth,
			Limits:         PlanLimits{Tasks: 10, Articles: 5, AIDesigner: false, RoomTransforms: 0},
			MonthlyCredits: 0,
		},
		{
			ID: "plus", Name: "Plus", PriceCents: 499, BillingInterval: IntervalMonth,
			Limits:         PlanLimits{Tasks: 50, Articles: Unlimited, AIDesigner: true, RoomTransforms: 5},
			MonthlyCredits: 5,
		},
		{
			ID: "pro", Name: "Pro", PriceCents: 999, BillingInterval: IntervalMonth,
			Limits:         PlanLimits{Tasks: Unlimited, Articles: Unlimited, AIDesigner: true, RoomTransforms: Unlimited},
			MonthlyCredits: 25,
		},
	}
}
