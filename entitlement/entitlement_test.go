package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearspace/catalog"
	"clearspace/core"
)

func plans(t *testing.T) *catalog.PlanCatalog {
	t.Helper()
	c, err := catalog.NewPlanCatalog(catalog.DefaultPlans())
	require.NoError(t, err)
	return c
}

func TestHasFeaturePlanGating(t *testing.T) {
	c := plans(t)
	user := core.RequestContext{UserID: "alice"}

	assert.False(t, HasFeature(user, c.Get("free"), catalog.FeatureAIDesigner))
	assert.True(t, HasFeature(user, c.Get("plus"), catalog.FeatureAIDesigner))
	assert.False(t, HasFeature(user, c.Get("plus"), "feature_nobody_shipped"))
}

func TestAdminOverrideSupersedesEveryPlan(t *testing.T) {
	c := plans(t)
	admin := core.RequestContext{UserID: "root", IsAdmin: true}

	for _, p := range c.All() {
		assert.True(t, HasFeature(admin, p, catalog.FeatureAIDesigner), "plan %s", p.ID)
		assert.True(t, CanAdd(admin, p, 1_000_000, catalog.ContentTasks), "plan %s", p.ID)
	}
}

func TestCanAddQuota(t *testing.T) {
	c := plans(t)
	user := core.RequestContext{UserID: "alice"}
	free := c.Get("free")

	assert.True(t, CanAdd(user, free, 9, catalog.ContentTasks))
	assert.False(t, CanAdd(user, free, 10, catalog.ContentTasks))
	assert.False(t, CanAdd(user, free, 11, catalog.ContentTasks))
	assert.True(t, CanAdd(user, c.Get("pro"), 10_000, catalog.ContentTasks))
}

func TestUseCreditConsumesExactlyOne(t *testing.T) {
	user := core.RequestContext{UserID: "alice"}
	sub := core.Subscription{UserID: "alice", PlanID: "plus", CreditsRemaining: 3, CreditsUsed: 2}
	conserved := sub.CreditsRemaining + sub.CreditsUsed

	for i := 0; i < 3; i++ {
		next, ok := UseCredit(user, sub, time.Now())
		require.True(t, ok, "use %d", i)
		assert.Equal(t, sub.CreditsRemaining-1, next.CreditsRemaining)
		assert.Equal(t, sub.CreditsUsed+1, next.CreditsUsed)
		assert.Equal(t, conserved, next.CreditsRemaining+next.CreditsUsed)
		sub = next
	}

	// exhausted: fails, state untouched, never negative
	next, ok := UseCredit(user, sub, time.Now())
	assert.False(t, ok)
	assert.Equal(t, sub, next)
	assert.Equal(t, int64(0), next.CreditsRemaining)
}

func TestUseCreditDeniesLapsedSubscription(t *testing.T) {
	user := core.RequestContext{UserID: "alice"}

	for _, status := range []string{core.SubscriptionPastDue, core.SubscriptionCanceled} {
		sub := core.Subscription{UserID: "alice", PlanID: "plus", Status: status, CreditsRemaining: 5}
		next, ok := UseCredit(user, sub, time.Now())
		assert.False(t, ok, "status %s", status)
		assert.Equal(t, sub, next, "denial must not touch the balance")
	}

	// an active subscription with the same balance still works
	sub := core.Subscription{UserID: "alice", PlanID: "plus", Status: core.SubscriptionActive, CreditsRemaining: 5}
	_, ok := UseCredit(user, sub, time.Now())
	assert.True(t, ok)
}

func TestUseCreditAdminDoesNotConsume(t *testing.T) {
	admin := core.RequestContext{UserID: "root", IsAdmin: true}
	sub := core.Subscription{UserID: "root", CreditsRemaining: 0, CreditsUsed: 0}

	next, ok := UseCredit(admin, sub, time.Now())
	assert.True(t, ok)
	assert.Equal(t, sub, next)
	assert.Equal(t, catalog.Unlimited, CreditsRemaining(admin, sub))
}
