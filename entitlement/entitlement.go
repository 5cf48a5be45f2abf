// Package entitlement answers access-control questions by combining
// plan limits with admin overrides. Everything here is a pure function
// over snapshots; state changes are returned, never applied in place.
package entitlement

import (
	"time"

	"clearspace/catalog"
	"clearspace/core"
)

// HasFeature reports whether the user may access a boolean feature.
// The admin override is evaluated first and short-circuits plan logic.
func HasFeature(rctx core.RequestContext, plan catalog.Plan, feature string) bool {
	if rctx.HasPermission(feature) {
		return true
	}
	switch feature {
	case catalog.FeatureAIDesigner:
		return plan.Limits.AIDesigner
	case catalog.FeatureUnlimitedContent:
		return plan.Limits.Tasks == catalog.Unlimited && plan.Limits.Articles == catalog.Unlimited
	default:
		return false
	}
}

// CanAdd reports whether one more item of the content type may be
// accessed given the user's current count. Admin override grants
// unlimited access.
func CanAdd(rctx core.RequestContext, plan catalog.Plan, current int64, ct catalog.ContentType) bool {
	if rctx.HasPermission(catalog.FeatureUnlimitedContent) {
		return true
	}
	limit := plan.Limit(ct)
	if limit == catalog.Unlimited {
		return true
	}
	return current < limit
}

// CreditsRemaining answers how many AI-design credits the user has
// left. catalog.Unlimited signals an admin with no cap.
func CreditsRemaining(rctx core.RequestContext, sub core.Subscription) int64 {
	if rctx.HasPermission(catalog.FeatureAIDesigner) {
		return catalog.Unlimited
	}
	return sub.CreditsRemaining
}

// UseCredit consumes one AI-design credit. It returns the updated
// subscription snapshot and whether the use succeeded. With no credits
// and no override it fails leaving the snapshot unchanged; a past-due
// or canceled subscription is denied even with credits on the books; an
// admin use succeeds without consuming anything. Counters move together
// so used+remaining is conserved.
func UseCredit(rctx core.RequestContext, sub core.Subscription, now time.Time) (core.Subscription, bool) {
	if rctx.HasPermission(catalog.FeatureAIDesigner) {
		return sub, true
	}
	if sub.Lapsed() {
		return sub, false
	}
	if sub.CreditsRemaining <= 0 {
		return sub, false
	}
	sub.CreditsRemaining--
	sub.CreditsUsed++
	sub.Updated = now.UTC()
	return sub, true
}
