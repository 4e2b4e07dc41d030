package subscriptions

import (
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/stripe"
)

// accessInputs is everything decideAccess looks at.
type accessInputs struct {
	Role           enums.UserRole
	TrustLocalRole bool
	Subscription   *stripe.Subscription
	// SavedCardAttached is set on the second pass after a saved card was
	// made the subscription default.
	SavedCardAttached bool
}

type accessDecision struct {
	Active bool
	Reason AccessReason
	// TryAttachSavedCard asks the caller to attach a saved card and decide again.
	TryAttachSavedCard bool
}

// decideAccess applies the access precedence in order:
//  1. trusted local seller role
//  2. processor subscription active or trialing
//  3. incomplete with a default payment method
//  4. incomplete without one: attach a saved card, then re-check 2 and 3
//  5. otherwise no access
func decideAccess(in accessInputs) accessDecision {
	if in.TrustLocalRole && in.Role == enums.UserRoleSeller {
		return accessDecision{Active: true, Reason: ReasonLocalRole}
	}
	sub := in.Subscription
	if sub == nil {
		return accessDecision{Reason: ReasonNoActiveSubscription}
	}
	state, err := FromStripeStatus(sub.Status)
	if err != nil {
		return accessDecision{Reason: ReasonNoActiveSubscription}
	}
	active := func(reason AccessReason) accessDecision {
		if in.SavedCardAttached {
			reason = ReasonAttachedSavedCard
		}
		return accessDecision{Active: true, Reason: reason}
	}
	if state.GrantsAccess() {
		return active(ReasonSubscriptionActive)
	}
	if state == enums.SubscriptionStateIncomplete {
		if sub.DefaultPaymentMethodID != "" {
			return active(ReasonPaymentMethodAttached)
		}
		if !in.SavedCardAttached {
			return accessDecision{Reason: ReasonNoActiveSubscription, TryAttachSavedCard: true}
		}
	}
	return accessDecision{Reason: ReasonNoActiveSubscription}
}
