package subscriptions

import (
	"fmt"
	"strings"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// FromStripeStatus maps a processor subscription status onto the local enum.
func FromStripeStatus(status string) (enums.SubscriptionState, error) {
	raw := strings.ToLower(strings.TrimSpace(status))
	if raw == "" || raw == string(enums.SubscriptionStateNone) {
		return "", fmt.Errorf("unknown stripe subscription status %q", status)
	}
	state, err := enums.ParseSubscriptionState(raw)
	if err != nil {
		return "", fmt.Errorf("unknown stripe subscription status %q", status)
	}
	return state, nil
}

// CanTransition reports whether from may move to to under the state table.
func CanTransition(from, to enums.SubscriptionState) bool {
	return from.CanTransitionTo(to)
}

// transition is the outcome of comparing the stored state with a processor
// snapshot.
type transition struct {
	from           enums.SubscriptionState
	to             enums.SubscriptionState
	subscriptionID string
	// write is false when the snapshot changes nothing or is stale.
	write bool
	stale bool
}

// planTransition decides how a snapshot of subscriptionID in state next
// applies to a user currently holding currentID in state current.
//
// A different subscription id starts a fresh lifecycle, unless the stored
// subscription is still live and the snapshot is a terminal event for an
// older one. Terminal snapshots of the current subscription always apply.
// Everything else must follow the transition table.
func planTransition(current enums.SubscriptionState, currentID string, subscriptionID string, next enums.SubscriptionState) (transition, error) {
	if current == "" {
		current = enums.SubscriptionStateNone
	}
	t := transition{from: current, to: next, subscriptionID: subscriptionID}

	if currentID != "" && subscriptionID != currentID {
		if !current.IsTerminal() && current != enums.SubscriptionStateNone && next.IsTerminal() {
			t.to = current
			t.subscriptionID = currentID
			t.stale = true
			return t, nil
		}
		t.write = true
		return t, nil
	}

	if current == next && currentID == subscriptionID {
		return t, nil
	}
	if next.IsTerminal() || currentID == "" || CanTransition(current, next) {
		t.write = true
		return t, nil
	}
	return t, fmt.Errorf("subscription transition %s -> %s not allowed", current, next)
}
