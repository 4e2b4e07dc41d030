package stripe

import (
	"errors"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// ErrSignatureMissing is returned when the Stripe-Signature header is absent.
var ErrSignatureMissing = errors.New("stripe signature missing")

// ConstructEvent verifies the payload signature and decodes the event. API
// version mismatches are tolerated; the event body is decoded leniently.
func ConstructEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	if sigHeader == "" {
		return stripe.Event{}, ErrSignatureMissing
	}
	return webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// InvoiceSubscriptionID reads the subscription id off an invoice event, which
// moved under parent.subscription_details in newer API versions.
func InvoiceSubscriptionID(event *stripe.Event) string {
	if event == nil || event.Data == nil {
		return ""
	}
	if id := event.GetObjectValue("parent", "subscription_details", "subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("subscription")
}
