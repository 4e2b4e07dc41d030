package stripe

import (
	"encoding/json"
	"testing"

	"github.com/stripe/stripe-go/v84"
)

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != testEnv {
		t.Fatalf("expected default test env, got %q err=%v", env, err)
	}
	if env, err := normalizeEnv(" LIVE "); err != nil || env != liveEnv {
		t.Fatalf("expected live env, got %q err=%v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatalf("expected invalid env error")
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := validateAPIKey(testEnv, "sk_test_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validateAPIKey(testEnv, "sk_live_123"); err == nil {
		t.Fatalf("expected live key rejected in test env")
	}
	if err := validateAPIKey(liveEnv, "rk_live_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubscriptionFromPrefersSetupIntent(t *testing.T) {
	sub := &stripe.Subscription{
		ID:       "sub_1",
		Status:   stripe.SubscriptionStatusIncomplete,
		Customer: &stripe.Customer{ID: "cus_1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{CurrentPeriodEnd: 1700000000}},
		},
		PendingSetupIntent: &stripe.SetupIntent{ClientSecret: "seti_secret"},
		LatestInvoice: &stripe.Invoice{
			ConfirmationSecret: &stripe.InvoiceConfirmationSecret{ClientSecret: "pi_secret"},
		},
	}
	out := SubscriptionFrom(sub)
	if out.CustomerID != "cus_1" || out.Status != "incomplete" {
		t.Fatalf("unexpected flatten %+v", out)
	}
	if out.ClientSecret != "seti_secret" || out.IntentType != IntentSetup {
		t.Fatalf("expected setup intent secret, got %q/%q", out.ClientSecret, out.IntentType)
	}
	if out.CurrentPeriodEnd == nil || out.CurrentPeriodEnd.Unix() != 1700000000 {
		t.Fatalf("period end not mapped")
	}

	sub.PendingSetupIntent = nil
	out = SubscriptionFrom(sub)
	if out.ClientSecret != "pi_secret" || out.IntentType != IntentPayment {
		t.Fatalf("expected payment intent secret, got %q/%q", out.ClientSecret, out.IntentType)
	}
}

func TestInvoiceSubscriptionID(t *testing.T) {
	raw := json.RawMessage(`{"id":"in_1","parent":{"subscription_details":{"subscription":"sub_9"}}}`)
	event := &stripe.Event{Data: &stripe.EventData{Raw: raw}}
	if err := json.Unmarshal(raw, &event.Data.Object); err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if got := InvoiceSubscriptionID(event); got != "sub_9" {
		t.Fatalf("expected sub_9, got %q", got)
	}

	legacy := json.RawMessage(`{"id":"in_2","subscription":"sub_legacy"}`)
	event = &stripe.Event{Data: &stripe.EventData{Raw: legacy}}
	if err := json.Unmarshal(legacy, &event.Data.Object); err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if got := InvoiceSubscriptionID(event); got != "sub_legacy" {
		t.Fatalf("expected sub_legacy, got %q", got)
	}
}
