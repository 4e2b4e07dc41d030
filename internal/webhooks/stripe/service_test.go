package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/pkg/db/dbtest"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/metrics"
	"github.com/curiomarket/curio-backend/pkg/redis/redistest"
	pkgstripe "github.com/curiomarket/curio-backend/pkg/stripe"
)

type stubSubscriptions struct {
	applied    []*pkgstripe.Subscription
	reconciled []uuid.UUID
	attached   []string
	failNext   error
}

func (s *stubSubscriptions) ApplyStripeSubscription(_ context.Context, sub *pkgstripe.Subscription) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	if sub.CustomerID == "cus_unknown" {
		return subscriptions.ErrUnknownCustomer
	}
	s.applied = append(s.applied, sub)
	return nil
}

func (s *stubSubscriptions) Reconcile(_ context.Context, userID uuid.UUID) (*subscriptions.StatusResult, error) {
	s.reconciled = append(s.reconciled, userID)
	return &subscriptions.StatusResult{}, nil
}

func (s *stubSubscriptions) AttachDefaultPaymentMethod(_ context.Context, customerID, paymentMethodID string) error {
	s.attached = append(s.attached, customerID+"/"+paymentMethodID)
	return nil
}

type stubUsers struct {
	byCustomer map[string]uuid.UUID
}

func (s *stubUsers) FindByStripeCustomerID(_ context.Context, customerID string) (*models.User, error) {
	id, ok := s.byCustomer[customerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.User{ID: id}, nil
}

type harness struct {
	svc    *Service
	subs   *stubSubscriptions
	events *EventRepository
	userID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rdb, _ := redistest.New(t)
	guard, err := NewIdempotencyGuard(rdb, time.Hour, "stripe_webhook")
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	events := NewEventRepository(dbtest.Open(t))
	subs := &stubSubscriptions{}
	userID := uuid.New()
	svc, err := NewService(ServiceParams{
		Subscriptions: subs,
		Users:         &stubUsers{byCustomer: map[string]uuid.UUID{"cus_1": userID}},
		Guard:         guard,
		Events:        events,
		Metrics:       metrics.NewBillingMetrics(nil),
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &harness{svc: svc, subs: subs, events: events, userID: userID}
}

func subscriptionEvent(t *testing.T, id, customerID, status string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"status":   status,
		"customer": customerID,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &stripe.Event{ID: id, Type: stripe.EventTypeCustomerSubscriptionUpdated, Data: &stripe.EventData{Raw: raw}}
}

func TestProcessDropsDuplicateDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event := subscriptionEvent(t, "evt_1", "cus_1", "active")

	outcome, err := h.svc.Process(ctx, event)
	if err != nil || outcome != metrics.OutcomeProcessed {
		t.Fatalf("first delivery: outcome=%s err=%v", outcome, err)
	}
	outcome, err = h.svc.Process(ctx, event)
	if err != nil || outcome != metrics.OutcomeDuplicate {
		t.Fatalf("second delivery: outcome=%s err=%v", outcome, err)
	}
	if len(h.subs.applied) != 1 {
		t.Fatalf("expected one apply, got %d", len(h.subs.applied))
	}
	if got := h.subs.applied[0]; got.ID != "sub_1" || got.Status != "active" || got.CustomerID != "cus_1" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	seen, err := h.events.Exists(ctx, "evt_1")
	if err != nil || !seen {
		t.Fatalf("expected durable record, seen=%v err=%v", seen, err)
	}
}

func TestProcessReleasesClaimOnFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event := subscriptionEvent(t, "evt_2", "cus_1", "active")
	h.subs.failNext = errors.New("db down")

	if outcome, err := h.svc.Process(ctx, event); err == nil || outcome != metrics.OutcomeFailed {
		t.Fatalf("expected failure, outcome=%s err=%v", outcome, err)
	}
	outcome, err := h.svc.Process(ctx, event)
	if err != nil || outcome != metrics.OutcomeProcessed {
		t.Fatalf("retry: outcome=%s err=%v", outcome, err)
	}
	if len(h.subs.applied) != 1 {
		t.Fatalf("expected retry to apply once, got %d", len(h.subs.applied))
	}
}

func TestProcessIgnoresUnknownCustomerAndTypes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	outcome, err := h.svc.Process(ctx, subscriptionEvent(t, "evt_3", "cus_unknown", "active"))
	if err != nil || outcome != metrics.OutcomeIgnored {
		t.Fatalf("unknown customer: outcome=%s err=%v", outcome, err)
	}
	other := &stripe.Event{ID: "evt_4", Type: stripe.EventTypeChargeRefunded, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	outcome, err = h.svc.Process(ctx, other)
	if err != nil || outcome != metrics.OutcomeIgnored {
		t.Fatalf("other type: outcome=%s err=%v", outcome, err)
	}
}

func TestProcessInvoicePaymentReconciles(t *testing.T) {
	h := newHarness(t)
	raw := []byte(`{"id":"in_1","object":"invoice","customer":"cus_1","parent":{"subscription_details":{"subscription":"sub_1"}}}`)
	var object map[string]any
	if err := json.Unmarshal(raw, &object); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	event := &stripe.Event{ID: "evt_5", Type: stripe.EventTypeInvoicePaymentSucceeded, Data: &stripe.EventData{Raw: raw, Object: object}}

	outcome, err := h.svc.Process(context.Background(), event)
	if err != nil || outcome != metrics.OutcomeProcessed {
		t.Fatalf("outcome=%s err=%v", outcome, err)
	}
	if len(h.subs.reconciled) != 1 || h.subs.reconciled[0] != h.userID {
		t.Fatalf("expected reconcile for %s, got %v", h.userID, h.subs.reconciled)
	}
}

func TestProcessSetupIntentAttachesDefault(t *testing.T) {
	h := newHarness(t)
	raw := []byte(`{"id":"seti_1","object":"setup_intent","status":"succeeded","customer":"cus_1","payment_method":"pm_1"}`)
	event := &stripe.Event{ID: "evt_6", Type: stripe.EventTypeSetupIntentSucceeded, Data: &stripe.EventData{Raw: raw}}

	outcome, err := h.svc.Process(context.Background(), event)
	if err != nil || outcome != metrics.OutcomeProcessed {
		t.Fatalf("outcome=%s err=%v", outcome, err)
	}
	if len(h.subs.attached) != 1 || h.subs.attached[0] != "cus_1/pm_1" {
		t.Fatalf("unexpected attach calls %v", h.subs.attached)
	}
}
