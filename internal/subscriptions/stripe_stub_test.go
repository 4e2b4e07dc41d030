package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/curiomarket/curio-backend/pkg/stripe"
)

type stubStripe struct {
	mu sync.Mutex

	customers      map[string]*stripe.Customer
	subs           map[string]*stripe.Subscription
	setupIntents   map[string]*stripe.SetupIntent
	paymentMethods map[string]*stripe.PaymentMethod
	invoices       map[string][]stripe.Invoice

	createCustomerCalls int
	createSubCalls      int
	attachCalls         int
	payCalls            int
	subDefaultCalls     int
	idempotencyKeys     []string
	getSubErr           error
	seq                 int
}

func newStubStripe() *stubStripe {
	return &stubStripe{
		customers:      map[string]*stripe.Customer{},
		subs:           map[string]*stripe.Subscription{},
		setupIntents:   map[string]*stripe.SetupIntent{},
		paymentMethods: map[string]*stripe.PaymentMethod{},
		invoices:       map[string][]stripe.Invoice{},
	}
}

func (s *stubStripe) next(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func (s *stubStripe) CreateCustomer(_ context.Context, email, _ string, _ map[string]string) (*stripe.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCustomerCalls++
	cust := &stripe.Customer{ID: s.next("cus"), Email: email}
	s.customers[cust.ID] = cust
	return cust, nil
}

func (s *stubStripe) GetCustomer(_ context.Context, id string) (*stripe.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cust, ok := s.customers[id]
	if !ok {
		return nil, stripe.ErrNotFound
	}
	copied := *cust
	return &copied, nil
}

func (s *stubStripe) SetCustomerDefaultPaymentMethod(_ context.Context, customerID, paymentMethodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cust, ok := s.customers[customerID]
	if !ok {
		return stripe.ErrNotFound
	}
	cust.DefaultPaymentMethodID = paymentMethodID
	return nil
}

func (s *stubStripe) CreateSubscription(_ context.Context, in stripe.CreateSubscriptionInput) (*stripe.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createSubCalls++
	s.idempotencyKeys = append(s.idempotencyKeys, in.IdempotencyKey)
	sub := &stripe.Subscription{
		ID:           s.next("sub"),
		CustomerID:   in.CustomerID,
		Status:       "incomplete",
		ClientSecret: "seti_secret",
		IntentType:   stripe.IntentSetup,
		Metadata:     in.Metadata,
		Created:      time.Now().Add(time.Duration(s.seq) * time.Second),
	}
	s.subs[sub.ID] = sub
	s.invoices[sub.ID] = []stripe.Invoice{{ID: s.next("in"), Status: "open"}}
	copied := *sub
	return &copied, nil
}

func (s *stubStripe) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getSubErr != nil {
		return nil, s.getSubErr
	}
	sub, ok := s.subs[id]
	if !ok {
		return nil, stripe.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (s *stubStripe) LatestSubscription(_ context.Context, customerID string) (*stripe.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getSubErr != nil {
		return nil, s.getSubErr
	}
	var latest *stripe.Subscription
	for _, sub := range s.subs {
		if sub.CustomerID != customerID {
			continue
		}
		if latest == nil || sub.Created.After(latest.Created) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, stripe.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *stubStripe) SetSubscriptionDefaultPaymentMethod(_ context.Context, subscriptionID, paymentMethodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subDefaultCalls++
	sub, ok := s.subs[subscriptionID]
	if !ok {
		return stripe.ErrNotFound
	}
	sub.DefaultPaymentMethodID = paymentMethodID
	return nil
}

func (s *stubStripe) CancelSubscription(_ context.Context, id string, atPeriodEnd bool) (*stripe.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, stripe.ErrNotFound
	}
	if atPeriodEnd {
		sub.CancelAtPeriodEnd = true
	} else {
		sub.Status = "canceled"
	}
	copied := *sub
	return &copied, nil
}

func (s *stubStripe) GetSetupIntent(_ context.Context, id string) (*stripe.SetupIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	si, ok := s.setupIntents[id]
	if !ok {
		return nil, stripe.ErrNotFound
	}
	copied := *si
	return &copied, nil
}

func (s *stubStripe) GetPaymentMethod(_ context.Context, id string) (*stripe.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm, ok := s.paymentMethods[id]
	if !ok {
		return nil, stripe.ErrNotFound
	}
	copied := *pm
	return &copied, nil
}

func (s *stubStripe) AttachPaymentMethod(_ context.Context, paymentMethodID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachCalls++
	pm, ok := s.paymentMethods[paymentMethodID]
	if !ok {
		return stripe.ErrNotFound
	}
	if pm.CustomerID != "" {
		return errors.New("payment method already attached")
	}
	pm.CustomerID = customerID
	return nil
}

func (s *stubStripe) ListCards(_ context.Context, customerID string) ([]stripe.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stripe.PaymentMethod
	for _, pm := range s.paymentMethods {
		if pm.CustomerID == customerID {
			out = append(out, *pm)
		}
	}
	return out, nil
}

func (s *stubStripe) ListOpenInvoices(_ context.Context, subscriptionID string) ([]stripe.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stripe.Invoice
	for _, inv := range s.invoices[subscriptionID] {
		if inv.Status == "open" {
			out = append(out, inv)
		}
	}
	return out, nil
}

// PayInvoice charges only when the subscription has a default payment
// method, and activates the subscription once nothing is left open.
func (s *stubStripe) PayInvoice(_ context.Context, invoiceID, idempotencyKey string) (*stripe.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for subID, invoices := range s.invoices {
		for i := range invoices {
			if invoices[i].ID != invoiceID {
				continue
			}
			sub := s.subs[subID]
			if sub.DefaultPaymentMethodID == "" {
				return nil, errors.New("no payment method")
			}
			if invoices[i].Status != "paid" {
				s.payCalls++
				s.idempotencyKeys = append(s.idempotencyKeys, idempotencyKey)
				invoices[i].Status = "paid"
			}
			sub.Status = "active"
			inv := invoices[i]
			return &inv, nil
		}
	}
	return nil, stripe.ErrNotFound
}

// confirmCard simulates the browser confirming a setup intent.
func (s *stubStripe) confirmCard(customerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm := &stripe.PaymentMethod{ID: s.next("pm"), Brand: "visa", Last4: "4242"}
	s.paymentMethods[pm.ID] = pm
	si := &stripe.SetupIntent{ID: s.next("seti"), Status: "succeeded", CustomerID: customerID, PaymentMethodID: pm.ID}
	s.setupIntents[si.ID] = si
	return si.ID
}

var _ StripeClient = (*stubStripe)(nil)
