package stripe

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v84"
)

// ErrNotFound is returned when Stripe reports the object does not exist.
var ErrNotFound = errors.New("stripe resource not found")

const (
	IntentSetup   = "setup"
	IntentPayment = "payment"
)

// Customer is the subset of a Stripe customer the marketplace reads.
type Customer struct {
	ID                     string
	Email                  string
	DefaultPaymentMethodID string
}

// Subscription is a processor-side subscription snapshot.
type Subscription struct {
	ID                     string
	CustomerID             string
	Status                 string
	CancelAtPeriodEnd      bool
	CurrentPeriodEnd       *time.Time
	DefaultPaymentMethodID string
	ClientSecret           string
	IntentType             string
	Metadata               map[string]string
	Created                time.Time
}

// Invoice is the subset of an invoice needed to settle it.
type Invoice struct {
	ID     string
	Status string
}

// PaymentMethod is a saved card.
type PaymentMethod struct {
	ID         string
	CustomerID string
	Brand      string
	Last4      string
}

// SetupIntent is the result of the client-side card collection step.
type SetupIntent struct {
	ID              string
	Status          string
	CustomerID      string
	PaymentMethodID string
}

// CreateSubscriptionInput drives CreateSubscription.
type CreateSubscriptionInput struct {
	CustomerID     string
	PriceID        string
	Metadata       map[string]string
	IdempotencyKey string
}

// CreateCustomer registers a customer with user metadata.
func (c *Client) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*Customer, error) {
	params := &stripe.CustomerCreateParams{Metadata: metadata}
	if email != "" {
		params.Email = stripe.String(email)
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	cust, err := c.api.V1Customers.Create(ctx, params)
	if err != nil {
		return nil, mapErr(err)
	}
	return customerFrom(cust), nil
}

// GetCustomer returns the customer including its invoice default payment method.
func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	params := &stripe.CustomerRetrieveParams{}
	params.AddExpand("invoice_settings.default_payment_method")
	cust, err := c.api.V1Customers.Retrieve(ctx, id, params)
	if err != nil {
		return nil, mapErr(err)
	}
	if cust.Deleted {
		return nil, ErrNotFound
	}
	return customerFrom(cust), nil
}

// SetCustomerDefaultPaymentMethod updates invoice_settings.default_payment_method.
func (c *Client) SetCustomerDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	_, err := c.api.V1Customers.Update(ctx, customerID, &stripe.CustomerUpdateParams{
		InvoiceSettings: &stripe.CustomerUpdateInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	})
	return mapErr(err)
}

// CreateSubscription starts a default_incomplete subscription whose first
// invoice (or setup intent) is confirmed by the client.
func (c *Client) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*Subscription, error) {
	priceID := in.PriceID
	if priceID == "" {
		priceID = c.priceID
	}
	params := &stripe.SubscriptionCreateParams{
		Customer:        stripe.String(in.CustomerID),
		Items:           []*stripe.SubscriptionCreateItemParams{{Price: stripe.String(priceID)}},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionCreatePaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
		Metadata: in.Metadata,
	}
	params.AddExpand("latest_invoice.confirmation_secret")
	params.AddExpand("pending_setup_intent")
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	sub, err := c.api.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return nil, mapErr(err)
	}
	return SubscriptionFrom(sub), nil
}

// GetSubscription retrieves a subscription with its pending client secret expanded.
func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionRetrieveParams{}
	params.AddExpand("latest_invoice.confirmation_secret")
	params.AddExpand("pending_setup_intent")
	sub, err := c.api.V1Subscriptions.Retrieve(ctx, id, params)
	if err != nil {
		return nil, mapErr(err)
	}
	return SubscriptionFrom(sub), nil
}

// LatestSubscription returns the most recently created subscription of the
// customer in any status, or ErrNotFound.
func (c *Client) LatestSubscription(ctx context.Context, customerID string) (*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(10)
	var latest *Subscription
	for sub, err := range c.api.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return nil, mapErr(err)
		}
		candidate := SubscriptionFrom(sub)
		if latest == nil || candidate.Created.After(latest.Created) {
			latest = candidate
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// SetSubscriptionDefaultPaymentMethod updates the subscription's default_payment_method.
func (c *Client) SetSubscriptionDefaultPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) error {
	_, err := c.api.V1Subscriptions.Update(ctx, subscriptionID, &stripe.SubscriptionUpdateParams{
		DefaultPaymentMethod: stripe.String(paymentMethodID),
	})
	return mapErr(err)
}

// CancelSubscription cancels now or flags cancel_at_period_end.
func (c *Client) CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*Subscription, error) {
	if atPeriodEnd {
		sub, err := c.api.V1Subscriptions.Update(ctx, id, &stripe.SubscriptionUpdateParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		})
		if err != nil {
			return nil, mapErr(err)
		}
		return SubscriptionFrom(sub), nil
	}
	sub, err := c.api.V1Subscriptions.Cancel(ctx, id, &stripe.SubscriptionCancelParams{})
	if err != nil {
		return nil, mapErr(err)
	}
	return SubscriptionFrom(sub), nil
}

// GetSetupIntent retrieves a setup intent.
func (c *Client) GetSetupIntent(ctx context.Context, id string) (*SetupIntent, error) {
	si, err := c.api.V1SetupIntents.Retrieve(ctx, id, &stripe.SetupIntentRetrieveParams{})
	if err != nil {
		return nil, mapErr(err)
	}
	out := &SetupIntent{ID: si.ID, Status: string(si.Status)}
	if si.Customer != nil {
		out.CustomerID = si.Customer.ID
	}
	if si.PaymentMethod != nil {
		out.PaymentMethodID = si.PaymentMethod.ID
	}
	return out, nil
}

// GetPaymentMethod retrieves a payment method.
func (c *Client) GetPaymentMethod(ctx context.Context, id string) (*PaymentMethod, error) {
	pm, err := c.api.V1PaymentMethods.Retrieve(ctx, id, &stripe.PaymentMethodRetrieveParams{})
	if err != nil {
		return nil, mapErr(err)
	}
	return paymentMethodFrom(pm), nil
}

// AttachPaymentMethod attaches a payment method to the customer.
func (c *Client) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error {
	_, err := c.api.V1PaymentMethods.Attach(ctx, paymentMethodID, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	})
	return mapErr(err)
}

// ListCards returns the customer's saved cards.
func (c *Client) ListCards(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	var out []PaymentMethod
	for pm, err := range c.api.V1PaymentMethods.List(ctx, params) {
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, *paymentMethodFrom(pm))
	}
	return out, nil
}

// ListOpenInvoices returns the open invoices of a subscription.
func (c *Client) ListOpenInvoices(ctx context.Context, subscriptionID string) ([]Invoice, error) {
	params := &stripe.InvoiceListParams{
		Subscription: stripe.String(subscriptionID),
		Status:       stripe.String(string(stripe.InvoiceStatusOpen)),
	}
	var out []Invoice
	for inv, err := range c.api.V1Invoices.List(ctx, params) {
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, Invoice{ID: inv.ID, Status: string(inv.Status)})
	}
	return out, nil
}

// PayInvoice attempts payment with the supplied idempotency key.
func (c *Client) PayInvoice(ctx context.Context, invoiceID, idempotencyKey string) (*Invoice, error) {
	params := &stripe.InvoicePayParams{}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	inv, err := c.api.V1Invoices.Pay(ctx, invoiceID, params)
	if err != nil {
		return nil, mapErr(err)
	}
	return &Invoice{ID: inv.ID, Status: string(inv.Status)}, nil
}

// SubscriptionFrom flattens a Stripe subscription, including one decoded from
// a webhook payload.
func SubscriptionFrom(sub *stripe.Subscription) *Subscription {
	if sub == nil {
		return nil
	}
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Created > 0 {
		out.Created = time.Unix(sub.Created, 0).UTC()
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethodID = sub.DefaultPaymentMethod.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd > 0 {
		end := time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	switch {
	case sub.PendingSetupIntent != nil && sub.PendingSetupIntent.ClientSecret != "":
		out.ClientSecret = sub.PendingSetupIntent.ClientSecret
		out.IntentType = IntentSetup
	case sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil:
		out.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
		out.IntentType = IntentPayment
	}
	return out
}

func customerFrom(cust *stripe.Customer) *Customer {
	out := &Customer{ID: cust.ID, Email: cust.Email}
	if cust.InvoiceSettings != nil && cust.InvoiceSettings.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethodID = cust.InvoiceSettings.DefaultPaymentMethod.ID
	}
	return out
}

func paymentMethodFrom(pm *stripe.PaymentMethod) *PaymentMethod {
	out := &PaymentMethod{ID: pm.ID}
	if pm.Customer != nil {
		out.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
	}
	return out
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if errors.As(err, &se) && se.Code == stripe.ErrorCodeResourceMissing {
		return errors.Join(ErrNotFound, err)
	}
	return err
}
