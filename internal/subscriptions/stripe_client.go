package subscriptions

import (
	"context"

	"github.com/curiomarket/curio-backend/pkg/stripe"
)

// StripeClient is the processor surface the subscription flow needs.
// *stripe.Client satisfies it.
type StripeClient interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*stripe.Customer, error)
	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	SetCustomerDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	CreateSubscription(ctx context.Context, in stripe.CreateSubscriptionInput) (*stripe.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	LatestSubscription(ctx context.Context, customerID string) (*stripe.Subscription, error)
	SetSubscriptionDefaultPaymentMethod(ctx context.Context, subscriptionID, paymentMethodID string) error
	CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*stripe.Subscription, error)
	GetSetupIntent(ctx context.Context, id string) (*stripe.SetupIntent, error)
	GetPaymentMethod(ctx context.Context, id string) (*stripe.PaymentMethod, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error
	ListCards(ctx context.Context, customerID string) ([]stripe.PaymentMethod, error)
	ListOpenInvoices(ctx context.Context, subscriptionID string) ([]stripe.Invoice, error)
	PayInvoice(ctx context.Context, invoiceID, idempotencyKey string) (*stripe.Invoice, error)
}

var _ StripeClient = (*stripe.Client)(nil)
