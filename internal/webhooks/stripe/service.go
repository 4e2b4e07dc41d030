package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/metrics"
	pkgstripe "github.com/curiomarket/curio-backend/pkg/stripe"
)

// subscriptionWriter is the part of the subscription service webhooks drive.
type subscriptionWriter interface {
	ApplyStripeSubscription(ctx context.Context, sub *pkgstripe.Subscription) error
	Reconcile(ctx context.Context, userID uuid.UUID) (*subscriptions.StatusResult, error)
	AttachDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
}

type customerLookup interface {
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type eventLog interface {
	Exists(ctx context.Context, stripeEventID string) (bool, error)
	Record(ctx context.Context, stripeEventID, eventType string, userID *uuid.UUID, processedAt time.Time) error
}

type ServiceParams struct {
	Subscriptions subscriptionWriter
	Users         customerLookup
	Guard         eventGuard
	Events        eventLog
	Metrics       *metrics.BillingMetrics
	Logger        *logger.Logger
	Now           func() time.Time
}

// Service turns verified Stripe events into subscription writes, once per event.
type Service struct {
	subs    subscriptionWriter
	users   customerLookup
	guard   eventGuard
	events  eventLog
	metrics *metrics.BillingMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription service required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event log required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		subs:    params.Subscriptions,
		users:   params.Users,
		guard:   params.Guard,
		events:  params.Events,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Process handles a verified event and returns its metrics outcome. A failed
// event releases its claim so Stripe's retry is processed.
func (s *Service) Process(ctx context.Context, event *stripe.Event) (string, error) {
	if event == nil || event.ID == "" || event.Data == nil {
		return metrics.OutcomeFailed, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)
	ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": eventType})

	outcome, err := s.process(ctx, event)
	s.metrics.ObserveWebhook(eventType, outcome)
	return outcome, err
}

func (s *Service) process(ctx context.Context, event *stripe.Event) (string, error) {
	duplicate, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		return metrics.OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency")
	}
	if duplicate {
		s.logg.Info(ctx, "duplicate stripe event dropped")
		return metrics.OutcomeDuplicate, nil
	}
	seen, err := s.events.Exists(ctx, event.ID)
	if err != nil {
		_ = s.guard.Release(ctx, event.ID)
		return metrics.OutcomeFailed, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check webhook log")
	}
	if seen {
		return metrics.OutcomeDuplicate, nil
	}

	handled, userID, err := s.handle(ctx, event)
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		// Stale for good: retrying would hit the same conflict.
		s.logg.Warn(ctx, "stale stripe event acknowledged without a write")
		if err := s.events.Record(ctx, event.ID, string(event.Type), userID, s.now().UTC()); err != nil {
			s.logg.Error(ctx, "record stripe event failed", err)
		}
		return metrics.OutcomeStale, nil
	}
	if err != nil {
		if releaseErr := s.guard.Release(ctx, event.ID); releaseErr != nil {
			s.logg.Error(ctx, "release webhook claim failed", releaseErr)
		}
		s.logg.Error(ctx, "stripe event handling failed", err)
		return metrics.OutcomeFailed, err
	}
	if !handled {
		return metrics.OutcomeIgnored, nil
	}
	if err := s.events.Record(ctx, event.ID, string(event.Type), userID, s.now().UTC()); err != nil {
		s.logg.Error(ctx, "record stripe event failed", err)
	}
	s.logg.Info(ctx, "stripe event processed")
	return metrics.OutcomeProcessed, nil
}

// handle dispatches on type. handled is false for events that are acknowledged
// without any write.
func (s *Service) handle(ctx context.Context, event *stripe.Event) (bool, *uuid.UUID, error) {
	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var raw stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
			return false, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		sub := pkgstripe.SubscriptionFrom(&raw)
		if err := s.subs.ApplyStripeSubscription(ctx, sub); err != nil {
			if errors.Is(err, subscriptions.ErrUnknownCustomer) {
				return false, nil, nil
			}
			return false, nil, err
		}
		return true, s.userFor(ctx, sub.CustomerID), nil

	case stripe.EventTypeSetupIntentSucceeded:
		var intent stripe.SetupIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return false, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode setup intent event")
		}
		if intent.Customer == nil || intent.Customer.ID == "" {
			return false, nil, nil
		}
		paymentMethodID := ""
		if intent.PaymentMethod != nil {
			paymentMethodID = intent.PaymentMethod.ID
		}
		if err := s.subs.AttachDefaultPaymentMethod(ctx, intent.Customer.ID, paymentMethodID); err != nil {
			if errors.Is(err, subscriptions.ErrUnknownCustomer) {
				return false, nil, nil
			}
			return false, nil, err
		}
		return true, s.userFor(ctx, intent.Customer.ID), nil

	case stripe.EventTypeInvoicePaymentSucceeded:
		if pkgstripe.InvoiceSubscriptionID(event) == "" {
			return false, nil, nil
		}
		userID := s.userFor(ctx, event.GetObjectValue("customer"))
		if userID == nil {
			return false, nil, nil
		}
		if _, err := s.subs.Reconcile(ctx, *userID); err != nil {
			return false, nil, fmt.Errorf("reconcile after invoice payment: %w", err)
		}
		return true, userID, nil

	default:
		return false, nil, nil
	}
}

func (s *Service) userFor(ctx context.Context, customerID string) *uuid.UUID {
	if customerID == "" {
		return nil
	}
	user, err := s.users.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if !db.IsNotFound(err) {
			s.logg.Error(ctx, "lookup user by customer failed", err)
		}
		return nil
	}
	return &user.ID
}
