package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/users"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/metrics"
	"github.com/curiomarket/curio-backend/pkg/outbox"
	"github.com/curiomarket/curio-backend/pkg/outbox/payloads"
	"github.com/curiomarket/curio-backend/pkg/redis"
	"github.com/curiomarket/curio-backend/pkg/stripe"
)

// ErrUnknownCustomer is returned when a processor object maps to no user.
var ErrUnknownCustomer = errors.New("no user for stripe customer")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns seller billing state. Every write of subscription_state,
// stripe_subscription_id and the seller role grant goes through apply.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID) (*CreateResult, error)
	Activate(ctx context.Context, userID uuid.UUID, setupIntentID string) (*StatusResult, error)
	StatusCheck(ctx context.Context, userID uuid.UUID) (*StatusResult, error)
	Cancel(ctx context.Context, userID uuid.UUID, atPeriodEnd bool) (*StatusResult, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (*StatusResult, error)
	ApplyStripeSubscription(ctx context.Context, sub *stripe.Subscription) error
	AttachDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Users                *users.Repository
	Stripe               StripeClient
	Locker               redis.Locker
	Outbox               outbox.Emitter
	TransactionRunner    txRunner
	Metrics              *metrics.BillingMetrics
	Logger               *logger.Logger
	PriceID              string
	LockTTL              time.Duration
	TrustLocalSellerRole bool
	Now                  func() time.Time
}

type service struct {
	users     *users.Repository
	stripe    StripeClient
	lock      *userLock
	outbox    outbox.Emitter
	tx        txRunner
	metrics   *metrics.BillingMetrics
	logg      *logger.Logger
	priceID   string
	trustRole bool
	now       func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users repo required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(params.PriceID) == "" {
		return nil, fmt.Errorf("subscription price id required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:     params.Users,
		stripe:    params.Stripe,
		lock:      newUserLock(params.Locker, params.LockTTL),
		outbox:    params.Outbox,
		tx:        params.TransactionRunner,
		metrics:   params.Metrics,
		logg:      params.Logger,
		priceID:   strings.TrimSpace(params.PriceID),
		trustRole: params.TrustLocalSellerRole,
		now:       now,
	}, nil
}

// Create returns the live subscription's pending client secret, or starts a
// default_incomplete subscription for the configured price.
func (s *service) Create(ctx context.Context, userID uuid.UUID) (*CreateResult, error) {
	var result *CreateResult
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		customerID, created, err := s.ensureCustomer(ctx, user)
		if err != nil {
			return err
		}

		existing, err := s.currentSubscription(ctx, user, customerID, !created)
		if err != nil {
			return err
		}
		if existing != nil {
			state, _ := FromStripeStatus(existing.Status)
			if !state.IsTerminal() {
				if _, err := s.applyLocked(ctx, userID, existing); err != nil {
					return err
				}
				result = createResultFrom(existing, state)
				return nil
			}
		}

		key := fmt.Sprintf("create-sub-%s-%s", userID, customerID)
		if existing != nil {
			key += "-" + existing.ID
		}
		sub, err := s.stripe.CreateSubscription(ctx, stripe.CreateSubscriptionInput{
			CustomerID:     customerID,
			PriceID:        s.priceID,
			Metadata:       map[string]string{"user_id": userID.String()},
			IdempotencyKey: key,
		})
		if err != nil {
			return s.dependencyErr(ctx, err, "create subscription")
		}
		if _, err := s.applyLocked(ctx, userID, sub); err != nil {
			return err
		}
		state, _ := FromStripeStatus(sub.Status)
		result = createResultFrom(sub, state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Activate finishes card collection: it attaches the setup intent's payment
// method, makes it the default, settles open invoices and applies the
// resulting subscription. Repeating it performs no further attach or charge.
func (s *service) Activate(ctx context.Context, userID uuid.UUID, setupIntentID string) (*StatusResult, error) {
	setupIntentID = strings.TrimSpace(setupIntentID)
	if setupIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "setup intent id is required")
	}

	var result *StatusResult
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		customerID := deref(user.StripeCustomerID)
		if customerID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "no billing customer; create a subscription first")
		}

		intent, err := s.stripe.GetSetupIntent(ctx, setupIntentID)
		if err != nil {
			if errors.Is(err, stripe.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "setup intent not found")
			}
			return s.dependencyErr(ctx, err, "retrieve setup intent")
		}
		if intent.CustomerID != customerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "setup intent does not belong to this account")
		}
		if intent.Status != "succeeded" {
			return pkgerrors.New(pkgerrors.CodeValidation, "setup intent has not succeeded").
				WithDetails(map[string]any{"status": intent.Status})
		}
		if intent.PaymentMethodID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "setup intent has no payment method")
		}

		if err := s.attachIfNeeded(ctx, customerID, intent.PaymentMethodID); err != nil {
			return err
		}

		sub, err := s.currentSubscription(ctx, user, customerID, true)
		if err != nil {
			return err
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no subscription to activate")
		}
		if err := s.ensureDefaults(ctx, customerID, sub, intent.PaymentMethodID); err != nil {
			return err
		}
		s.payOpenInvoices(ctx, sub.ID)

		sub, err = s.stripe.GetSubscription(ctx, sub.ID)
		if err != nil {
			return s.dependencyErr(ctx, err, "retrieve subscription")
		}
		user, err = s.applyLocked(ctx, userID, sub)
		if err != nil {
			return err
		}
		result = s.statusFrom(user, sub, decideAccess(accessInputs{
			Role:           user.Role,
			TrustLocalRole: s.trustRole,
			Subscription:   sub,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StatusCheck answers whether the user has seller billing access. Processor
// failures fall back to the local role and mark the result degraded.
func (s *service) StatusCheck(ctx context.Context, userID uuid.UUID) (*StatusResult, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	in := accessInputs{Role: user.Role, TrustLocalRole: s.trustRole}
	if decision := decideAccess(in); decision.Active {
		return s.statusFrom(user, nil, decision), nil
	}

	customerID := deref(user.StripeCustomerID)
	if customerID == "" {
		return s.statusFrom(user, nil, decideAccess(in)), nil
	}
	sub, err := s.currentSubscription(ctx, user, customerID, true)
	if err != nil {
		return s.degraded(ctx, user, err), nil
	}
	in.Subscription = sub
	decision := decideAccess(in)
	if !decision.TryAttachSavedCard {
		return s.statusFrom(user, sub, decision), nil
	}
	return s.attachSavedCard(ctx, userID, customerID, in)
}

// attachSavedCard makes the customer's first saved card the subscription
// default and decides again. It holds the user lock for the whole sequence so
// it cannot interleave with Activate picking a different card.
func (s *service) attachSavedCard(ctx context.Context, userID uuid.UUID, customerID string, in accessInputs) (*StatusResult, error) {
	var result *StatusResult
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		sub, err := s.currentSubscription(ctx, user, customerID, true)
		if err != nil {
			result = s.degraded(ctx, user, err)
			return nil
		}
		in.Role = user.Role
		in.Subscription = sub
		decision := decideAccess(in)
		if !decision.TryAttachSavedCard {
			result = s.statusFrom(user, sub, decision)
			return nil
		}

		cards, err := s.stripe.ListCards(ctx, customerID)
		if err != nil {
			result = s.degraded(ctx, user, err)
			return nil
		}
		if len(cards) == 0 {
			result = s.statusFrom(user, sub, decision)
			return nil
		}
		if err := s.stripe.SetSubscriptionDefaultPaymentMethod(ctx, sub.ID, cards[0].ID); err != nil {
			result = s.degraded(ctx, user, err)
			return nil
		}
		refreshed, err := s.stripe.GetSubscription(ctx, sub.ID)
		if err != nil {
			result = s.degraded(ctx, user, err)
			return nil
		}
		updated, err := s.applyLocked(ctx, userID, refreshed)
		if err != nil {
			return err
		}
		in.Role = updated.Role
		in.Subscription = refreshed
		in.SavedCardAttached = true
		result = s.statusFrom(updated, refreshed, decideAccess(in))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel cancels the processor subscription now or at period end.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, atPeriodEnd bool) (*StatusResult, error) {
	var result *StatusResult
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		subID := deref(user.StripeSubscriptionID)
		if subID == "" || user.SubscriptionState.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
		}
		sub, err := s.stripe.CancelSubscription(ctx, subID, atPeriodEnd)
		if err != nil {
			return s.dependencyErr(ctx, err, "cancel subscription")
		}
		user, err = s.applyLocked(ctx, userID, sub)
		if err != nil {
			return err
		}
		result = s.statusFrom(user, sub, decideAccess(accessInputs{
			Role:           user.Role,
			TrustLocalRole: s.trustRole,
			Subscription:   sub,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reconcile re-reads the processor subscription and applies it.
func (s *service) Reconcile(ctx context.Context, userID uuid.UUID) (*StatusResult, error) {
	var result *StatusResult
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		user, err := s.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		customerID := deref(user.StripeCustomerID)
		if customerID == "" && deref(user.StripeSubscriptionID) == "" {
			result = s.statusFrom(user, nil, decideAccess(accessInputs{Role: user.Role, TrustLocalRole: s.trustRole}))
			return nil
		}
		sub, err := s.currentSubscription(ctx, user, customerID, true)
		if err != nil {
			return err
		}
		if sub != nil {
			if user, err = s.applyLocked(ctx, userID, sub); err != nil {
				return err
			}
		}
		result = s.statusFrom(user, sub, decideAccess(accessInputs{
			Role:           user.Role,
			TrustLocalRole: s.trustRole,
			Subscription:   sub,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyStripeSubscription applies a subscription delivered by a webhook. The
// owner is resolved from metadata.user_id, then from the customer id.
//
// Deliveries arrive out of order, so a snapshot the state table rejects is
// replaced by the processor's current copy of the same subscription. A
// STATE_CONFLICT is returned only when that copy is rejected too.
func (s *service) ApplyStripeSubscription(ctx context.Context, sub *stripe.Subscription) error {
	if sub == nil || sub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload missing id")
	}
	userID, err := s.resolveOwner(ctx, sub)
	if err != nil {
		return err
	}
	return s.withUserLock(ctx, userID, func(ctx context.Context) error {
		_, err := s.applyLocked(ctx, userID, sub)
		if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			return err
		}
		current, getErr := s.stripe.GetSubscription(ctx, sub.ID)
		if getErr != nil {
			if errors.Is(getErr, stripe.ErrNotFound) {
				return err
			}
			return s.dependencyErr(ctx, getErr, "retrieve subscription")
		}
		if current.Status == sub.Status {
			return err
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"subscription_id": sub.ID,
			"snapshot_status": sub.Status,
			"current_status":  current.Status,
		}), "out of order subscription snapshot replaced by current copy")
		_, err = s.applyLocked(ctx, userID, current)
		return err
	})
}

// AttachDefaultPaymentMethod makes paymentMethodID the customer and
// subscription default when either is missing it, then reconciles.
func (s *service) AttachDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	user, err := s.users.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if db.IsNotFound(err) {
			return ErrUnknownCustomer
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user by customer")
	}
	return s.withUserLock(ctx, user.ID, func(ctx context.Context) error {
		current, err := s.loadUser(ctx, user.ID)
		if err != nil {
			return err
		}
		sub, err := s.currentSubscription(ctx, current, customerID, true)
		if err != nil {
			return err
		}
		if sub == nil {
			return nil
		}
		if paymentMethodID != "" {
			if err := s.ensureDefaults(ctx, customerID, sub, paymentMethodID); err != nil {
				return err
			}
			if sub, err = s.stripe.GetSubscription(ctx, sub.ID); err != nil {
				return s.dependencyErr(ctx, err, "retrieve subscription")
			}
		}
		_, err = s.applyLocked(ctx, current.ID, sub)
		return err
	})
}

// apply is the single writer: lock, then applyLocked.
func (s *service) apply(ctx context.Context, userID uuid.UUID, sub *stripe.Subscription) (*models.User, error) {
	var out *models.User
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		user, err := s.applyLocked(ctx, userID, sub)
		out = user
		return err
	})
	return out, err
}

// applyLocked writes the snapshot inside a transaction holding the user row.
// The caller must hold the user's lock.
func (s *service) applyLocked(ctx context.Context, userID uuid.UUID, sub *stripe.Subscription) (*models.User, error) {
	next, err := FromStripeStatus(sub.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unrecognized subscription status")
	}

	var out *models.User
	var applied transition
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.users.WithTx(tx)
		user, err := repo.FindByIDForUpdate(ctx, userID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock user")
		}
		out = user

		plan, err := planTransition(user.SubscriptionState, deref(user.StripeSubscriptionID), sub.ID, next)
		if err != nil {
			s.metrics.ObserveRejectedTransition(string(plan.from), string(plan.to))
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "subscription state change not allowed")
		}
		applied = plan
		if !plan.write {
			return nil
		}

		now := s.now().UTC()
		values := map[string]any{
			"subscription_state":      plan.to,
			"stripe_subscription_id":  plan.subscriptionID,
			"subscription_updated_at": now,
			"updated_at":              now,
		}
		if deref(user.StripeCustomerID) == "" && sub.CustomerID != "" {
			values["stripe_customer_id"] = sub.CustomerID
			user.StripeCustomerID = &sub.CustomerID
		}
		if plan.to.GrantsAccess() && user.Role != enums.UserRoleAdmin && user.Role != enums.UserRoleSeller {
			values["role"] = enums.UserRoleSeller
			user.Role = enums.UserRoleSeller
		}
		if err := repo.UpdateColumns(ctx, userID, values); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write subscription state")
		}
		user.SubscriptionState = plan.to
		user.StripeSubscriptionID = &plan.subscriptionID
		user.SubscriptionUpdatedAt = &now

		return s.emitAccessChange(ctx, tx, userID, plan)
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":         userID.String(),
		"subscription_id": sub.ID,
		"from":            applied.from,
		"to":              applied.to,
	})
	switch {
	case applied.stale:
		s.logg.Info(logCtx, "stale subscription snapshot ignored")
	case applied.write && applied.from != applied.to:
		s.metrics.ObserveTransition(string(applied.from), string(applied.to))
		s.logg.Info(logCtx, "subscription state applied")
	}
	return out, nil
}

func (s *service) emitAccessChange(ctx context.Context, tx *gorm.DB, userID uuid.UUID, plan transition) error {
	was, now := plan.from.GrantsAccess(), plan.to.GrantsAccess()
	if was == now {
		return nil
	}
	event := outbox.DomainEvent{
		AggregateType: enums.AggregateSubscription,
		AggregateID:   userID,
		Actor:         &outbox.ActorRef{UserID: userID},
		OccurredAt:    s.now().UTC(),
	}
	if now {
		event.EventType = enums.EventSubscriptionActivated
		event.Data = payloads.SubscriptionActivated{UserID: userID, SubscriptionID: plan.subscriptionID, State: plan.to}
	} else {
		event.EventType = enums.EventSubscriptionLapsed
		event.Data = payloads.SubscriptionLapsed{UserID: userID, SubscriptionID: plan.subscriptionID, State: plan.to}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit subscription event")
	}
	return nil
}

func (s *service) withUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context) error) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	release, err := s.lock.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (s *service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}

// ensureCustomer returns the user's Stripe customer, creating it when absent.
// created reports whether a new customer was made.
func (s *service) ensureCustomer(ctx context.Context, user *models.User) (string, bool, error) {
	if id := deref(user.StripeCustomerID); id != "" {
		return id, false, nil
	}
	cust, err := s.stripe.CreateCustomer(ctx, deref(user.Email), user.DisplayName(), map[string]string{
		"user_id": user.ID.String(),
	})
	if err != nil {
		return "", false, s.dependencyErr(ctx, err, "create customer")
	}
	if err := s.users.UpdateColumns(ctx, user.ID, map[string]any{"stripe_customer_id": cust.ID}); err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store customer id")
	}
	user.StripeCustomerID = &cust.ID
	return cust.ID, true, nil
}

// currentSubscription reads the stored subscription, or the customer's most
// recent one when none is stored and lookup is set. Nil means none exists.
func (s *service) currentSubscription(ctx context.Context, user *models.User, customerID string, lookup bool) (*stripe.Subscription, error) {
	if id := deref(user.StripeSubscriptionID); id != "" {
		sub, err := s.stripe.GetSubscription(ctx, id)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, stripe.ErrNotFound) {
			return nil, s.dependencyErr(ctx, err, "retrieve subscription")
		}
	}
	if !lookup || customerID == "" {
		return nil, nil
	}
	sub, err := s.stripe.LatestSubscription(ctx, customerID)
	if err != nil {
		if errors.Is(err, stripe.ErrNotFound) {
			return nil, nil
		}
		return nil, s.dependencyErr(ctx, err, "list subscriptions")
	}
	return sub, nil
}

func (s *service) attachIfNeeded(ctx context.Context, customerID, paymentMethodID string) error {
	pm, err := s.stripe.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return s.dependencyErr(ctx, err, "retrieve payment method")
	}
	if pm.CustomerID == customerID {
		return nil
	}
	if pm.CustomerID != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method belongs to another customer")
	}
	if err := s.stripe.AttachPaymentMethod(ctx, paymentMethodID, customerID); err != nil {
		return s.dependencyErr(ctx, err, "attach payment method")
	}
	return nil
}

// ensureDefaults sets paymentMethodID as the customer invoice default and the
// subscription default, skipping whichever already matches.
func (s *service) ensureDefaults(ctx context.Context, customerID string, sub *stripe.Subscription, paymentMethodID string) error {
	cust, err := s.stripe.GetCustomer(ctx, customerID)
	if err != nil {
		return s.dependencyErr(ctx, err, "retrieve customer")
	}
	if cust.DefaultPaymentMethodID != paymentMethodID {
		if err := s.stripe.SetCustomerDefaultPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
			return s.dependencyErr(ctx, err, "set customer default payment method")
		}
	}
	if sub.DefaultPaymentMethodID != paymentMethodID {
		if err := s.stripe.SetSubscriptionDefaultPaymentMethod(ctx, sub.ID, paymentMethodID); err != nil {
			return s.dependencyErr(ctx, err, "set subscription default payment method")
		}
	}
	return nil
}

// payOpenInvoices settles the subscription's open invoices. Failures are
// logged and skipped; the webhook stream or the reconcile job picks them up.
func (s *service) payOpenInvoices(ctx context.Context, subscriptionID string) {
	invoices, err := s.stripe.ListOpenInvoices(ctx, subscriptionID)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "subscription_id", subscriptionID), "list open invoices failed", err)
		return
	}
	for _, inv := range invoices {
		if inv.Status == "paid" {
			continue
		}
		if _, err := s.stripe.PayInvoice(ctx, inv.ID, "pay-invoice-"+inv.ID); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "invoice_id", inv.ID), "invoice payment failed", err)
		}
	}
}

func (s *service) resolveOwner(ctx context.Context, sub *stripe.Subscription) (uuid.UUID, error) {
	if raw := strings.TrimSpace(sub.Metadata["user_id"]); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			if _, err := s.users.FindByID(ctx, id); err == nil {
				return id, nil
			}
		}
	}
	if sub.CustomerID == "" {
		return uuid.Nil, ErrUnknownCustomer
	}
	user, err := s.users.FindByStripeCustomerID(ctx, sub.CustomerID)
	if err != nil {
		if db.IsNotFound(err) {
			return uuid.Nil, ErrUnknownCustomer
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user by customer")
	}
	return user.ID, nil
}

// degraded answers from the local role alone, under the same trust setting
// as the normal path.
func (s *service) degraded(ctx context.Context, user *models.User, cause error) *StatusResult {
	s.logg.Error(s.logg.WithField(ctx, "user_id", user.ID.String()), "subscription status degraded to local role", cause)
	result := s.statusFrom(user, nil, decideAccess(accessInputs{Role: user.Role, TrustLocalRole: s.trustRole}))
	result.Degraded = true
	return result
}

func (s *service) statusFrom(user *models.User, sub *stripe.Subscription, decision accessDecision) *StatusResult {
	out := &StatusResult{
		Active:         decision.Active,
		Reason:         decision.Reason,
		State:          user.SubscriptionState,
		Role:           user.Role,
		SubscriptionID: deref(user.StripeSubscriptionID),
	}
	if sub != nil {
		if state, err := FromStripeStatus(sub.Status); err == nil {
			out.State = state
		}
		out.SubscriptionID = sub.ID
		out.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		out.CurrentPeriodEnd = sub.CurrentPeriodEnd
	}
	return out
}

func (s *service) dependencyErr(ctx context.Context, err error, action string) error {
	s.logg.Error(ctx, "stripe "+action+" failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func createResultFrom(sub *stripe.Subscription, state enums.SubscriptionState) *CreateResult {
	return &CreateResult{
		SubscriptionID: sub.ID,
		ClientSecret:   sub.ClientSecret,
		IntentType:     sub.IntentType,
		Status:         state,
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
