// Package notifications turns relayed domain events into e-mail.
package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/email"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/outbox/payloads"
)

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type sellerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
}

type orderLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Dispatcher renders and sends the e-mails owed for one event.
type Dispatcher struct {
	users    userLookup
	sellers  sellerLookup
	orders   orderLookup
	renderer *email.Renderer
	sender   email.Sender
	logg     *logger.Logger
}

type DispatcherParams struct {
	Users    userLookup
	Sellers  sellerLookup
	Orders   orderLookup
	Renderer *email.Renderer
	Sender   email.Sender
	Logger   *logger.Logger
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("seller lookup required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order lookup required")
	}
	if params.Renderer == nil {
		return nil, fmt.Errorf("email renderer required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		users:    params.Users,
		sellers:  params.Sellers,
		orders:   params.Orders,
		renderer: params.Renderer,
		sender:   params.Sender,
		logg:     params.Logger,
	}, nil
}

// Handles reports whether eventType produces any e-mail.
func (d *Dispatcher) Handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventOrderCreated, enums.EventSellerVerificationDecided, enums.EventSubscriptionActivated:
		return true
	}
	return false
}

// Dispatch sends the e-mails for a decoded payload.
func (d *Dispatcher) Dispatch(ctx context.Context, payload any) error {
	switch p := payload.(type) {
	case *payloads.OrderCreated:
		return d.orderCreated(ctx, p)
	case *payloads.SellerVerificationDecided:
		return d.verificationDecided(ctx, p)
	case *payloads.SubscriptionActivated:
		return d.subscriptionActivated(ctx, p)
	default:
		return nil
	}
}

type lineData struct {
	Title     string
	Quantity  int
	LineTotal string
}

func (d *Dispatcher) orderCreated(ctx context.Context, p *payloads.OrderCreated) error {
	order, err := d.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	seller, err := d.sellers.FindByID(ctx, order.SellerID)
	if err != nil {
		return fmt.Errorf("load seller: %w", err)
	}
	buyer, err := d.users.FindByID(ctx, order.BuyerID)
	if err != nil {
		return fmt.Errorf("load buyer: %w", err)
	}
	sellerUser, err := d.users.FindByID(ctx, seller.UserID)
	if err != nil {
		return fmt.Errorf("load seller user: %w", err)
	}

	lines := make([]lineData, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, lineData{Title: it.Title, Quantity: it.Quantity, LineTotal: it.LineTotal.StringFixed(2)})
	}
	currency := strings.ToUpper(order.Currency)

	if err := d.send(ctx, email.TemplateOrderConfirmation, buyer, map[string]any{
		"Name":     buyer.DisplayName(),
		"OrderID":  order.ID.String(),
		"ShopName": seller.ShopName,
		"Items":    lines,
		"Total":    order.Total.StringFixed(2),
		"Currency": currency,
	}); err != nil {
		return err
	}
	return d.send(ctx, email.TemplateSellerNewOrder, sellerUser, map[string]any{
		"ShopName": seller.ShopName,
		"OrderID":  order.ID.String(),
		"Items":    lines,
		"Total":    order.Total.StringFixed(2),
		"Payout":   order.Total.Sub(order.PlatformFee).StringFixed(2),
		"Currency": currency,
	})
}

func (d *Dispatcher) verificationDecided(ctx context.Context, p *payloads.SellerVerificationDecided) error {
	user, err := d.users.FindByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	seller, err := d.sellers.FindByID(ctx, p.SellerID)
	if err != nil {
		return fmt.Errorf("load seller: %w", err)
	}
	return d.send(ctx, email.TemplateSellerVerification, user, map[string]any{
		"Name":     user.DisplayName(),
		"ShopName": seller.ShopName,
		"Decision": string(p.Decision),
		"Notes":    p.Notes,
	})
}

func (d *Dispatcher) subscriptionActivated(ctx context.Context, p *payloads.SubscriptionActivated) error {
	user, err := d.users.FindByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	return d.send(ctx, email.TemplateSubscriptionActivated, user, map[string]any{
		"Name": user.DisplayName(),
	})
}

// send skips users without an e-mail address.
func (d *Dispatcher) send(ctx context.Context, template string, to *models.User, data map[string]any) error {
	if to.Email == nil || strings.TrimSpace(*to.Email) == "" {
		d.logg.Warn(d.logg.WithFields(ctx, map[string]any{"user_id": to.ID.String(), "template": template}), "no e-mail address on file")
		return nil
	}
	msg, err := d.renderer.Render(template, *to.Email, to.DisplayName(), data)
	if err != nil {
		return err
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", template, err)
	}
	return nil
}
