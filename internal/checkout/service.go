package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/cart"
	"github.com/curiomarket/curio-backend/internal/checkout/helpers"
	"github.com/curiomarket/curio-backend/internal/checkout/reservation"
	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/internal/orders"
	"github.com/curiomarket/curio-backend/internal/promotions"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/outbox"
	"github.com/curiomarket/curio-backend/pkg/outbox/payloads"
	"github.com/curiomarket/curio-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type promotionApplier interface {
	ValidateTx(ctx context.Context, tx *gorm.DB, sellerID uuid.UUID, code string, subtotal decimal.Decimal) (*promotions.Quote, error)
	Redeem(ctx context.Context, tx *gorm.DB, promotionID, orderID, userID uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns the buyer's active cart into one order per seller.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error)
}

// CheckoutInput carries the shipping address and optional promotion codes
// keyed by seller id.
type CheckoutInput struct {
	ShippingAddress types.Address        `json:"shipping_address" validate:"required"`
	PromotionCodes  map[uuid.UUID]string `json:"promotion_codes"`
}

// Result lists the orders created by one checkout.
type Result struct {
	CheckoutGroupID uuid.UUID         `json:"checkout_group_id"`
	Orders          []orders.OrderDTO `json:"orders"`
	Total           decimal.Decimal   `json:"total"`
	Currency        string            `json:"currency"`
}

type ServiceParams struct {
	Carts             *cart.Repository
	Listings          *listings.Repository
	Orders            orders.Repository
	Promotions        promotionApplier
	Outbox            outboxPublisher
	TransactionRunner txRunner
	Logger            *logger.Logger
	FeeRate           decimal.Decimal
	Currency          string
	Now               func() time.Time
}

type service struct {
	carts      *cart.Repository
	listings   *listings.Repository
	orders     orders.Repository
	promotions promotionApplier
	outbox     outboxPublisher
	tx         txRunner
	logg       *logger.Logger
	feeRate    decimal.Decimal
	currency   string
	now        func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Promotions == nil {
		return nil, fmt.Errorf("promotions service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.FeeRate.IsNegative() || params.FeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("fee rate must be between 0 and 1")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		carts:      params.Carts,
		listings:   params.Listings,
		orders:     params.Orders,
		promotions: params.Promotions,
		outbox:     params.Outbox,
		tx:         params.TransactionRunner,
		logg:       params.Logger,
		feeRate:    params.FeeRate,
		currency:   currency,
		now:        now,
	}, nil
}

// Checkout runs in one transaction: any stock shortfall, promotion failure or
// write error rolls every order back and leaves the cart untouched.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	address, err := helpers.ValidateShippingAddress(input.ShippingAddress)
	if err != nil {
		return nil, err
	}
	codes := make(map[uuid.UUID]string, len(input.PromotionCodes))
	for sellerID, code := range input.PromotionCodes {
		if c := promotions.NormalizeCode(code); c != "" {
			codes[sellerID] = c
		}
	}

	groupID := uuid.New()
	result := &Result{CheckoutGroupID: groupID, Total: decimal.Zero, Currency: s.currency}
	var created []models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		record, err := cartRepo.FindActive(ctx, cart.Owner{UserID: userID})
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		requests := make([]reservation.StockReservationRequest, len(record.Items))
		for i, item := range record.Items {
			requests[i] = reservation.StockReservationRequest{CartItemID: item.ID, ListingID: item.ListingID, Qty: item.Quantity}
		}
		reserved, err := reservation.ReserveStock(ctx, s.listings.WithTx(tx), requests)
		if err != nil {
			return err
		}
		if failed := reservation.Failed(reserved); len(failed) > 0 {
			details := make([]map[string]any, 0, len(failed))
			for _, f := range failed {
				details = append(details, map[string]any{"listing_id": f.ListingID.String(), "reason": f.Reason})
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "some items are unavailable").WithDetails(details)
		}
		snapshots := make(map[uuid.UUID]reservation.StockReservationResult, len(reserved))
		for _, r := range reserved {
			snapshots[r.CartItemID] = r
		}

		groups := helpers.GroupCartItemsBySeller(record.Items)
		inCart := make(map[uuid.UUID]struct{}, len(groups))
		for _, group := range groups {
			inCart[group.SellerID] = struct{}{}
		}
		for sellerID := range codes {
			if _, ok := inCart[sellerID]; !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "promotion code for a seller not in the cart").
					WithDetails(map[string]any{"seller_id": sellerID.String()})
			}
		}

		for _, group := range groups {
			order := &models.Order{
				ID:              uuid.New(),
				CheckoutGroupID: groupID,
				BuyerID:         userID,
				SellerID:        group.SellerID,
				Status:          enums.OrderStatusPending,
				Currency:        s.currency,
				ShippingAddress: address,
			}
			subtotal := decimal.Zero
			for _, item := range group.Items {
				snap := snapshots[item.ID]
				line := helpers.LineTotal(snap.UnitPrice, item.Quantity)
				subtotal = subtotal.Add(line)
				order.Items = append(order.Items, models.OrderItem{
					ListingID: item.ListingID,
					Title:     snap.Title,
					UnitPrice: snap.UnitPrice,
					Quantity:  item.Quantity,
					LineTotal: line,
				})
			}

			discount := decimal.Zero
			var quote *promotions.Quote
			if code, ok := codes[group.SellerID]; ok {
				quote, err = s.promotions.ValidateTx(ctx, tx, group.SellerID, code, subtotal)
				if err != nil {
					return err
				}
				discount = quote.Discount
				order.PromotionID = &quote.PromotionID
			}
			totals := helpers.ComputeSellerTotals(subtotal, discount, s.feeRate)
			order.Subtotal = totals.Subtotal
			order.Discount = totals.Discount
			order.PlatformFee = totals.PlatformFee
			order.Total = totals.Total

			if err := ordersRepo.CreateOrder(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
			}
			if quote != nil {
				if err := s.promotions.Redeem(ctx, tx, quote.PromotionID, order.ID, userID); err != nil {
					return err
				}
			}
			if err := s.emitOrderCreated(ctx, tx, order); err != nil {
				return err
			}
			created = append(created, *order)
		}

		if err := cartRepo.SetStatus(ctx, record.ID, enums.CartStatusConverted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Orders = make([]orders.OrderDTO, 0, len(created))
	for i := range created {
		result.Orders = append(result.Orders, *orders.FromModel(&created[i]))
		result.Total = result.Total.Add(created[i].Total)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":           userID.String(),
		"checkout_group_id": groupID.String(),
		"orders":            len(created),
		"total":             result.Total.StringFixed(2),
	}), "checkout completed")
	return result, nil
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.BuyerID, Role: string(enums.UserRoleBuyer)},
		Data: payloads.OrderCreated{
			OrderID:         order.ID,
			CheckoutGroupID: order.CheckoutGroupID,
			BuyerID:         order.BuyerID,
			SellerID:        order.SellerID,
			Total:           order.Total,
			Currency:        order.Currency,
			ItemCount:       count,
		},
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
	}
	return nil
}
