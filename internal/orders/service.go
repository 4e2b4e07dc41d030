package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/outbox"
	"github.com/curiomarket/curio-backend/pkg/outbox/payloads"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

// Service exposes buyer, seller and admin order operations.
type Service interface {
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, filter ListFilter) (*pagination.Page[OrderDTO], error)
	ListForSeller(ctx context.Context, userID uuid.UUID, filter ListFilter) (*pagination.Page[OrderDTO], error)
	Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, viewer Viewer, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
	Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error)
}

type ServiceParams struct {
	Repo              Repository
	Sellers           sellerLookup
	Inventory         InventoryReleaser
	Outbox            outboxPublisher
	TransactionRunner txRunner
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo      Repository
	sellers   sellerLookup
	inventory InventoryReleaser
	outbox    outboxPublisher
	tx        txRunner
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("sellers lookup required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		sellers:   params.Sellers,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		tx:        params.TransactionRunner,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, filter ListFilter) (*pagination.Page[OrderDTO], error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return s.list(ctx, filter, func(repo Repository, cursor *pagination.Cursor) ([]models.Order, error) {
		return repo.ListForBuyer(ctx, buyerID, filter, cursor)
	})
}

func (s *service) ListForSeller(ctx context.Context, userID uuid.UUID, filter ListFilter) (*pagination.Page[OrderDTO], error) {
	seller, err := s.sellerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, filter, func(repo Repository, cursor *pagination.Cursor) ([]models.Order, error) {
		return repo.ListForSeller(ctx, seller.ID, filter, cursor)
	})
}

func (s *service) list(ctx context.Context, filter ListFilter, load func(Repository, *pagination.Cursor) ([]models.Order, error)) (*pagination.Page[OrderDTO], error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Limit = pagination.NormalizeLimit(filter.Limit)
	var rows []models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		rows, err = load(s.repo.WithTx(tx), cursor)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}
	page := pagination.Build(dtos, filter.Limit, func(o OrderDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}

// Get returns the order to its buyer, its seller or an admin. Anyone else
// sees NOT_FOUND.
func (s *service) Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDTO, error) {
	if viewer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.repo.WithTx(tx).FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if viewer.isAdmin() || order.BuyerID == viewer.UserID || s.sellsOrder(ctx, viewer.UserID, order) {
		return FromModel(order), nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *service) UpdateStatus(ctx context.Context, viewer Viewer, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	if viewer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	if input.Status == enums.OrderStatusRefunded && !viewer.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can refund orders")
	}
	var sellerID uuid.UUID
	if !viewer.isAdmin() {
		seller, err := s.sellerFor(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		sellerID = seller.ID
	}
	role := enums.UserRoleSeller
	if viewer.isAdmin() {
		role = enums.UserRoleAdmin
	}
	return s.transition(ctx, orderID, viewer.UserID, role, input, func(order *models.Order) error {
		if !viewer.isAdmin() && order.SellerID != sellerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil
	})
}

// Cancel lets the buyer withdraw a pending order. Stock is restored.
func (s *service) Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderDTO, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	input := UpdateStatusInput{Status: enums.OrderStatusCancelled}
	return s.transition(ctx, orderID, buyerID, enums.UserRoleBuyer, input, func(order *models.Order) error {
		if order.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}
		return nil
	})
}

func (s *service) transition(ctx context.Context, orderID, actorID uuid.UUID, role enums.UserRole, input UpdateStatusInput, authorize func(*models.Order) error) (*OrderDTO, error) {
	var out *models.Order
	var from enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if err := authorize(order); err != nil {
			return err
		}
		from = order.Status
		if !from.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid order status transition").
				WithDetails(map[string]any{"from": from, "to": input.Status})
		}

		now := s.now().UTC()
		updates := map[string]any{"status": input.Status, "updated_at": now}
		switch input.Status {
		case enums.OrderStatusPaid:
			updates["paid_at"] = now
			order.PaidAt = &now
		case enums.OrderStatusShipped:
			tracking := ""
			if input.TrackingNumber != nil {
				tracking = strings.TrimSpace(*input.TrackingNumber)
			}
			if tracking == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "tracking_number is required to ship")
			}
			updates["tracking_number"] = tracking
			updates["shipped_at"] = now
			order.TrackingNumber = &tracking
			order.ShippedAt = &now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		case enums.OrderStatusCancelled:
			updates["cancelled_at"] = now
			order.CancelledAt = &now
			for _, item := range order.Items {
				if err := s.inventory.Release(ctx, tx, item.ListingID, item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
				}
			}
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		order.Status = input.Status

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: string(role)},
			Data: payloads.OrderStatusChanged{
				OrderID: order.ID,
				BuyerID: order.BuyerID,
				From:    from,
				To:      input.Status,
			},
			OccurredAt: now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status event")
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"from":     string(from),
		"to":       string(input.Status),
		"actor_id": actorID.String(),
	}), "order status changed")
	return FromModel(out), nil
}

func (s *service) sellerFor(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	seller, err := s.sellers.FindByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "open a shop first")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	return seller, nil
}

func (s *service) sellsOrder(ctx context.Context, userID uuid.UUID, order *models.Order) bool {
	seller, err := s.sellers.FindByUserID(ctx, userID)
	return err == nil && seller.ID == order.SellerID
}

type inventoryReleaser struct {
	listings *listings.Repository
	logg     *logger.Logger
}

// NewInventoryReleaser returns stock through the listings repository. A
// listing that no longer exists is skipped.
func NewInventoryReleaser(repo *listings.Repository, logg *logger.Logger) InventoryReleaser {
	return inventoryReleaser{listings: repo, logg: logg}
}

func (r inventoryReleaser) Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	ok, err := r.listings.WithTx(tx).AdjustStock(ctx, listingID, qty)
	if err != nil {
		return err
	}
	if !ok && r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "listing_id", listingID.String()), "stock release skipped for missing listing")
	}
	return nil
}
