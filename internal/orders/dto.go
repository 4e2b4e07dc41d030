package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/types"
)

type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ListingID uuid.UUID       `json:"listing_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDTO is the buyer and seller view of one order.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	CheckoutGroupID uuid.UUID         `json:"checkout_group_id"`
	BuyerID         uuid.UUID         `json:"buyer_id"`
	SellerID        uuid.UUID         `json:"seller_id"`
	Status          enums.OrderStatus `json:"status"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Discount        decimal.Decimal   `json:"discount"`
	PlatformFee     decimal.Decimal   `json:"platform_fee"`
	Total           decimal.Decimal   `json:"total"`
	Currency        string            `json:"currency"`
	PromotionID     *uuid.UUID        `json:"promotion_id,omitempty"`
	ShippingAddress types.Address     `json:"shipping_address"`
	TrackingNumber  *string           `json:"tracking_number,omitempty"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	ShippedAt       *time.Time        `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	Items           []OrderItemDTO    `json:"items"`
	CreatedAt       time.Time         `json:"created_at"`
}

func FromModel(m *models.Order) *OrderDTO {
	if m == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, OrderItemDTO{
			ID:        it.ID,
			ListingID: it.ListingID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
		})
	}
	return &OrderDTO{
		ID:              m.ID,
		CheckoutGroupID: m.CheckoutGroupID,
		BuyerID:         m.BuyerID,
		SellerID:        m.SellerID,
		Status:          m.Status,
		Subtotal:        m.Subtotal,
		Discount:        m.Discount,
		PlatformFee:     m.PlatformFee,
		Total:           m.Total,
		Currency:        m.Currency,
		PromotionID:     m.PromotionID,
		ShippingAddress: m.ShippingAddress,
		TrackingNumber:  m.TrackingNumber,
		PaidAt:          m.PaidAt,
		ShippedAt:       m.ShippedAt,
		DeliveredAt:     m.DeliveredAt,
		CancelledAt:     m.CancelledAt,
		Items:           items,
		CreatedAt:       m.CreatedAt,
	}
}

// ListFilter narrows buyer and seller order lists.
type ListFilter struct {
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// UpdateStatusInput moves an order along its lifecycle.
type UpdateStatusInput struct {
	Status         enums.OrderStatus `json:"status" validate:"required"`
	TrackingNumber *string           `json:"tracking_number" validate:"omitempty,max=100"`
}

// Viewer is the caller of an order operation.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (v Viewer) isAdmin() bool {
	return v.Role == enums.UserRoleAdmin
}

// Totals aggregates orders for platform reporting.
type Totals struct {
	Orders int64           `json:"orders"`
	GMV    decimal.Decimal `json:"gmv"`
	Fees   decimal.Decimal `json:"fees"`
}

// RevenueStatuses are the statuses counted toward gross merchandise value.
var RevenueStatuses = []enums.OrderStatus{
	enums.OrderStatusPaid,
	enums.OrderStatusShipped,
	enums.OrderStatusDelivered,
}
