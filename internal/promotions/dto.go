package promotions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

type PromotionDTO struct {
	ID             uuid.UUID          `json:"id"`
	SellerID       uuid.UUID          `json:"seller_id"`
	Code           string             `json:"code"`
	Description    *string            `json:"description,omitempty"`
	DiscountType   enums.DiscountType `json:"discount_type"`
	DiscountValue  decimal.Decimal    `json:"discount_value"`
	MinOrderAmount *decimal.Decimal   `json:"min_order_amount,omitempty"`
	MaxUses        *int               `json:"max_uses,omitempty"`
	CurrentUses    int                `json:"current_uses"`
	StartsAt       *time.Time         `json:"starts_at,omitempty"`
	EndsAt         *time.Time         `json:"ends_at,omitempty"`
	Active         bool               `json:"active"`
	CreatedAt      time.Time          `json:"created_at"`
}

func FromModel(m *models.Promotion) *PromotionDTO {
	if m == nil {
		return nil
	}
	return &PromotionDTO{
		ID:             m.ID,
		SellerID:       m.SellerID,
		Code:           m.Code,
		Description:    m.Description,
		DiscountType:   m.DiscountType,
		DiscountValue:  m.DiscountValue,
		MinOrderAmount: m.MinOrderAmount,
		MaxUses:        m.MaxUses,
		CurrentUses:    m.CurrentUses,
		StartsAt:       m.StartsAt,
		EndsAt:         m.EndsAt,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt,
	}
}

// CreateInput defines a new promotion code.
type CreateInput struct {
	Code           string             `json:"code" validate:"required,min=3,max=32,alphanum"`
	Description    *string            `json:"description" validate:"omitempty,max=500"`
	DiscountType   enums.DiscountType `json:"discount_type" validate:"required"`
	DiscountValue  decimal.Decimal    `json:"discount_value"`
	MinOrderAmount *decimal.Decimal   `json:"min_order_amount"`
	MaxUses        *int               `json:"max_uses" validate:"omitempty,gte=1"`
	StartsAt       *time.Time         `json:"starts_at"`
	EndsAt         *time.Time         `json:"ends_at"`
}

// UpdateInput patches mutable promotion fields. The code and discount are
// fixed once created.
type UpdateInput struct {
	Description *string    `json:"description" validate:"omitempty,max=500"`
	MaxUses     *int       `json:"max_uses" validate:"omitempty,gte=1"`
	EndsAt      *time.Time `json:"ends_at"`
	Active      *bool      `json:"active"`
}

// Quote is the result of validating a code against a subtotal.
type Quote struct {
	PromotionID uuid.UUID       `json:"promotion_id"`
	Code        string          `json:"code"`
	Discount    decimal.Decimal `json:"discount"`
}
