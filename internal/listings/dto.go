package listings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/internal/media"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

const maxImages = 10

// ListingDTO is the API shape of a listing. Images are always /objects paths
// or external URLs.
type ListingDTO struct {
	ID              uuid.UUID          `json:"id"`
	SellerID        uuid.UUID          `json:"seller_id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Price           decimal.Decimal    `json:"price"`
	CompareAtPrice  *decimal.Decimal   `json:"compare_at_price,omitempty"`
	Currency        string             `json:"currency"`
	Stock           int                `json:"stock"`
	State           enums.ListingState `json:"state"`
	CategoryIDs     []string           `json:"category_ids"`
	Images          []string           `json:"images"`
	Condition       string             `json:"condition"`
	Brand           *string            `json:"brand,omitempty"`
	SKU             *string            `json:"sku,omitempty"`
	SuspendedReason *string            `json:"suspended_reason,omitempty"`
	PublishedAt     *time.Time         `json:"published_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func FromModel(m *models.Listing) *ListingDTO {
	if m == nil {
		return nil
	}
	categories := []string(m.CategoryIDs)
	if categories == nil {
		categories = []string{}
	}
	return &ListingDTO{
		ID:              m.ID,
		SellerID:        m.SellerID,
		Title:           m.Title,
		Description:     m.Description,
		Price:           m.Price,
		CompareAtPrice:  m.CompareAtPrice,
		Currency:        m.Currency,
		Stock:           m.Stock,
		State:           m.State,
		CategoryIDs:     categories,
		Images:          media.NormalizeAll(m.Images),
		Condition:       m.Condition,
		Brand:           m.Brand,
		SKU:             m.SKU,
		SuspendedReason: m.SuspendedReason,
		PublishedAt:     m.PublishedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// CreateInput describes a new draft listing.
type CreateInput struct {
	Title          string           `json:"title" validate:"required,min=2,max=200"`
	Description    string           `json:"description" validate:"max=10000"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price"`
	Stock          int              `json:"stock" validate:"gte=0"`
	CategoryIDs    []string         `json:"category_ids" validate:"max=10,dive,max=64"`
	Images         []string         `json:"images" validate:"max=10,dive,max=2048"`
	Condition      string           `json:"condition" validate:"omitempty,oneof=new used refurbished vintage"`
	Brand          *string          `json:"brand" validate:"omitempty,max=120"`
	SKU            *string          `json:"sku" validate:"omitempty,max=64"`
}

// UpdateInput patches a listing. Nil fields are left unchanged.
type UpdateInput struct {
	Title          *string          `json:"title" validate:"omitempty,min=2,max=200"`
	Description    *string          `json:"description" validate:"omitempty,max=10000"`
	Price          *decimal.Decimal `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price"`
	Stock          *int             `json:"stock" validate:"omitempty,gte=0"`
	CategoryIDs    *[]string        `json:"category_ids"`
	Images         *[]string        `json:"images"`
	Condition      *string          `json:"condition" validate:"omitempty,oneof=new used refurbished vintage"`
	Brand          *string          `json:"brand" validate:"omitempty,max=120"`
	SKU            *string          `json:"sku" validate:"omitempty,max=64"`
}

// ListFilter narrows a listing search.
type ListFilter struct {
	SellerID   *uuid.UUID
	CategoryID string
	Query      string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	State      *enums.ListingState
	Limit      int
	Cursor     string
}

// Viewer identifies who is reading. The zero value is an anonymous visitor.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (v Viewer) isAdmin() bool {
	return v.Role == enums.UserRoleAdmin
}
