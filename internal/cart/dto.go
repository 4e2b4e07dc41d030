package cart

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/internal/media"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
)

// Owner identifies a cart by user or by anonymous session. UserID wins when
// both are set.
type Owner struct {
	UserID    uuid.UUID
	SessionID string
}

func (o Owner) validate() error {
	if o.UserID != uuid.Nil {
		return nil
	}
	session := strings.TrimSpace(o.SessionID)
	if session == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session required")
	}
	if _, err := uuid.Parse(session); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart session must be a uuid")
	}
	return nil
}

func (o Owner) session() string {
	return strings.ToLower(strings.TrimSpace(o.SessionID))
}

type AddItemInput struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1,lte=99"`
}

type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"gte=0,lte=99"`
}

type ItemDTO struct {
	ListingID uuid.UUID       `json:"listing_id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	Title     string          `json:"title"`
	Image     *string         `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available bool            `json:"available"`
	InStock   int             `json:"in_stock"`
}

// CartDTO prices every line at the listing's current price.
type CartDTO struct {
	ID        *uuid.UUID      `json:"id,omitempty"`
	Items     []ItemDTO       `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

func emptyCart() *CartDTO {
	return &CartDTO{Items: []ItemDTO{}, Subtotal: decimal.Zero}
}

func toDTO(c *models.Cart, listings map[uuid.UUID]models.Listing) *CartDTO {
	if c == nil {
		return emptyCart()
	}
	out := &CartDTO{ID: &c.ID, Items: make([]ItemDTO, 0, len(c.Items)), Subtotal: decimal.Zero, UpdatedAt: &c.UpdatedAt}
	for _, item := range c.Items {
		dto := ItemDTO{
			ListingID: item.ListingID,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if listing, ok := listings[item.ListingID]; ok {
			dto.Title = listing.Title
			dto.UnitPrice = listing.Price
			dto.InStock = listing.Stock
			dto.Available = listing.Purchasable() && listing.Stock >= item.Quantity
			if len(listing.Images) > 0 {
				img := media.NormalizeObjectPath(listing.Images[0])
				dto.Image = &img
			}
		}
		dto.LineTotal = dto.UnitPrice.Mul(decimal.NewFromInt(int64(dto.Quantity))).Round(2)
		out.Subtotal = out.Subtotal.Add(dto.LineTotal)
		out.ItemCount += dto.Quantity
		out.Items = append(out.Items, dto)
	}
	return out
}
