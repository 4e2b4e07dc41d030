package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/internal/media"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

const maxImages = 6

type ReviewDTO struct {
	ID        uuid.UUID          `json:"id"`
	ListingID uuid.UUID          `json:"listing_id"`
	SellerID  uuid.UUID          `json:"seller_id"`
	BuyerID   uuid.UUID          `json:"buyer_id"`
	OrderID   uuid.UUID          `json:"order_id"`
	Rating    int                `json:"rating"`
	Title     *string            `json:"title,omitempty"`
	Body      string             `json:"body"`
	Images    []string           `json:"images"`
	Status    enums.ReviewStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

func FromModel(m *models.Review) *ReviewDTO {
	if m == nil {
		return nil
	}
	return &ReviewDTO{
		ID:        m.ID,
		ListingID: m.ListingID,
		SellerID:  m.SellerID,
		BuyerID:   m.BuyerID,
		OrderID:   m.OrderID,
		Rating:    m.Rating,
		Title:     m.Title,
		Body:      m.Body,
		Images:    media.NormalizeAll(m.Images),
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

type CreateInput struct {
	OrderID   uuid.UUID `json:"order_id" validate:"required"`
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
	Title     *string   `json:"title" validate:"omitempty,max=120"`
	Body      string    `json:"body" validate:"max=4000"`
	Images    []string  `json:"images" validate:"max=6"`
}

// ReviewList is one page of visible reviews plus the aggregate over all of them.
type ReviewList struct {
	Items         []ReviewDTO `json:"items"`
	NextCursor    string      `json:"next_cursor,omitempty"`
	AverageRating float64     `json:"average_rating"`
	ReviewCount   int64       `json:"review_count"`
}
