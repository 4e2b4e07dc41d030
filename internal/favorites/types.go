package favorites

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/internal/media"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

// FavoriteDTO wraps the listing summary included in a favorites row.
type FavoriteDTO struct {
	ListingID   uuid.UUID          `json:"listing_id"`
	SellerID    uuid.UUID          `json:"seller_id"`
	Title       string             `json:"title"`
	Price       decimal.Decimal    `json:"price"`
	Currency    string             `json:"currency"`
	State       enums.ListingState `json:"state"`
	Image       *string            `json:"image,omitempty"`
	FavoritedAt time.Time          `json:"favorited_at"`
}

// FavoriteIDsDTO is a lightweight projection containing only listing IDs.
type FavoriteIDsDTO struct {
	ListingIDs []uuid.UUID `json:"listing_ids"`
}

type favoriteRecord struct {
	FavoriteID        uuid.UUID
	FavoriteCreatedAt time.Time
	ListingID         uuid.UUID
	SellerID          uuid.UUID
	Title             string
	Price             decimal.Decimal
	Currency          string
	State             enums.ListingState
	Images            pq.StringArray
}

func (r favoriteRecord) toDTO() FavoriteDTO {
	dto := FavoriteDTO{
		ListingID:   r.ListingID,
		SellerID:    r.SellerID,
		Title:       r.Title,
		Price:       r.Price,
		Currency:    r.Currency,
		State:       r.State,
		FavoritedAt: r.FavoriteCreatedAt,
	}
	if len(r.Images) > 0 {
		img := media.NormalizeObjectPath(r.Images[0])
		dto.Image = &img
	}
	return dto
}
