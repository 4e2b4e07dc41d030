package reservation

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
)

const (
	ReasonNotFound     = "listing not found"
	ReasonUnavailable  = "listing unavailable"
	ReasonInsufficient = "insufficient stock"
)

// StockReservationRequest asks for Qty units of a listing on behalf of a cart line.
type StockReservationRequest struct {
	CartItemID uuid.UUID
	ListingID  uuid.UUID
	Qty        int
}

// StockReservationResult carries the listing snapshot taken under lock.
type StockReservationResult struct {
	CartItemID uuid.UUID
	ListingID  uuid.UUID
	SellerID   uuid.UUID
	Title      string
	UnitPrice  decimal.Decimal
	Qty        int
	Reserved   bool
	Reason     string
}

// ReserveStock locks the requested listings in id order and decrements stock
// for every request that can be met. Requests for the same listing draw from
// one running balance. The repo must be bound to the caller's transaction.
func ReserveStock(ctx context.Context, repo *listings.Repository, requests []StockReservationRequest) ([]StockReservationResult, error) {
	ids := make([]uuid.UUID, 0, len(requests))
	seen := make(map[uuid.UUID]struct{}, len(requests))
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"listing_id": req.ListingID.String()})
		}
		if _, ok := seen[req.ListingID]; !ok {
			seen[req.ListingID] = struct{}{}
			ids = append(ids, req.ListingID)
		}
	}

	rows, err := repo.FindManyForUpdate(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock listings")
	}
	locked := make(map[uuid.UUID]*models.Listing, len(rows))
	for i := range rows {
		locked[rows[i].ID] = &rows[i]
	}

	results := make([]StockReservationResult, 0, len(requests))
	for _, req := range requests {
		result := StockReservationResult{CartItemID: req.CartItemID, ListingID: req.ListingID, Qty: req.Qty}
		listing, ok := locked[req.ListingID]
		switch {
		case !ok:
			result.Reason = ReasonNotFound
		case listing.State != enums.ListingStatePublished:
			result.Reason = ReasonUnavailable
		case listing.Stock < req.Qty:
			result.Reason = ReasonInsufficient
		}
		if ok {
			result.SellerID = listing.SellerID
			result.Title = listing.Title
			result.UnitPrice = listing.Price
		}
		if result.Reason == "" {
			adjusted, err := repo.AdjustStock(ctx, req.ListingID, -req.Qty)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
			if adjusted {
				listing.Stock -= req.Qty
				result.Reserved = true
			} else {
				result.Reason = ReasonInsufficient
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// Failed returns the results that could not be reserved.
func Failed(results []StockReservationResult) []StockReservationResult {
	var out []StockReservationResult
	for _, r := range results {
		if !r.Reserved {
			out = append(out, r)
		}
	}
	return out
}
