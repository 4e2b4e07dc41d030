package reservation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/pkg/db/dbtest"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
)

func seedListing(t *testing.T, db *gorm.DB, stock int, state enums.ListingState) uuid.UUID {
	t.Helper()
	l := models.Listing{
		ID:          uuid.New(),
		SellerID:    uuid.New(),
		Title:       "Teak chair",
		Price:       decimal.RequireFromString("40.00"),
		Currency:    "usd",
		Stock:       stock,
		State:       state,
		CategoryIDs: pq.StringArray{},
		Images:      pq.StringArray{},
		Condition:   "used",
	}
	if err := db.Create(&l).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return l.ID
}

func TestReserveStock(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	listingA := seedListing(t, db, 5, enums.ListingStatePublished)
	listingB := seedListing(t, db, 1, enums.ListingStatePublished)

	requests := []StockReservationRequest{
		{CartItemID: uuid.New(), ListingID: listingA, Qty: 3},
		{CartItemID: uuid.New(), ListingID: listingA, Qty: 4},
		{CartItemID: uuid.New(), ListingID: listingB, Qty: 1},
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		results, terr := ReserveStock(ctx, listings.NewRepository(tx), requests)
		if terr != nil {
			return terr
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if !results[0].Reserved || results[0].Reason != "" {
			t.Fatalf("expected first reservation to succeed")
		}
		if results[0].Title != "Teak chair" || !results[0].UnitPrice.Equal(decimal.NewFromInt(40)) {
			t.Fatalf("expected listing snapshot, got %+v", results[0])
		}
		if results[1].Reserved || results[1].Reason != ReasonInsufficient {
			t.Fatalf("expected second reservation to fail with reason")
		}
		if !results[2].Reserved {
			t.Fatalf("expected third reservation to succeed")
		}
		if failed := Failed(results); len(failed) != 1 {
			t.Fatalf("expected 1 failed reservation, got %d", len(failed))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reserve transaction: %v", err)
	}

	var a, b models.Listing
	if err := db.First(&a, "id = ?", listingA).Error; err != nil {
		t.Fatalf("load listing a: %v", err)
	}
	if err := db.First(&b, "id = ?", listingB).Error; err != nil {
		t.Fatalf("load listing b: %v", err)
	}
	if a.Stock != 2 {
		t.Fatalf("unexpected stock for a: %d", a.Stock)
	}
	if b.Stock != 0 {
		t.Fatalf("unexpected stock for b: %d", b.Stock)
	}
}

func TestReserveStockUnavailable(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	ctx := context.Background()
	draft := seedListing(t, db, 5, enums.ListingStateDraft)

	results, err := ReserveStock(ctx, listings.NewRepository(db), []StockReservationRequest{
		{ListingID: draft, Qty: 1},
		{ListingID: uuid.New(), Qty: 1},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if results[0].Reason != ReasonUnavailable {
		t.Fatalf("expected unavailable, got %q", results[0].Reason)
	}
	if results[1].Reason != ReasonNotFound {
		t.Fatalf("expected not found, got %q", results[1].Reason)
	}
}

func TestReserveStockInvalidQty(t *testing.T) {
	t.Parallel()

	db := dbtest.Open(t)
	listing := seedListing(t, db, 5, enums.ListingStatePublished)

	_, err := ReserveStock(context.Background(), listings.NewRepository(db), []StockReservationRequest{{ListingID: listing, Qty: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}
