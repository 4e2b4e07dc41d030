package helpers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/types"
)

func TestGroupCartItemsBySeller(t *testing.T) {
	t.Parallel()
	sellerA := uuid.New()
	sellerB := uuid.New()
	items := []models.CartItem{
		{ID: uuid.New(), SellerID: sellerA},
		{ID: uuid.New(), SellerID: sellerB},
		{ID: uuid.New(), SellerID: sellerA},
	}

	grouped := GroupCartItemsBySeller(items)
	if len(grouped) != 2 {
		t.Fatalf("expected 2 sellers, got %d", len(grouped))
	}
	counts := map[uuid.UUID]int{}
	for _, g := range grouped {
		counts[g.SellerID] = len(g.Items)
	}
	if counts[sellerA] != 2 || counts[sellerB] != 1 {
		t.Fatalf("unexpected grouping: %v", counts)
	}
	again := GroupCartItemsBySeller([]models.CartItem{items[2], items[1], items[0]})
	if again[0].SellerID != grouped[0].SellerID {
		t.Fatalf("expected stable seller order")
	}
}

func TestComputeSellerTotals(t *testing.T) {
	t.Parallel()
	rate := decimal.RequireFromString("0.1")

	totals := ComputeSellerTotals(decimal.RequireFromString("80.00"), decimal.RequireFromString("8.00"), rate)
	if !totals.Total.Equal(decimal.RequireFromString("72")) {
		t.Fatalf("unexpected total %s", totals.Total)
	}
	if !totals.PlatformFee.Equal(decimal.RequireFromString("7.2")) {
		t.Fatalf("unexpected fee %s", totals.PlatformFee)
	}

	capped := ComputeSellerTotals(decimal.RequireFromString("10"), decimal.RequireFromString("25"), rate)
	if !capped.Discount.Equal(decimal.RequireFromString("10")) || !capped.Total.IsZero() || !capped.PlatformFee.IsZero() {
		t.Fatalf("expected discount capped at subtotal, got %+v", capped)
	}

	rounded := ComputeSellerTotals(decimal.RequireFromString("33.33"), decimal.Zero, decimal.RequireFromString("0.125"))
	if !rounded.PlatformFee.Equal(decimal.RequireFromString("4.17")) {
		t.Fatalf("expected fee rounded to cents, got %s", rounded.PlatformFee)
	}
}

func TestLineTotal(t *testing.T) {
	t.Parallel()
	if got := LineTotal(decimal.RequireFromString("19.99"), 3); !got.Equal(decimal.RequireFromString("59.97")) {
		t.Fatalf("unexpected line total %s", got)
	}
}

func TestValidateShippingAddress(t *testing.T) {
	t.Parallel()
	addr, err := ValidateShippingAddress(types.Address{
		Name:       " Ada ",
		Line1:      "1 Main St",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
	})
	if err != nil {
		t.Fatalf("expected valid address: %v", err)
	}
	if addr.Country != "US" || addr.Name != "Ada" {
		t.Fatalf("expected normalized address, got %+v", addr)
	}

	_, err = ValidateShippingAddress(types.Address{Name: "Ada"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}
