package helpers

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/db/models"
)

// SellerGroup is one seller's share of a cart.
type SellerGroup struct {
	SellerID uuid.UUID
	Items    []models.CartItem
}

// GroupCartItemsBySeller groups cart items by seller, ordered by seller id so
// orders are created in a stable order.
func GroupCartItemsBySeller(items []models.CartItem) []SellerGroup {
	index := make(map[uuid.UUID]int, len(items))
	var groups []SellerGroup
	for _, item := range items {
		i, ok := index[item.SellerID]
		if !ok {
			i = len(groups)
			index[item.SellerID] = i
			groups = append(groups, SellerGroup{SellerID: item.SellerID})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	sort.Slice(groups, func(a, b int) bool {
		return bytes.Compare(groups[a].SellerID[:], groups[b].SellerID[:]) < 0
	})
	return groups
}

// SellerTotals captures the money columns of one seller order.
type SellerTotals struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	PlatformFee decimal.Decimal
	Total       decimal.Decimal
}

// LineTotal is unit price times quantity, rounded to cents.
func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

// ComputeSellerTotals applies discount to subtotal and takes feeRate of what
// remains as the platform fee. The discount never exceeds the subtotal.
func ComputeSellerTotals(subtotal, discount, feeRate decimal.Decimal) SellerTotals {
	subtotal = subtotal.Round(2)
	discount = decimal.Min(decimal.Max(discount, decimal.Zero), subtotal).Round(2)
	net := subtotal.Sub(discount)
	return SellerTotals{
		Subtotal:    subtotal,
		Discount:    discount,
		PlatformFee: net.Mul(feeRate).Round(2),
		Total:       net,
	}
}
