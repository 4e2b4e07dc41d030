package promotions

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Discount returns the amount p takes off subtotal, rounded to cents. A
// percentage is capped at 100 and a fixed amount at the subtotal.
func Discount(p *models.Promotion, subtotal decimal.Decimal) decimal.Decimal {
	if p == nil || !subtotal.IsPositive() || !p.DiscountValue.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch p.DiscountType {
	case enums.DiscountTypePercentage:
		pct := decimal.Min(p.DiscountValue, hundred)
		amount = subtotal.Mul(pct).Div(hundred)
	case enums.DiscountTypeFixed:
		amount = p.DiscountValue
	default:
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal).Round(2)
}

// NormalizeCode uppercases and trims a customer-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
