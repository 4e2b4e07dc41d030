package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/api/controllers/actor"
	"github.com/curiomarket/curio-backend/api/responses"
	"github.com/curiomarket/curio-backend/api/validators"
	"github.com/curiomarket/curio-backend/internal/checkout"
	"github.com/curiomarket/curio-backend/internal/promotions"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

// Checkout converts the caller's cart into one order per seller.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := actor.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input checkout.CheckoutInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), buyerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type promotionQuoter interface {
	Validate(ctx context.Context, sellerID uuid.UUID, code string, subtotal decimal.Decimal) (*promotions.Quote, error)
}

type promotionQuoteRequest struct {
	SellerID uuid.UUID       `json:"seller_id" validate:"required"`
	Code     string          `json:"code" validate:"required,max=32"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// PromotionQuote previews the discount a code gives on a seller subtotal.
// Nothing is redeemed until checkout.
func PromotionQuote(svc promotionQuoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		if _, err := actor.UserID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req promotionQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Subtotal.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must not be negative"))
			return
		}

		quote, err := svc.Validate(r.Context(), req.SellerID, req.Code, req.Subtotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}
