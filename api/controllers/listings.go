package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/curiomarket/curio-backend/api/controllers/actor"
	"github.com/curiomarket/curio-backend/api/middleware"
	"github.com/curiomarket/curio-backend/api/responses"
	"github.com/curiomarket/curio-backend/api/validators"
	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/internal/reviews"
	"github.com/curiomarket/curio-backend/internal/sellers"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

// ListingsList returns published listings matching the query filters.
func ListingsList(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}

		filter, err := ParseListingFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), listingViewer(r), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ListingGet returns one listing. Drafts are visible to their seller and admins only.
func ListingGet(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}

		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Get(r.Context(), listingViewer(r), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// ListingReviews returns visible reviews for a listing with its rating summary.
func ListingReviews(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reviews service unavailable"))
			return
		}

		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForListing(r.Context(), listingID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// SellerReviews returns visible reviews across a seller's listings.
func SellerReviews(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reviews service unavailable"))
			return
		}

		sellerID, err := validators.ParseUUIDParam(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForSeller(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ShopGet returns a seller's public shop page by slug.
func ShopGet(svc sellers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sellers service unavailable"))
			return
		}

		slug := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "slug")))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shop slug required"))
			return
		}

		shop, err := svc.GetBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shop)
	}
}

func listingViewer(r *http.Request) listings.Viewer {
	return listings.Viewer{
		UserID: middleware.UserUUIDFromContext(r.Context()),
		Role:   actor.Role(r),
	}
}

// ParseListingFilter reads the listing search parameters. The service pins
// non-admin callers of the public list to published listings.
func ParseListingFilter(r *http.Request) (listings.ListFilter, error) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		return listings.ListFilter{}, err
	}
	sellerID, err := validators.ParseQueryUUID(r, "seller_id")
	if err != nil {
		return listings.ListFilter{}, err
	}
	minPrice, err := validators.ParseQueryDecimal(r, "min_price")
	if err != nil {
		return listings.ListFilter{}, err
	}
	maxPrice, err := validators.ParseQueryDecimal(r, "max_price")
	if err != nil {
		return listings.ListFilter{}, err
	}
	if minPrice != nil && maxPrice != nil && minPrice.GreaterThan(*maxPrice) {
		return listings.ListFilter{}, pkgerrors.New(pkgerrors.CodeValidation, "min_price must not exceed max_price")
	}

	q := r.URL.Query()
	var state *enums.ListingState
	if raw := strings.TrimSpace(q.Get("state")); raw != "" {
		parsed, err := enums.ParseListingState(raw)
		if err != nil {
			return listings.ListFilter{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid listing state").WithDetails(map[string]any{"field": "state"})
		}
		state = &parsed
	}
	return listings.ListFilter{
		State:      state,
		SellerID:   sellerID,
		CategoryID: validators.SanitizeString(q.Get("category"), 64),
		Query:      validators.SanitizeString(q.Get("q"), 200),
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		Limit:      params.Limit,
		Cursor:     params.Cursor,
	}, nil
}
