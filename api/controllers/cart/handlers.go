package cart

import (
	"net/http"

	"github.com/curiomarket/curio-backend/api/responses"
	"github.com/curiomarket/curio-backend/api/validators"
	cartsvc "github.com/curiomarket/curio-backend/internal/cart"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

// CartFetch returns the caller's cart with current listing prices.
func CartFetch(svc cartsvc.Service, cookieSecure bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		owner := resolveOwner(w, r, cookieSecure)
		record, err := svc.Get(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// CartAddItem adds a listing or increases its quantity.
func CartAddItem(svc cartsvc.Service, cookieSecure bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var input cartsvc.AddItemInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := resolveOwner(w, r, cookieSecure)
		record, err := svc.AddItem(r.Context(), owner, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// CartUpdateItem sets a line quantity. Zero removes the line.
func CartUpdateItem(svc cartsvc.Service, cookieSecure bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input cartsvc.UpdateItemInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := resolveOwner(w, r, cookieSecure)
		record, err := svc.UpdateItem(r.Context(), owner, listingID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func CartRemoveItem(svc cartsvc.Service, cookieSecure bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		listingID, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owner := resolveOwner(w, r, cookieSecure)
		record, err := svc.RemoveItem(r.Context(), owner, listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func CartClear(svc cartsvc.Service, cookieSecure bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		owner := resolveOwner(w, r, cookieSecure)
		if err := svc.Clear(r.Context(), owner); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
