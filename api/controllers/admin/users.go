// Package admin serves the /api/admin routes. The router gates every route on
// the admin role.
package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/api/controllers/actor"
	"github.com/curiomarket/curio-backend/api/responses"
	"github.com/curiomarket/curio-backend/api/validators"
	adminsvc "github.com/curiomarket/curio-backend/internal/admin"
	"github.com/curiomarket/curio-backend/internal/users"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

type userLister interface {
	List(ctx context.Context, filter users.ListFilter) (*pagination.Page[users.UserDTO], error)
}

type roleRequest struct {
	Role enums.UserRole `json:"role" validate:"required"`
}

// UsersList searches accounts by role, status and e-mail or name.
func UsersList(svc userLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := r.URL.Query()
		filter := users.ListFilter{
			Query:  validators.SanitizeString(q.Get("q"), 200),
			Limit:  params.Limit,
			Cursor: params.Cursor,
		}
		if raw := strings.TrimSpace(q.Get("role")); raw != "" {
			role, err := enums.ParseUserRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid role").WithDetails(map[string]any{"field": "role"}))
				return
			}
			filter.Role = &role
		}
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status, err := enums.ParseAccountStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid account status").WithDetails(map[string]any{"field": "status"}))
				return
			}
			filter.Status = &status
		}

		page, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type accountAction func(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error)

func accountHandler(action accountAction, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := actor.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := action(r.Context(), adminID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func UserBan(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("admin service unavailable", logg)
	}
	return accountHandler(svc.Ban, logg)
}

func UserSuspend(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("admin service unavailable", logg)
	}
	return accountHandler(svc.Suspend, logg)
}

func UserReinstate(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("admin service unavailable", logg)
	}
	return accountHandler(svc.Reinstate, logg)
}

// UserSetRole changes a user's marketplace role.
func UserSetRole(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin service unavailable"))
			return
		}

		adminID, err := actor.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req roleRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !req.Role.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid role").WithDetails(map[string]any{"field": "role"}))
			return
		}

		user, err := svc.SetRole(r.Context(), adminID, userID, req.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// Stats returns platform-wide counters for the admin dashboard.
func Stats(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin service unavailable"))
			return
		}

		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func unavailable(msg string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, msg))
	}
}
