// Package actor resolves the caller of an authenticated request.
package actor

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/api/middleware"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
)

// UserID returns the authenticated user or UNAUTHORIZED.
func UserID(r *http.Request) (uuid.UUID, error) {
	if r == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id := middleware.UserUUIDFromContext(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

// Role returns the caller's role, visitor when anonymous.
func Role(r *http.Request) enums.UserRole {
	if r == nil {
		return enums.UserRoleVisitor
	}
	if role := middleware.RoleFromContext(r.Context()); role != "" {
		return role
	}
	return enums.UserRoleVisitor
}
