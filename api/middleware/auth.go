package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/api/responses"
	pkgAuth "github.com/curiomarket/curio-backend/pkg/auth"
	"github.com/curiomarket/curio-backend/pkg/auth/session"
	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

// AccountLookup loads the user behind a token so bans apply immediately.
type AccountLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

var errNoCredentials = errors.New("no credentials")

// Auth validates the bearer token or session cookie and seeds the request
// context with the caller. Anything short of a live session for an active
// account is rejected.
func Auth(cfg config.SessionConfig, verifier session.AccessSessionChecker, accounts AccountLookup, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, cfg, verifier, accounts, logg)
			if err != nil {
				if errors.Is(err, errNoCredentials) {
					err = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the caller when a valid session is presented and
// otherwise lets the request through anonymously. Banned accounts are still
// refused.
func OptionalAuth(cfg config.SessionConfig, verifier session.AccessSessionChecker, accounts AccountLookup, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, cfg, verifier, accounts, logg)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(ctx))
			case pkgerrors.IsCode(err, pkgerrors.CodeForbidden), pkgerrors.IsCode(err, pkgerrors.CodeDependency):
				responses.WriteError(r.Context(), logg, w, err)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func authenticate(r *http.Request, cfg config.SessionConfig, verifier session.AccessSessionChecker, accounts AccountLookup, logg *logger.Logger) (context.Context, error) {
	token := AccessToken(r, cfg.CookieName)
	if token == "" {
		return nil, errNoCredentials
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	if verifier != nil {
		ok, err := verifier.HasSession(r.Context(), claims.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}

	role := claims.Role
	if accounts != nil {
		user, err := accounts.Get(r.Context(), claims.UserID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
		}
		if !user.CanSignIn() {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not active")
		}
		role = user.Role
	}

	ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID.String())
	ctx = context.WithValue(ctx, ctxRole, string(role))
	ctx = context.WithValue(ctx, ctxAccessID, claims.ID)

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"user_id":    claims.UserID.String(),
			"actor_role": string(role),
		})
	}
	return ctx, nil
}

// AccessToken returns the bearer token, falling back to the session cookie.
func AccessToken(r *http.Request, cookieName string) string {
	if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
		token := raw
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[7:])
		}
		if token != "" {
			return token
		}
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
