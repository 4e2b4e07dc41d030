package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/api/controllers/actor"
	"github.com/curiomarket/curio-backend/api/middleware"
	"github.com/curiomarket/curio-backend/api/responses"
	"github.com/curiomarket/curio-backend/api/validators"
	authsvc "github.com/curiomarket/curio-backend/internal/auth"
	"github.com/curiomarket/curio-backend/internal/cart"
	"github.com/curiomarket/curio-backend/internal/users"
	"github.com/curiomarket/curio-backend/pkg/auth/oidc"
	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

// refreshCookieSuffix names the cookie that carries the refresh token for
// browser sessions. It is scoped to the auth routes only.
const refreshCookieSuffix = ".rt"

type cartMerger interface {
	Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*cart.CartDTO, error)
}

type userReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthLogin starts the OIDC flow and redirects to the provider.
func AuthLogin(svc authsvc.Service, cfg config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		redirect, err := svc.BeginLogin(r.Context(), r.Host, r.URL.Query().Get("returnTo"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     oidc.FlowCookieName,
			Value:    redirect.FlowCookie,
			Path:     "/api",
			MaxAge:   int(oidc.FlowTTL.Seconds()),
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, redirect.URL, http.StatusFound)
	}
}

// AuthCallback completes the OIDC flow, sets the session cookies, merges any
// anonymous cart and redirects to the saved return path.
func AuthCallback(svc authsvc.Service, carts cartMerger, cfg config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		flow := ""
		if c, err := r.Cookie(oidc.FlowCookieName); err == nil {
			flow = c.Value
		}
		q := r.URL.Query()
		if errParam := q.Get("error"); errParam != "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "login was not completed").WithDetails(map[string]any{"reason": errParam}))
			return
		}

		session, err := svc.CompleteLogin(r.Context(), r.Host, q.Get("code"), q.Get("state"), flow)
		clearCookie(w, oidc.FlowCookieName, "/api", cfg.CookieSecure)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setSessionCookies(w, cfg, session)
		mergeCart(r, carts, session, logg)

		returnTo := session.ReturnTo
		if returnTo == "" {
			returnTo = "/"
		}
		http.Redirect(w, r, returnTo, http.StatusFound)
	}
}

// AuthLogout revokes the session, clears cookies and redirects to the
// provider's end-session URL.
func AuthLogout(svc authsvc.Service, cfg config.SessionConfig, publicURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		target, err := svc.Logout(r.Context(), middleware.AccessToken(r, cfg.CookieName), postLogoutRedirect(r, publicURL))
		clearCookie(w, cfg.CookieName, "/", cfg.CookieSecure)
		clearCookie(w, cfg.CookieName+refreshCookieSuffix, "/api/auth", cfg.CookieSecure)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if target == "" {
			target = "/"
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// AuthToken exchanges a provider ID token for an API session.
func AuthToken(svc authsvc.Service, carts cartMerger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var req authsvc.TokenRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.ExchangeIDToken(r.Context(), req.IDToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mergeCart(r, carts, session, logg)
		responses.WriteSuccess(w, session)
	}
}

// AuthRefresh rotates a session. Browser clients may omit the body and rely on
// the session cookies.
func AuthRefresh(svc authsvc.Service, cfg config.SessionConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var req authsvc.RefreshRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if strings.TrimSpace(req.AccessToken) == "" {
			req.AccessToken = middleware.AccessToken(r, cfg.CookieName)
		}
		fromCookie := false
		if strings.TrimSpace(req.RefreshToken) == "" {
			if c, err := r.Cookie(cfg.CookieName + refreshCookieSuffix); err == nil {
				req.RefreshToken = c.Value
				fromCookie = true
			}
		}
		if req.AccessToken == "" || req.RefreshToken == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "access and refresh tokens required"))
			return
		}

		session, err := svc.Refresh(r.Context(), req.AccessToken, req.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if fromCookie {
			setSessionCookies(w, cfg, session)
		}
		responses.WriteSuccess(w, session)
	}
}

// AuthUser returns the caller's account.
func AuthUser(svc userReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		userID, err := actor.UserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}

func setSessionCookies(w http.ResponseWriter, cfg config.SessionConfig, session *authsvc.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    session.AccessToken,
		Path:     "/",
		MaxAge:   int(cfg.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName + refreshCookieSuffix,
		Value:    session.RefreshToken,
		Path:     "/api/auth",
		MaxAge:   int(cfg.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearCookie(w http.ResponseWriter, name, path string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// mergeCart folds an anonymous cart into the user's cart. Failures are logged
// and never block the login.
func mergeCart(r *http.Request, carts cartMerger, session *authsvc.Session, logg *logger.Logger) {
	if carts == nil || session == nil || session.User == nil {
		return
	}
	sessionID := middleware.CartSessionFromContext(r.Context())
	if sessionID == "" {
		if c, err := r.Cookie(middleware.CartSessionCookie); err == nil {
			sessionID = c.Value
		}
	}
	if sessionID == "" {
		return
	}
	if _, err := carts.Merge(r.Context(), session.User.ID, sessionID); err != nil && logg != nil {
		logg.Error(logg.WithUserID(r.Context(), session.User.ID.String()), "cart.merge_failed", err)
	}
}

func postLogoutRedirect(r *http.Request, publicURL string) string {
	if base := strings.TrimRight(strings.TrimSpace(publicURL), "/"); base != "" {
		return base + "/"
	}
	scheme := "https"
	if r.TLS == nil && strings.HasPrefix(r.Host, "localhost") {
		scheme = "http"
	}
	return scheme + "://" + r.Host + "/"
}
