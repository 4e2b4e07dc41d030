package cart

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/api/middleware"
	cartsvc "github.com/curiomarket/curio-backend/internal/cart"
)

const sessionCookieMaxAge = 30 * 24 * time.Hour

// resolveOwner identifies the cart for this request. Signed-in users own
// their cart directly; anonymous callers without a session get a new one,
// returned in both the cookie and the response header.
func resolveOwner(w http.ResponseWriter, r *http.Request, cookieSecure bool) cartsvc.Owner {
	if userID := middleware.UserUUIDFromContext(r.Context()); userID != uuid.Nil {
		return cartsvc.Owner{UserID: userID}
	}
	sessionID := middleware.CartSessionFromContext(r.Context())
	if sessionID == "" {
		sessionID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.CartSessionCookie,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(sessionCookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set(middleware.CartSessionHeader, sessionID)
	return cartsvc.Owner{SessionID: sessionID}
}
