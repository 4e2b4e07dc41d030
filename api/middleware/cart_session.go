package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// CartSessionHeader carries the anonymous cart id for API clients.
	CartSessionHeader = "X-Cart-Session"
	// CartSessionCookie carries the anonymous cart id for browsers.
	CartSessionCookie = "curio.cart"
)

// CartSession reads the anonymous cart id from the header or cookie. Values
// that are not uuids are ignored.
func CartSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			if raw == "" {
				if c, err := r.Cookie(CartSessionCookie); err == nil {
					raw = strings.TrimSpace(c.Value)
				}
			}
			if id, err := uuid.Parse(raw); err == nil {
				r = r.WithContext(WithCartSession(r.Context(), id.String()))
			}
			next.ServeHTTP(w, r)
		})
	}
}
