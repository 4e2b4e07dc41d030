package auth

import (
	"github.com/curiomarket/curio-backend/internal/users"
)

// TokenRequest is the body of POST /api/auth/token.
type TokenRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// RefreshRequest is the body of POST /api/auth/refresh. The access token may
// be expired; it is read from the body, the bearer header or the cookie.
type RefreshRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginRedirect carries the provider URL and the signed flow cookie value.
type LoginRedirect struct {
	URL        string
	FlowCookie string
}

// Session is an issued access and refresh token pair.
type Session struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresIn    int64          `json:"expires_in"`
	User         *users.UserDTO `json:"user"`
	ReturnTo     string         `json:"-"`
}
