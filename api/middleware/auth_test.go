package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/auth"
	"github.com/curiomarket/curio-backend/pkg/auth/session"
	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
)

var testSessionConfig = config.SessionConfig{
	Secret:     "secret",
	Issuer:     "issuer",
	AccessTTL:  time.Hour,
	RefreshTTL: 24 * time.Hour,
	CookieName: "curio.sid",
}

type captured struct {
	user string
	role enums.UserRole
	jti  string
}

func capturingHandler(c *captured) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.user = UserIDFromContext(r.Context())
		c.role = RoleFromContext(r.Context())
		c.jti = AccessIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testSessionConfig, stubSessionVerifier{ok: true}, nil, nil)(capturingHandler(&captured{}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testSessionConfig, stubSessionVerifier{ok: true}, nil, nil)(capturingHandler(&captured{}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	token, _ := mintTestToken(t, enums.UserRoleBuyer)
	handler := Auth(testSessionConfig, stubSessionVerifier{ok: false}, nil, nil)(capturingHandler(&captured{}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAcceptsBearerAndCookie(t *testing.T) {
	token, userID := mintTestToken(t, enums.UserRoleSeller)

	for _, viaCookie := range []bool{false, true} {
		var c captured
		handler := Auth(testSessionConfig, stubSessionVerifier{ok: true}, nil, nil)(capturingHandler(&c))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if viaCookie {
			req.AddCookie(&http.Cookie{Name: "curio.sid", Value: token})
		} else {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("cookie=%v: expected 200 got %d", viaCookie, resp.Code)
		}
		if c.user != userID.String() {
			t.Fatalf("cookie=%v: expected user %s got %s", viaCookie, userID, c.user)
		}
		if c.role != enums.UserRoleSeller {
			t.Fatalf("cookie=%v: expected seller role got %s", viaCookie, c.role)
		}
		if c.jti == "" {
			t.Fatalf("cookie=%v: expected access id in context", viaCookie)
		}
	}
}

func TestAuthUsesCurrentAccountState(t *testing.T) {
	token, userID := mintTestToken(t, enums.UserRoleBuyer)

	var c captured
	accounts := stubAccounts{user: &models.User{ID: userID, Role: enums.UserRoleAdmin, AccountStatus: enums.AccountStatusActive}}
	handler := Auth(testSessionConfig, stubSessionVerifier{ok: true}, accounts, nil)(capturingHandler(&c))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || c.role != enums.UserRoleAdmin {
		t.Fatalf("expected stored role to win, got %d %s", resp.Code, c.role)
	}

	banned := stubAccounts{user: &models.User{ID: userID, Role: enums.UserRoleBuyer, AccountStatus: enums.AccountStatusBanned}}
	handler = Auth(testSessionConfig, stubSessionVerifier{ok: true}, banned, nil)(capturingHandler(&captured{}))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for banned account got %d", resp.Code)
	}
}

func TestOptionalAuthAllowsAnonymous(t *testing.T) {
	var c captured
	handler := OptionalAuth(testSessionConfig, stubSessionVerifier{ok: true}, nil, nil)(capturingHandler(&c))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if c.user != "" {
		t.Fatalf("expected anonymous request, got user %s", c.user)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.UserRoleSeller)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := map[enums.UserRole]int{
		enums.UserRoleBuyer:  http.StatusForbidden,
		enums.UserRoleSeller: http.StatusOK,
		enums.UserRoleAdmin:  http.StatusOK,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(req.Context(), role))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("role %s: expected %d got %d", role, want, resp.Code)
		}
	}
}

func TestCartSessionIgnoresNonUUID(t *testing.T) {
	var got string
	handler := CartSession()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CartSessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CartSessionHeader, "not-a-uuid")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "" {
		t.Fatalf("expected invalid session to be dropped, got %q", got)
	}

	id := uuid.NewString()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CartSessionCookie, Value: id})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != id {
		t.Fatalf("expected cookie session %s, got %q", id, got)
	}
}

func mintTestToken(t *testing.T, role enums.UserRole) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.MintAccessToken(testSessionConfig, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, userID
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}

type stubAccounts struct {
	user *models.User
}

func (s stubAccounts) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return s.user, nil
}
