package routes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/curiomarket/curio-backend/api/controllers"
	"github.com/curiomarket/curio-backend/internal/admin"
	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/internal/users"
	pkgAuth "github.com/curiomarket/curio-backend/pkg/auth"
	"github.com/curiomarket/curio-backend/pkg/auth/session"
	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/pagination"
	"github.com/curiomarket/curio-backend/pkg/redis/redistest"
)

const testSigningSecret = "whsec_router_test"

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubSessions struct {
	revoked bool
}

func (s stubSessions) HasSession(context.Context, string) (bool, error) {
	return !s.revoked, nil
}

type stubUsers struct {
	users.Service
	accounts map[uuid.UUID]*models.User
}

func (s *stubUsers) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.accounts[id]; ok {
		return u, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

type stubAdmin struct {
	admin.Service
}

func (stubAdmin) Stats(context.Context) (*admin.PlatformStats, error) {
	return &admin.PlatformStats{}, nil
}

type stubListings struct {
	listings.Service
	viewers []listings.Viewer
}

func (s *stubListings) List(_ context.Context, viewer listings.Viewer, _ listings.ListFilter) (*pagination.Page[listings.ListingDTO], error) {
	s.viewers = append(s.viewers, viewer)
	return &pagination.Page[listings.ListingDTO]{Items: []listings.ListingDTO{}}, nil
}

type stubStripe struct {
	events []string
}

func (s *stubStripe) Process(_ context.Context, event *stripe.Event) (string, error) {
	s.events = append(s.events, event.ID)
	return "processed", nil
}

type testEnv struct {
	cfg      *config.Config
	router   http.Handler
	users    *stubUsers
	listings *stubListings
	stripe   *stubStripe
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", PublicURL: "http://localhost:8080"},
		Session: config.SessionConfig{
			Secret:     "router-test-secret",
			Issuer:     "curio-test",
			AccessTTL:  time.Hour,
			RefreshTTL: 24 * time.Hour,
			CookieName: "curio.sid",
		},
		AuthRateLimit: config.AuthRateLimitConfig{Window: time.Minute, IPLimit: 2},
	}
}

func newTestEnv(t *testing.T, sessions session.AccessSessionChecker) *testEnv {
	t.Helper()
	cfg := testConfig()
	client, _ := redistest.New(t)
	env := &testEnv{
		cfg:      cfg,
		users:    &stubUsers{accounts: map[uuid.UUID]*models.User{}},
		listings: &stubListings{},
		stripe:   &stubStripe{},
	}
	env.router = NewRouter(cfg, logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}), Dependencies{
		Pingers:             map[string]controllers.Pinger{"db": stubPinger{}, "redis": client},
		Redis:               client,
		Sessions:            sessions,
		Users:               env.users,
		Admin:               stubAdmin{},
		Listings:            env.listings,
		StripeWebhook:       env.stripe,
		StripeSigningSecret: testSigningSecret,
	})
	return env
}

func (e *testEnv) addUser(role enums.UserRole, status enums.AccountStatus) uuid.UUID {
	id := uuid.New()
	e.users.accounts[id] = &models.User{ID: id, Role: role, AccountStatus: status}
	return id
}

func buildToken(t *testing.T, cfg *config.Config, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.Session, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, stubSessions{})

	resp := env.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from live got %d", resp.Code)
	}
	resp = env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from ready got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	env := newTestEnv(t, stubSessions{})
	resp := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t, stubSessions{})
	for _, path := range []string{"/api/auth/user", "/api/orders", "/api/favorites", "/api/subscription"} {
		resp := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token got %d", path, resp.Code)
		}
	}
}

func TestPrivateGroupRejectsRevokedSession(t *testing.T) {
	env := newTestEnv(t, stubSessions{revoked: true})
	id := env.addUser(enums.UserRoleVisitor, enums.AccountStatusActive)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, env.cfg, id, enums.UserRoleVisitor))
	if resp := env.do(req); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsBannedAccount(t *testing.T) {
	env := newTestEnv(t, stubSessions{})
	id := env.addUser(enums.UserRoleVisitor, enums.AccountStatusBanned)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, env.cfg, id, enums.UserRoleVisitor))
	if resp := env.do(req); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for banned account got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithToken(t *testing.T) {
	env := newTestEnv(t, stubSessions{})
	id := env.addUser(enums.UserRoleVisitor, enums.AccountStatusActive)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.AddCookie(&http.Cookie{Name: env.cfg.Session.CookieName, Value: buildToken(t, env.cfg, id, enums.UserRoleVisitor)})
	if resp := env.do(req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with session cookie got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	env := newTestEnv(t, stubSessions{})

	// the stored role wins over the role baked into the token
	seller := env.addUser(enums.UserRoleSeller, enums.AccountStatusActive)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, env.cfg, seller, enums.UserRoleAdmin))
	if resp := env.do(req); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller got %d", resp.Code)
	}

	adminID := env.addUser(enums.UserRoleAdmin, enums.AccountStatusActive)
	req = httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, env.cfg, adminID, enums.UserRoleAdmin))
	if resp := env.do(req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPublicListingsAllowAnonymousAndSignedIn(t *testing.T) {
	env := newTestEnv(t, stubSessions{})

	if resp := env.do(httptest.NewRequest(http.MethodGet, "/api/listings", nil)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for anonymous browse got %d", resp.Code)
	}

	id := env.addUser(enums.UserRoleVisitor, enums.AccountStatusActive)
	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, env.cfg, id, enums.UserRoleVisitor))
	if resp := env.do(req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed-in browse got %d", resp.Code)
	}

	if len(env.listings.viewers) != 2 {
		t.Fatalf("expected two list calls got %d", len(env.listings.viewers))
	}
	if env.listings.viewers[0].UserID != uuid.Nil {
		t.Fatalf("anonymous viewer should carry no user id")
	}
	if env.listings.viewers[1].UserID != id {
		t.Fatalf("signed-in viewer should carry the caller id")
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, stubSessions{})

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/token", bytes.NewBufferString(`{}`))
		req.RemoteAddr = "203.0.113.7:4000"
		last = env.do(req).Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit got %d", last)
	}
}

func TestStripeWebhookRoute(t *testing.T) {
	env := newTestEnv(t, stubSessions{})

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(`{"id":"evt_router","object":"event","type":"invoice.paid","data":{"object":{}}}`),
		Secret:    testSigningSecret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	if resp := env.do(req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed webhook got %d: %s", resp.Code, resp.Body.String())
	}
	if len(env.stripe.events) != 1 || env.stripe.events[0] != "evt_router" {
		t.Fatalf("unexpected processed events %v", env.stripe.events)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	if resp := env.do(req); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature got %d", resp.Code)
	}
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, logger.New(logger.Options{Output: io.Discard}), Dependencies{
		Pingers: map[string]controllers.Pinger{"db": stubPinger{err: errors.New("down")}},
	})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 when db is down got %d", resp.Code)
	}
}
