package seller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiomarket/curio-backend/api/middleware"
	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/internal/promotions"
	"github.com/curiomarket/curio-backend/internal/sellers"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

type stubSellers struct {
	sellers.Service
	onboard sellers.OnboardInput
	err     error
}

func (s *stubSellers) Onboard(ctx context.Context, userID uuid.UUID, input sellers.OnboardInput) (*sellers.SellerDTO, error) {
	s.onboard = input
	if s.err != nil {
		return nil, s.err
	}
	return &sellers.SellerDTO{UserID: userID, ShopName: input.ShopName}, nil
}

func (s *stubSellers) Dashboard(ctx context.Context, userID uuid.UUID) (*sellers.Dashboard, error) {
	return nil, s.err
}

type stubListings struct {
	listings.Service
	userID    uuid.UUID
	listingID uuid.UUID
	filter    listings.ListFilter
	err       error
}

func (s *stubListings) ListMine(ctx context.Context, userID uuid.UUID, filter listings.ListFilter) (*pagination.Page[listings.ListingDTO], error) {
	s.userID = userID
	s.filter = filter
	return &pagination.Page[listings.ListingDTO]{}, nil
}

func (s *stubListings) Create(ctx context.Context, userID uuid.UUID, input listings.CreateInput) (*listings.ListingDTO, error) {
	s.userID = userID
	return &listings.ListingDTO{Title: input.Title, State: enums.ListingStateDraft}, nil
}

func (s *stubListings) Publish(ctx context.Context, userID, listingID uuid.UUID) (*listings.ListingDTO, error) {
	s.userID = userID
	s.listingID = listingID
	if s.err != nil {
		return nil, s.err
	}
	return &listings.ListingDTO{ID: listingID, State: enums.ListingStatePublished}, nil
}

func (s *stubListings) Delete(ctx context.Context, userID, listingID uuid.UUID) error {
	s.listingID = listingID
	return s.err
}

type stubPromotions struct {
	promotions.Service
	input promotions.CreateInput
}

func (s *stubPromotions) Create(ctx context.Context, userID uuid.UUID, input promotions.CreateInput) (*promotions.PromotionDTO, error) {
	s.input = input
	return &promotions.PromotionDTO{Code: input.Code}, nil
}

func sellerRequest(method, body string, userID uuid.UUID, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middleware.WithUserID(ctx, userID.String()))
}

func TestOnboard(t *testing.T) {
	svc := &stubSellers{}
	resp := httptest.NewRecorder()
	Onboard(svc, nil).ServeHTTP(resp, sellerRequest(http.MethodPost, `{"shop_name":"Attic Finds"}`, uuid.New(), nil))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "Attic Finds", svc.onboard.ShopName)
}

func TestOnboardConflict(t *testing.T) {
	svc := &stubSellers{err: pkgerrors.New(pkgerrors.CodeConflict, "shop already exists")}
	resp := httptest.NewRecorder()
	Onboard(svc, nil).ServeHTTP(resp, sellerRequest(http.MethodPost, `{"shop_name":"Attic Finds"}`, uuid.New(), nil))
	assert.Equal(t, http.StatusConflict, resp.Code)
}

func TestDashboardNotFoundWithoutShop(t *testing.T) {
	svc := &stubSellers{err: pkgerrors.New(pkgerrors.CodeNotFound, "seller profile not found")}
	resp := httptest.NewRecorder()
	Dashboard(svc, nil).ServeHTTP(resp, sellerRequest(http.MethodGet, "", uuid.New(), nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListingsMineParsesState(t *testing.T) {
	svc := &stubListings{}
	userID := uuid.New()
	req := sellerRequest(http.MethodGet, "", userID, nil)
	req.URL.RawQuery = "state=draft&limit=10"
	resp := httptest.NewRecorder()
	ListingsMine(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, userID, svc.userID)
	require.NotNil(t, svc.filter.State)
	assert.Equal(t, enums.ListingStateDraft, *svc.filter.State)
	assert.Equal(t, 10, svc.filter.Limit)
}

func TestListingCreateValidatesTitle(t *testing.T) {
	resp := httptest.NewRecorder()
	ListingCreate(&stubListings{}, nil).ServeHTTP(resp, sellerRequest(http.MethodPost, `{"title":"x","price":"10"}`, uuid.New(), nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	ListingCreate(&stubListings{}, nil).ServeHTTP(resp, sellerRequest(http.MethodPost, `{"title":"Brass lamp","price":"10.00","stock":1}`, uuid.New(), nil))
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestListingPublishRequiresBilling(t *testing.T) {
	listingID := uuid.New()
	svc := &stubListings{err: pkgerrors.New(pkgerrors.CodePaymentRequired, "an active seller subscription is required")}
	resp := httptest.NewRecorder()
	ListingPublish(svc, nil).ServeHTTP(resp, sellerRequest(http.MethodPost, "", uuid.New(), map[string]string{"listingId": listingID.String()}))
	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Equal(t, listingID, svc.listingID)
	assert.Contains(t, resp.Body.String(), "active seller subscription")
}

func TestListingDelete(t *testing.T) {
	listingID := uuid.New()
	svc := &stubListings{}
	resp := httptest.NewRecorder()
	ListingDelete(svc, nil).ServeHTTP(resp, sellerRequest(http.MethodDelete, "", uuid.New(), map[string]string{"listingId": listingID.String()}))
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, listingID, svc.listingID)
}

func TestPromotionCreate(t *testing.T) {
	svc := &stubPromotions{}
	body := `{"code":"SPRING10","discount_type":"percentage","discount_value":"10","max_uses":10}`
	resp := httptest.NewRecorder()
	PromotionCreate(svc, nil).ServeHTTP(resp, sellerRequest(http.MethodPost, body, uuid.New(), nil))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "SPRING10", svc.input.Code)
	require.NotNil(t, svc.input.MaxUses)
	assert.Equal(t, 10, *svc.input.MaxUses)
}

func TestPromotionUpdateRejectsBadID(t *testing.T) {
	resp := httptest.NewRecorder()
	PromotionUpdate(&stubPromotions{}, nil).ServeHTTP(resp, sellerRequest(http.MethodPatch, `{}`, uuid.New(), map[string]string{"promotionId": "nope"}))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
