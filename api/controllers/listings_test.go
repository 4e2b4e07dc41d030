package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curiomarket/curio-backend/api/middleware"
	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/internal/sellers"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

type stubListings struct {
	listings.Service
	viewer  listings.Viewer
	filter  listings.ListFilter
	listing *listings.ListingDTO
	err     error
}

func (s *stubListings) Get(ctx context.Context, viewer listings.Viewer, id uuid.UUID) (*listings.ListingDTO, error) {
	s.viewer = viewer
	return s.listing, s.err
}

func (s *stubListings) List(ctx context.Context, viewer listings.Viewer, filter listings.ListFilter) (*pagination.Page[listings.ListingDTO], error) {
	s.viewer = viewer
	s.filter = filter
	return &pagination.Page[listings.ListingDTO]{Items: []listings.ListingDTO{}}, s.err
}

type stubShops struct {
	sellers.Service
	slug string
}

func (s *stubShops) GetBySlug(ctx context.Context, slug string) (*sellers.PublicShopDTO, error) {
	s.slug = slug
	return &sellers.PublicShopDTO{}, nil
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListingsListParsesFilters(t *testing.T) {
	svc := &stubListings{}
	sellerID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/listings?q=lamp&category=decor&min_price=5&max_price=20.50&limit=10&seller_id="+sellerID.String(), nil)
	resp := httptest.NewRecorder()
	ListingsList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.filter.Query != "lamp" || svc.filter.CategoryID != "decor" || svc.filter.Limit != 10 {
		t.Fatalf("unexpected filter %+v", svc.filter)
	}
	if svc.filter.SellerID == nil || *svc.filter.SellerID != sellerID {
		t.Fatalf("expected seller filter")
	}
	if !svc.filter.MaxPrice.Equal(decimal.RequireFromString("20.50")) {
		t.Fatalf("unexpected max price %s", svc.filter.MaxPrice)
	}
	if svc.viewer.Role != enums.UserRoleVisitor {
		t.Fatalf("expected anonymous viewer, got %s", svc.viewer.Role)
	}
}

func TestListingsListRejectsInvertedPriceRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/listings?min_price=30&max_price=20", nil)
	resp := httptest.NewRecorder()
	ListingsList(&stubListings{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestListingGetPassesViewer(t *testing.T) {
	userID := uuid.New()
	listingID := uuid.New()
	svc := &stubListings{listing: &listings.ListingDTO{ID: listingID, Images: []string{"/objects/listings/a.jpg"}}}

	req := httptest.NewRequest(http.MethodGet, "/api/listings/"+listingID.String(), nil)
	req = withURLParam(req, "listingId", listingID.String())
	ctx := middleware.WithUserID(req.Context(), userID.String())
	req = req.WithContext(middleware.WithRole(ctx, enums.UserRoleSeller))
	resp := httptest.NewRecorder()
	ListingGet(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.viewer.UserID != userID || svc.viewer.Role != enums.UserRoleSeller {
		t.Fatalf("unexpected viewer %+v", svc.viewer)
	}
	var envelope struct {
		Data listings.ListingDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Images) != 1 || envelope.Data.Images[0] != "/objects/listings/a.jpg" {
		t.Fatalf("unexpected images %v", envelope.Data.Images)
	}
}

func TestListingGetNotFound(t *testing.T) {
	listingID := uuid.New()
	svc := &stubListings{err: pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "listingId", listingID.String())
	resp := httptest.NewRecorder()
	ListingGet(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestListingGetRejectsBadID(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "listingId", "nope")
	resp := httptest.NewRecorder()
	ListingGet(&stubListings{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestShopGetNormalizesSlug(t *testing.T) {
	svc := &stubShops{}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "slug", " Attic-Finds ")
	resp := httptest.NewRecorder()
	ShopGet(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || svc.slug != "attic-finds" {
		t.Fatalf("unexpected result %d slug=%q", resp.Code, svc.slug)
	}
}
