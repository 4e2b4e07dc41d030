package orders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/api/middleware"
	ordersvc "github.com/curiomarket/curio-backend/internal/orders"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

type stubOrders struct {
	ordersvc.Service
	filter ordersvc.ListFilter
	viewer ordersvc.Viewer
	input  ordersvc.UpdateStatusInput
	err    error
}

func (s *stubOrders) ListForBuyer(ctx context.Context, buyerID uuid.UUID, filter ordersvc.ListFilter) (*pagination.Page[ordersvc.OrderDTO], error) {
	s.filter = filter
	return &pagination.Page[ordersvc.OrderDTO]{Items: []ordersvc.OrderDTO{}}, nil
}

func (s *stubOrders) Get(ctx context.Context, viewer ordersvc.Viewer, orderID uuid.UUID) (*ordersvc.OrderDTO, error) {
	s.viewer = viewer
	if s.err != nil {
		return nil, s.err
	}
	return &ordersvc.OrderDTO{ID: orderID}, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, viewer ordersvc.Viewer, orderID uuid.UUID, input ordersvc.UpdateStatusInput) (*ordersvc.OrderDTO, error) {
	s.viewer = viewer
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &ordersvc.OrderDTO{ID: orderID, Status: input.Status}, nil
}

func (s *stubOrders) Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*ordersvc.OrderDTO, error) {
	return nil, s.err
}

func orderRequest(method, body string, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithUserID(ctx, userID.String())
	ctx = middleware.WithRole(ctx, role)
	return req.WithContext(ctx)
}

func TestBuyerOrdersListParsesStatus(t *testing.T) {
	svc := &stubOrders{}
	req := httptest.NewRequest(http.MethodGet, "/api/orders?status=shipped&limit=5", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	BuyerOrdersList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.filter.Status == nil || *svc.filter.Status != enums.OrderStatusShipped || svc.filter.Limit != 5 {
		t.Fatalf("unexpected filter %+v", svc.filter)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/orders?status=lost", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp = httptest.NewRecorder()
	BuyerOrdersList(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.Code)
	}
}

func TestOrderDetailPassesRole(t *testing.T) {
	svc := &stubOrders{}
	userID := uuid.New()
	resp := httptest.NewRecorder()
	OrderDetail(svc, nil).ServeHTTP(resp, orderRequest(http.MethodGet, "", userID, enums.UserRoleAdmin, uuid.New()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.viewer.UserID != userID || svc.viewer.Role != enums.UserRoleAdmin {
		t.Fatalf("unexpected viewer %+v", svc.viewer)
	}
}

func TestOrderDetailForbidden(t *testing.T) {
	svc := &stubOrders{err: pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")}
	resp := httptest.NewRecorder()
	OrderDetail(svc, nil).ServeHTTP(resp, orderRequest(http.MethodGet, "", uuid.New(), enums.UserRoleBuyer, uuid.New()))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestOrderUpdateStatus(t *testing.T) {
	svc := &stubOrders{}
	body := `{"status":"shipped","tracking_number":"1Z999"}`
	resp := httptest.NewRecorder()
	OrderUpdateStatus(svc, nil).ServeHTTP(resp, orderRequest(http.MethodPatch, body, uuid.New(), enums.UserRoleSeller, uuid.New()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.input.Status != enums.OrderStatusShipped || svc.input.TrackingNumber == nil || *svc.input.TrackingNumber != "1Z999" {
		t.Fatalf("unexpected input %+v", svc.input)
	}
}

func TestOrderCancelStateConflict(t *testing.T) {
	svc := &stubOrders{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")}
	resp := httptest.NewRecorder()
	OrderCancel(svc, nil).ServeHTTP(resp, orderRequest(http.MethodPost, "", uuid.New(), enums.UserRoleBuyer, uuid.New()))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}
