package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/cart"
	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/internal/orders"
	"github.com/curiomarket/curio-backend/internal/promotions"
	"github.com/curiomarket/curio-backend/internal/sellers"
	"github.com/curiomarket/curio-backend/pkg/db/dbtest"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/outbox"
	"github.com/curiomarket/curio-backend/pkg/types"
)

type fixture struct {
	svc     Service
	carts   cart.Service
	db      *gorm.DB
	sellers *sellers.Repository
	buyer   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	listingRepo := listings.NewRepository(client.DB())
	cartRepo := cart.NewRepository(client.DB())
	sellerRepo := sellers.NewRepository(client.DB())
	now := func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	promos, err := promotions.NewService(promotions.ServiceParams{
		Repo:              promotions.NewRepository(client.DB()),
		Sellers:           sellerRepo,
		TransactionRunner: client,
		Logger:            logg,
		Now:               now,
	})
	require.NoError(t, err)
	carts, err := cart.NewService(cart.ServiceParams{
		Repo:              cartRepo,
		Listings:          listingRepo,
		TransactionRunner: client,
		Logger:            logg,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Carts:             cartRepo,
		Listings:          listingRepo,
		Orders:            orders.NewRepository(client.DB()),
		Promotions:        promos,
		Outbox:            outbox.NewService(outbox.NewRepository(client.DB()), logg),
		TransactionRunner: client,
		Logger:            logg,
		FeeRate:           decimal.RequireFromString("0.1"),
		Now:               now,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, carts: carts, db: client.DB(), sellers: sellerRepo, buyer: uuid.New()}
}

func (f *fixture) seller(t *testing.T) *models.Seller {
	t.Helper()
	userID := uuid.New()
	s := &models.Seller{UserID: userID, ShopName: "Shop", ShopSlug: "shop-" + userID.String()[:8], PayoutSchedule: "weekly", VerificationStatus: enums.SellerVerificationUnsubmitted}
	require.NoError(t, f.sellers.Create(context.Background(), s))
	return s
}

func (f *fixture) listing(t *testing.T, sellerID uuid.UUID, title, price string, stock int) *models.Listing {
	t.Helper()
	l := &models.Listing{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Title:       title,
		Price:       decimal.RequireFromString(price),
		Currency:    "usd",
		Stock:       stock,
		State:       enums.ListingStatePublished,
		CategoryIDs: pq.StringArray{},
		Images:      pq.StringArray{},
		Condition:   "used",
	}
	require.NoError(t, f.db.Create(l).Error)
	return l
}

func (f *fixture) add(t *testing.T, listingID uuid.UUID, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), cart.Owner{UserID: f.buyer}, cart.AddItemInput{ListingID: listingID, Quantity: qty})
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var l models.Listing
	require.NoError(t, f.db.First(&l, "id = ?", id).Error)
	return l.Stock
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func address() types.Address {
	return types.Address{Name: "Ada Buyer", Line1: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701"}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestCheckoutCreatesOneOrderPerSeller(t *testing.T) {
	f := newFixture(t)
	sellerA := f.seller(t)
	sellerB := f.seller(t)
	lamp := f.listing(t, sellerA.ID, "Brass lamp", "30.00", 3)
	rug := f.listing(t, sellerA.ID, "Wool rug", "50.00", 1)
	clock := f.listing(t, sellerB.ID, "Mantel clock", "20.00", 2)
	f.add(t, lamp.ID, 2)
	f.add(t, rug.ID, 1)
	f.add(t, clock.ID, 1)

	result, err := f.svc.Checkout(context.Background(), f.buyer, CheckoutInput{ShippingAddress: address()})
	require.NoError(t, err)
	// later listing edits must not reach the snapshotted lines
	require.NoError(t, f.db.Model(&models.Listing{}).Where("id = ?", lamp.ID).Updates(map[string]any{"price": "99.00", "title": "Renamed"}).Error)

	require.Len(t, result.Orders, 2)
	assert.True(t, result.Total.Equal(decimal.NewFromInt(130)))
	bySeller := map[uuid.UUID]orders.OrderDTO{}
	for _, o := range result.Orders {
		bySeller[o.SellerID] = o
		assert.Equal(t, result.CheckoutGroupID, o.CheckoutGroupID)
		assert.Equal(t, enums.OrderStatusPending, o.Status)
	}
	a := bySeller[sellerA.ID]
	assert.True(t, a.Subtotal.Equal(decimal.NewFromInt(110)))
	assert.True(t, a.PlatformFee.Equal(decimal.NewFromInt(11)))
	assert.Len(t, a.Items, 2)
	assert.True(t, bySeller[sellerB.ID].PlatformFee.Equal(decimal.NewFromInt(2)))

	var stored models.OrderItem
	require.NoError(t, f.db.First(&stored, "listing_id = ?", lamp.ID).Error)
	assert.Equal(t, "Brass lamp", stored.Title)
	assert.True(t, stored.UnitPrice.Equal(decimal.NewFromInt(30)))
	assert.True(t, stored.LineTotal.Equal(decimal.NewFromInt(60)))

	assert.Equal(t, 1, f.stock(t, lamp.ID))
	assert.Equal(t, 0, f.stock(t, rug.ID))
	assert.Equal(t, 1, f.stock(t, clock.ID))

	var events int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error)
	assert.EqualValues(t, 2, events)

	after, err := f.carts.Get(context.Background(), cart.Owner{UserID: f.buyer})
	require.NoError(t, err)
	assert.Nil(t, after.ID)
}

func TestCheckoutAppliesPromotion(t *testing.T) {
	f := newFixture(t)
	seller := f.seller(t)
	vase := f.listing(t, seller.ID, "Vase", "40.00", 5)
	f.add(t, vase.ID, 2)
	maxUses := 10
	promo := &models.Promotion{ID: uuid.New(), SellerID: seller.ID, Code: "SAVE10", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10), MaxUses: &maxUses, CurrentUses: 9, Active: true}
	require.NoError(t, f.db.Create(promo).Error)

	result, err := f.svc.Checkout(context.Background(), f.buyer, CheckoutInput{
		ShippingAddress: address(),
		PromotionCodes:  map[uuid.UUID]string{seller.ID: "save10"},
	})
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	order := result.Orders[0]
	assert.True(t, order.Discount.Equal(decimal.NewFromInt(8)))
	assert.True(t, order.Total.Equal(decimal.NewFromInt(72)))
	assert.True(t, order.PlatformFee.Equal(decimal.RequireFromString("7.2")))
	require.NotNil(t, order.PromotionID)

	var stored models.Promotion
	require.NoError(t, f.db.First(&stored, "id = ?", promo.ID).Error)
	assert.Equal(t, 10, stored.CurrentUses)
	assert.EqualValues(t, 1, f.count(t, &models.PromotionRedemption{}))
}

func TestCheckoutRollsBackWhenPromotionExhausted(t *testing.T) {
	f := newFixture(t)
	seller := f.seller(t)
	other := f.seller(t)
	vase := f.listing(t, seller.ID, "Vase", "40.00", 5)
	bowl := f.listing(t, other.ID, "Bowl", "15.00", 5)
	f.add(t, bowl.ID, 1)
	f.add(t, vase.ID, 1)
	maxUses := 1
	promo := &models.Promotion{ID: uuid.New(), SellerID: seller.ID, Code: "ONCE", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5), MaxUses: &maxUses, CurrentUses: 1, Active: true}
	require.NoError(t, f.db.Create(promo).Error)

	_, err := f.svc.Checkout(context.Background(), f.buyer, CheckoutInput{
		ShippingAddress: address(),
		PromotionCodes:  map[uuid.UUID]string{seller.ID: "ONCE"},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	assert.EqualValues(t, 0, f.count(t, &models.Order{}))
	assert.Equal(t, 5, f.stock(t, vase.ID))
	assert.Equal(t, 5, f.stock(t, bowl.ID))
	still, err := f.carts.Get(context.Background(), cart.Owner{UserID: f.buyer})
	require.NoError(t, err)
	assert.Len(t, still.Items, 2)
}

func TestCheckoutRejectsStockShortfall(t *testing.T) {
	f := newFixture(t)
	seller := f.seller(t)
	lamp := f.listing(t, seller.ID, "Lamp", "10.00", 2)
	f.add(t, lamp.ID, 2)
	require.NoError(t, f.db.Model(&models.Listing{}).Where("id = ?", lamp.ID).Update("stock", 1).Error)

	_, err := f.svc.Checkout(context.Background(), f.buyer, CheckoutInput{ShippingAddress: address()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 1, f.stock(t, lamp.ID))
	assert.EqualValues(t, 0, f.count(t, &models.Order{}))
}

func TestCheckoutValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), f.buyer, CheckoutInput{ShippingAddress: address()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(context.Background(), f.buyer, CheckoutInput{ShippingAddress: types.Address{Name: "x"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Checkout(context.Background(), uuid.Nil, CheckoutInput{ShippingAddress: address()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	seller := f.seller(t)
	lamp := f.listing(t, seller.ID, "Lamp", "10.00", 2)
	f.add(t, lamp.ID, 1)
	_, err = f.svc.Checkout(context.Background(), f.buyer, CheckoutInput{
		ShippingAddress: address(),
		PromotionCodes:  map[uuid.UUID]string{uuid.New(): "NOPE"},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
