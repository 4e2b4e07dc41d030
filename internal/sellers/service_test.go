package sellers

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/internal/users"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/dbtest"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/types"
)

type stubStatus struct {
	result *subscriptions.StatusResult
	err    error
}

func (s stubStatus) StatusCheck(context.Context, uuid.UUID) (*subscriptions.StatusResult, error) {
	return s.result, s.err
}

type fixture struct {
	client *db.Client
	svc    Service
	repo   *Repository
	users  *users.Repository
}

func newFixture(t *testing.T, status subscriptionStatus) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	userRepo := users.NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		Users:             userRepo,
		Subscriptions:     status,
		TransactionRunner: client,
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return &fixture{client: client, svc: svc, repo: repo, users: userRepo}
}

func (f *fixture) seedUser(t *testing.T, emailVerified bool) *models.User {
	t.Helper()
	user := &models.User{
		ID:                uuid.New(),
		OIDCSubject:       uuid.NewString(),
		Role:              enums.UserRoleBuyer,
		AccountStatus:     enums.AccountStatusActive,
		SubscriptionState: enums.SubscriptionStateNone,
		EmailVerified:     emailVerified,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Ada's Antiques":       "ada-s-antiques",
		"  Vintage   Vinyl!! ": "vintage-vinyl",
		"---":                  "shop",
		"Café 24/7":            "caf-24-7",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestOnboardRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t, nil)
	user := f.seedUser(t, false)
	_, err := f.svc.Onboard(context.Background(), user.ID, OnboardInput{ShopName: "Curios"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestOnboardKeepsRoleAndMakesUniqueSlug(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.seedUser(t, true)
	second := f.seedUser(t, true)

	a, err := f.svc.Onboard(ctx, first.ID, OnboardInput{ShopName: "Old Maps"})
	require.NoError(t, err)
	assert.Equal(t, "old-maps", a.ShopSlug)
	assert.Equal(t, enums.SellerVerificationUnsubmitted, a.VerificationStatus)

	b, err := f.svc.Onboard(ctx, second.ID, OnboardInput{ShopName: "Old  Maps"})
	require.NoError(t, err)
	assert.Equal(t, "old-maps-2", b.ShopSlug)

	_, err = f.svc.Onboard(ctx, first.ID, OnboardInput{ShopName: "Another"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	reloaded, err := f.users.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleBuyer, reloaded.Role)
}

func TestUpdateProfileKeepsSlug(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := f.seedUser(t, true)
	_, err := f.svc.Onboard(ctx, user.ID, OnboardInput{ShopName: "Brass Things"})
	require.NoError(t, err)

	name := "Brass & Copper"
	taxID := " 12-3456789 "
	updated, err := f.svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{ShopName: &name, TaxID: &taxID})
	require.NoError(t, err)
	assert.Equal(t, "Brass & Copper", updated.ShopName)
	assert.Equal(t, "brass-things", updated.ShopSlug)
	require.NotNil(t, updated.TaxID)
	assert.Equal(t, "12-3456789", *updated.TaxID)

	_, err = f.svc.UpdateProfile(ctx, uuid.New(), UpdateProfileInput{ShopName: &name})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDashboardAggregates(t *testing.T) {
	f := newFixture(t, stubStatus{result: &subscriptions.StatusResult{Active: true, Reason: subscriptions.ReasonSubscriptionActive}})
	ctx := context.Background()
	user := f.seedUser(t, true)
	shop, err := f.svc.Onboard(ctx, user.ID, OnboardInput{ShopName: "Clocks"})
	require.NoError(t, err)
	gdb := f.client.DB()

	for _, state := range []enums.ListingState{enums.ListingStateDraft, enums.ListingStatePublished, enums.ListingStatePublished} {
		require.NoError(t, gdb.Create(&models.Listing{
			ID: uuid.New(), SellerID: shop.ID, Title: "clock", Price: decimal.RequireFromString("10.00"), State: state,
		}).Error)
	}
	buyer := uuid.New()
	order := func(status enums.OrderStatus, subtotal, discount, fee string) {
		require.NoError(t, gdb.Create(&models.Order{
			ID:              uuid.New(),
			CheckoutGroupID: uuid.New(),
			BuyerID:         buyer,
			SellerID:        shop.ID,
			Status:          status,
			Subtotal:        decimal.RequireFromString(subtotal),
			Discount:        decimal.RequireFromString(discount),
			PlatformFee:     decimal.RequireFromString(fee),
			Total:           decimal.RequireFromString(subtotal).Sub(decimal.RequireFromString(discount)),
			ShippingAddress: types.Address{Line1: "1 Main St", City: "Austin", Country: "US"},
		}).Error)
	}
	order(enums.OrderStatusPaid, "100.00", "10.00", "9.00")
	order(enums.OrderStatusDelivered, "50.00", "0", "5.00")
	order(enums.OrderStatusCancelled, "999.00", "0", "99.90")

	for _, rating := range []int{4, 5} {
		require.NoError(t, gdb.Create(&models.Review{
			ID: uuid.New(), ListingID: uuid.New(), SellerID: shop.ID, BuyerID: buyer, OrderID: uuid.New(),
			Rating: rating, Status: enums.ReviewStatusVisible,
		}).Error)
	}

	dash, err := f.svc.Dashboard(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dash.ListingsByState[enums.ListingStateDraft])
	assert.Equal(t, int64(2), dash.ListingsByState[enums.ListingStatePublished])
	assert.Equal(t, int64(1), dash.OrdersByStatus[enums.OrderStatusCancelled])
	assert.True(t, decimal.RequireFromString("140").Equal(dash.GrossSales), dash.GrossSales.String())
	assert.True(t, decimal.RequireFromString("14").Equal(dash.PlatformFees), dash.PlatformFees.String())
	assert.True(t, decimal.RequireFromString("126").Equal(dash.NetPayout), dash.NetPayout.String())
	assert.InDelta(t, 4.5, dash.ReviewAverage, 0.001)
	assert.Equal(t, int64(2), dash.ReviewCount)
	require.NotNil(t, dash.Subscription)
	assert.True(t, dash.Subscription.Active)

	shopPage, err := f.svc.GetBySlug(ctx, "CLOCKS")
	require.NoError(t, err)
	assert.Equal(t, int64(2), shopPage.ReviewCount)
	assert.False(t, shopPage.Verified)
}

func TestDashboardToleratesSubscriptionFailure(t *testing.T) {
	f := newFixture(t, stubStatus{err: errors.New("stripe down")})
	ctx := context.Background()
	user := f.seedUser(t, true)
	_, err := f.svc.Onboard(ctx, user.ID, OnboardInput{ShopName: "Lamps"})
	require.NoError(t, err)

	dash, err := f.svc.Dashboard(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, dash.Subscription)
	assert.True(t, dash.GrossSales.IsZero())
}
