package promotions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/sellers"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/dbtest"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

type fixture struct {
	svc    Service
	client *db.Client
	owner  uuid.UUID
	seller *models.Seller
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	sellerRepo := sellers.NewRepository(client.DB())
	f := &fixture{client: client, owner: uuid.New(), now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(client.DB()),
		Sellers:           sellerRepo,
		TransactionRunner: client,
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:               func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc

	f.seller = &models.Seller{UserID: f.owner, ShopName: "Attic", ShopSlug: "attic-" + f.owner.String()[:6], PayoutSchedule: "weekly", VerificationStatus: enums.SellerVerificationUnsubmitted}
	require.NoError(t, sellerRepo.Create(context.Background(), f.seller))
	return f
}

func (f *fixture) create(t *testing.T, input CreateInput) *PromotionDTO {
	t.Helper()
	dto, err := f.svc.Create(context.Background(), f.owner, input)
	require.NoError(t, err)
	return dto
}

func (f *fixture) redeem(promotionID uuid.UUID) error {
	return f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return f.svc.Redeem(context.Background(), tx, promotionID, uuid.New(), uuid.New())
	})
}

func intPtr(v int) *int { return &v }

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestCreateNormalizesCodeAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	dto := f.create(t, CreateInput{Code: "spring10", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10)})
	assert.Equal(t, "SPRING10", dto.Code)
	assert.True(t, dto.Active)

	_, err := f.svc.Create(context.Background(), f.owner, CreateInput{Code: "Spring10", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5)})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateValidatesDiscount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.owner, CreateInput{Code: "HUGE", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(120)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(context.Background(), f.owner, CreateInput{Code: "ZERO", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.Zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(context.Background(), uuid.New(), CreateInput{Code: "NOSHOP", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestRedeemStopsAtMaxUses(t *testing.T) {
	f := newFixture(t)
	dto := f.create(t, CreateInput{Code: "LAST", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5), MaxUses: intPtr(10)})
	require.NoError(t, f.client.DB().Model(&models.Promotion{}).Where("id = ?", dto.ID).Update("current_uses", 9).Error)

	require.NoError(t, f.redeem(dto.ID))

	err := f.redeem(dto.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Contains(t, err.Error(), "promotion usage limit reached")

	var stored models.Promotion
	require.NoError(t, f.client.DB().First(&stored, "id = ?", dto.ID).Error)
	assert.Equal(t, 10, stored.CurrentUses)

	var redemptions int64
	require.NoError(t, f.client.DB().Model(&models.PromotionRedemption{}).Where("promotion_id = ?", dto.ID).Count(&redemptions).Error)
	assert.EqualValues(t, 1, redemptions)
}

func TestRedeemRejectsInactive(t *testing.T) {
	f := newFixture(t)
	dto := f.create(t, CreateInput{Code: "OFF", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5)})
	off := false
	_, err := f.svc.Update(context.Background(), f.owner, dto.ID, UpdateInput{Active: &off})
	require.NoError(t, err)

	err = f.redeem(dto.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestValidateEnforcesWindowAndMinimum(t *testing.T) {
	f := newFixture(t)
	minimum := decimal.NewFromInt(50)
	starts := f.now.Add(-time.Hour)
	ends := f.now.Add(time.Hour)
	f.create(t, CreateInput{
		Code:           "TEN",
		DiscountType:   enums.DiscountTypePercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MinOrderAmount: &minimum,
		StartsAt:       &starts,
		EndsAt:         &ends,
	})

	quote, err := f.svc.Validate(context.Background(), f.seller.ID, "ten", decimal.NewFromInt(80))
	require.NoError(t, err)
	assert.Equal(t, "TEN", quote.Code)
	assert.True(t, quote.Discount.Equal(decimal.NewFromInt(8)))

	_, err = f.svc.Validate(context.Background(), f.seller.ID, "TEN", decimal.NewFromInt(49))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.now = ends
	_, err = f.svc.Validate(context.Background(), f.seller.ID, "TEN", decimal.NewFromInt(80))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.now = starts.Add(-time.Minute)
	_, err = f.svc.Validate(context.Background(), f.seller.ID, "TEN", decimal.NewFromInt(80))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Validate(context.Background(), uuid.New(), "TEN", decimal.NewFromInt(80))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateRejectsMaxUsesBelowCurrent(t *testing.T) {
	f := newFixture(t)
	dto := f.create(t, CreateInput{Code: "CAP", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5), MaxUses: intPtr(5)})
	require.NoError(t, f.redeem(dto.ID))
	require.NoError(t, f.redeem(dto.ID))

	_, err := f.svc.Update(context.Background(), f.owner, dto.ID, UpdateInput{MaxUses: intPtr(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Update(context.Background(), uuid.New(), dto.ID, UpdateInput{MaxUses: intPtr(8)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestDeleteKeepsRedeemedPromotions(t *testing.T) {
	f := newFixture(t)
	unused := f.create(t, CreateInput{Code: "UNUSED", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5)})
	used := f.create(t, CreateInput{Code: "USED", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5)})
	require.NoError(t, f.redeem(used.ID))

	require.NoError(t, f.svc.Delete(context.Background(), f.owner, unused.ID))
	require.NoError(t, f.svc.Delete(context.Background(), f.owner, used.ID))

	list, err := f.svc.List(context.Background(), f.owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "USED", list[0].Code)
	assert.False(t, list[0].Active)
}
