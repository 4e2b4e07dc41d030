package promotions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

const codeConstraint = "ux_promotions_seller_code"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sellerLookup interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error)
}

// Service manages seller promotion codes and their redemption.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*PromotionDTO, error)
	Update(ctx context.Context, userID, promotionID uuid.UUID, input UpdateInput) (*PromotionDTO, error)
	Delete(ctx context.Context, userID, promotionID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]PromotionDTO, error)
	Validate(ctx context.Context, sellerID uuid.UUID, code string, subtotal decimal.Decimal) (*Quote, error)
	ValidateTx(ctx context.Context, tx *gorm.DB, sellerID uuid.UUID, code string, subtotal decimal.Decimal) (*Quote, error)
	Redeem(ctx context.Context, tx *gorm.DB, promotionID, orderID, userID uuid.UUID) error
}

type ServiceParams struct {
	Repo              *Repository
	Sellers           sellerLookup
	TransactionRunner txRunner
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo    *Repository
	sellers sellerLookup
	tx      txRunner
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("promotions repo required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("sellers lookup required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		sellers: params.Sellers,
		tx:      params.TransactionRunner,
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*PromotionDTO, error) {
	seller, err := s.sellerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	code := NormalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if err := validateDiscount(input.DiscountType, input.DiscountValue); err != nil {
		return nil, err
	}
	if input.MinOrderAmount != nil && input.MinOrderAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_order_amount cannot be negative")
	}
	if input.MaxUses != nil && *input.MaxUses < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max_uses must be at least 1")
	}
	if err := validateWindow(input.StartsAt, input.EndsAt); err != nil {
		return nil, err
	}

	promo := &models.Promotion{
		SellerID:       seller.ID,
		Code:           code,
		Description:    trimmed(input.Description),
		DiscountType:   input.DiscountType,
		DiscountValue:  input.DiscountValue.Round(2),
		MinOrderAmount: input.MinOrderAmount,
		MaxUses:        input.MaxUses,
		StartsAt:       input.StartsAt,
		EndsAt:         input.EndsAt,
		Active:         true,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, promo); err != nil {
			if db.IsUniqueViolation(err, codeConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "promotion code already exists").WithDetails(map[string]any{"code": code})
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create promotion")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"seller_id": seller.ID.String(), "promotion_id": promo.ID.String()}), "promotion created")
	return FromModel(promo), nil
}

func (s *service) Update(ctx context.Context, userID, promotionID uuid.UUID, input UpdateInput) (*PromotionDTO, error) {
	seller, err := s.sellerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out *models.Promotion
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		promo, err := loadOwned(ctx, repo, seller.ID, promotionID)
		if err != nil {
			return err
		}
		if input.Description != nil {
			promo.Description = trimmed(input.Description)
		}
		if input.MaxUses != nil {
			if *input.MaxUses < promo.CurrentUses {
				return pkgerrors.New(pkgerrors.CodeValidation, "max_uses cannot be below current uses").
					WithDetails(map[string]any{"current_uses": promo.CurrentUses})
			}
			promo.MaxUses = input.MaxUses
		}
		if input.EndsAt != nil {
			if err := validateWindow(promo.StartsAt, input.EndsAt); err != nil {
				return err
			}
			promo.EndsAt = input.EndsAt
		}
		if input.Active != nil {
			promo.Active = *input.Active
		}
		if err := repo.Save(ctx, promo); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update promotion")
		}
		out = promo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(out), nil
}

// Delete removes an unused promotion. One that has been redeemed is
// deactivated instead so redemption history stays intact.
func (s *service) Delete(ctx context.Context, userID, promotionID uuid.UUID) error {
	seller, err := s.sellerFor(ctx, userID)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		promo, err := loadOwned(ctx, repo, seller.ID, promotionID)
		if err != nil {
			return err
		}
		used, err := repo.CountRedemptions(ctx, promo.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count redemptions")
		}
		if used == 0 && promo.CurrentUses == 0 {
			if err := repo.Delete(ctx, promo.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete promotion")
			}
			return nil
		}
		promo.Active = false
		if err := repo.Save(ctx, promo); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate promotion")
		}
		return nil
	})
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]PromotionDTO, error) {
	seller, err := s.sellerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	var rows []models.Promotion
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		rows, err = s.repo.WithTx(tx).ListBySeller(ctx, seller.ID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list promotions")
	}
	out := make([]PromotionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Validate(ctx context.Context, sellerID uuid.UUID, code string, subtotal decimal.Decimal) (*Quote, error) {
	var quote *Quote
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		quote, err = s.quote(ctx, s.repo.WithTx(tx), sellerID, code, subtotal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// ValidateTx resolves code inside the caller's transaction so the read and the
// redemption see the same row.
func (s *service) ValidateTx(ctx context.Context, tx *gorm.DB, sellerID uuid.UUID, code string, subtotal decimal.Decimal) (*Quote, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "validate requires a transaction")
	}
	return s.quote(ctx, s.repo.WithTx(tx), sellerID, code, subtotal)
}

func (s *service) quote(ctx context.Context, repo *Repository, sellerID uuid.UUID, code string, subtotal decimal.Decimal) (*Quote, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code is required")
	}
	promo, err := repo.FindByCode(ctx, sellerID, normalized)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found").WithDetails(map[string]any{"code": normalized})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load promotion")
	}
	if err := eligible(promo, subtotal, s.now()); err != nil {
		return nil, err
	}
	return &Quote{PromotionID: promo.ID, Code: promo.Code, Discount: Discount(promo, subtotal)}, nil
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, promotionID, orderID, userID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "redeem requires a transaction")
	}
	repo := s.repo.WithTx(tx)
	ok, err := repo.Redeem(ctx, promotionID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeem promotion")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "promotion usage limit reached").
			WithDetails(map[string]any{"promotion_id": promotionID.String()})
	}
	redemption := &models.PromotionRedemption{PromotionID: promotionID, OrderID: orderID, UserID: userID}
	if err := repo.CreateRedemption(ctx, redemption); err != nil {
		if db.IsUniqueViolation(err, "ux_promotion_redemptions_order") {
			return pkgerrors.New(pkgerrors.CodeConflict, "promotion already applied to order")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record redemption")
	}
	return nil
}

func (s *service) sellerFor(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	seller, err := s.sellers.FindByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "open a shop first")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	return seller, nil
}

func loadOwned(ctx context.Context, repo *Repository, sellerID, promotionID uuid.UUID) (*models.Promotion, error) {
	promo, err := repo.FindByID(ctx, promotionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load promotion")
	}
	if promo.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
	}
	return promo, nil
}

// eligible checks everything except the usage limit, which Redeem enforces
// atomically.
func eligible(p *models.Promotion, subtotal decimal.Decimal, now time.Time) error {
	if !p.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion is not active")
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion has not started")
	}
	if p.EndsAt != nil && !now.Before(*p.EndsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion has ended")
	}
	if p.MinOrderAmount != nil && subtotal.LessThan(*p.MinOrderAmount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "order does not meet the promotion minimum").
			WithDetails(map[string]any{"min_order_amount": p.MinOrderAmount.StringFixed(2)})
	}
	if p.Exhausted() {
		return pkgerrors.New(pkgerrors.CodeConflict, "promotion usage limit reached")
	}
	return nil
}

func validateDiscount(kind enums.DiscountType, value decimal.Decimal) error {
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid discount_type")
	}
	if !value.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_value must be positive")
	}
	if kind == enums.DiscountTypePercentage && value.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage cannot exceed 100")
	}
	return nil
}

func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && !end.After(*start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "ends_at must be after starts_at")
	}
	return nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}
