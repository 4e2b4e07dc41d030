package sellers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

const maxSlugAttempts = 20

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type subscriptionStatus interface {
	StatusCheck(ctx context.Context, userID uuid.UUID) (*subscriptions.StatusResult, error)
}

// Service manages shops.
type Service interface {
	Onboard(ctx context.Context, userID uuid.UUID, input OnboardInput) (*SellerDTO, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*SellerDTO, error)
	GetBySlug(ctx context.Context, slug string) (*PublicShopDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*SellerDTO, error)
	Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error)
}

// ServiceParams groups the sellers service dependencies.
type ServiceParams struct {
	Repo              *Repository
	Users             userLoader
	Subscriptions     subscriptionStatus
	TransactionRunner txRunner
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo          *Repository
	users         userLoader
	subscriptions subscriptionStatus
	tx            txRunner
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sellers repo required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users loader required")
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
		repo:          params.Repo,
		users:         params.Users,
		subscriptions: params.Subscriptions,
		tx:            params.TransactionRunner,
		logg:          params.Logger,
		now:           now,
	}, nil
}

// Onboard creates the caller's shop. The seller role itself comes from the
// subscription flow or an admin, never from here.
func (s *service) Onboard(ctx context.Context, userID uuid.UUID, input OnboardInput) (*SellerDTO, error) {
	name := strings.TrimSpace(input.ShopName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop name is required")
	}
	if input.BusinessType != nil && !input.BusinessType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid business type")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if !user.EmailVerified {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "verify your email before opening a shop")
	}

	var created *models.Seller
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if existing, err := repo.FindByUserID(ctx, userID); err == nil && existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "shop already exists").
				WithDetails(map[string]any{"shop_slug": existing.ShopSlug})
		} else if err != nil && !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
		}
		slug, err := uniqueSlug(ctx, repo, Slugify(name))
		if err != nil {
			return err
		}
		seller := &models.Seller{
			UserID:             userID,
			ShopName:           name,
			ShopSlug:           slug,
			Description:        trimmed(input.Description),
			BusinessType:       input.BusinessType,
			BusinessName:       trimmed(input.BusinessName),
			BusinessPhone:      trimmed(input.BusinessPhone),
			BusinessAddress:    trimmed(input.BusinessAddress),
			VerificationStatus: enums.SellerVerificationUnsubmitted,
			PayoutSchedule:     "weekly",
		}
		if err := repo.Create(ctx, seller); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "shop already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create seller")
		}
		created = seller
		return nil
	})
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"seller_id": created.ID.String(), "shop_slug": created.ShopSlug})
	s.logg.Info(ctx, "seller onboarded")
	return FromModel(created), nil
}

func uniqueSlug(ctx context.Context, repo *Repository, base string) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check shop slug")
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return base + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0], nil
}

func (s *service) GetByUser(ctx context.Context, userID uuid.UUID) (*SellerDTO, error) {
	seller, err := s.loadByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(seller), nil
}

func (s *service) loadByUser(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	seller, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	return seller, nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*PublicShopDTO, error) {
	seller, err := s.repo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	avg, count, err := s.repo.ReviewStats(ctx, seller.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review stats")
	}
	return &PublicShopDTO{
		ID:            seller.ID,
		ShopName:      seller.ShopName,
		ShopSlug:      seller.ShopSlug,
		Description:   seller.Description,
		LogoURL:       seller.LogoURL,
		BannerURL:     seller.BannerURL,
		Verified:      seller.VerificationStatus == enums.SellerVerificationApproved,
		ReviewAverage: avg,
		ReviewCount:   count,
		CreatedAt:     seller.CreatedAt,
	}, nil
}

// UpdateProfile patches shop fields. The slug is fixed at onboarding so
// shared links keep working after a rename.
func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*SellerDTO, error) {
	if input.BusinessType != nil && !input.BusinessType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid business type")
	}
	seller, err := s.loadByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	values := map[string]any{}
	if input.ShopName != nil {
		name := strings.TrimSpace(*input.ShopName)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop name is required")
		}
		values["shop_name"] = name
	}
	set := func(column string, v *string) {
		if v != nil {
			values[column] = trimmed(v)
		}
	}
	set("description", input.Description)
	set("logo_url", input.LogoURL)
	set("banner_url", input.BannerURL)
	set("business_name", input.BusinessName)
	set("tax_id", input.TaxID)
	set("business_license", input.BusinessLicense)
	set("business_address", input.BusinessAddress)
	set("business_phone", input.BusinessPhone)
	if input.BusinessType != nil {
		values["business_type"] = *input.BusinessType
	}
	if input.PayoutSchedule != nil {
		values["payout_schedule"] = *input.PayoutSchedule
	}
	if len(values) > 0 {
		values["updated_at"] = s.now().UTC()
		if err := s.repo.UpdateColumns(ctx, seller.ID, values); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update seller")
		}
	}
	return s.GetByUser(ctx, userID)
}

// Dashboard aggregates the seller home page. A failing subscription lookup
// leaves the subscription block empty rather than failing the page.
func (s *service) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	seller, err := s.loadByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	listings, err := s.repo.ListingCounts(ctx, seller.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count listings")
	}
	orders, err := s.repo.OrderCounts(ctx, seller.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count orders")
	}
	gross, fees, err := s.repo.SalesTotals(ctx, seller.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum sales")
	}
	avg, reviews, err := s.repo.ReviewStats(ctx, seller.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review stats")
	}
	out := &Dashboard{
		Seller:              FromModel(seller),
		ListingsByState:     listings,
		OrdersByStatus:      orders,
		GrossSales:          gross.Round(2),
		PlatformFees:        fees.Round(2),
		NetPayout:           gross.Sub(fees).Round(2),
		ReviewAverage:       avg,
		ReviewCount:         reviews,
		PendingVerification: seller.VerificationStatus == enums.SellerVerificationPending,
	}
	if s.subscriptions != nil {
		status, err := s.subscriptions.StatusCheck(ctx, userID)
		if err != nil {
			s.logg.Warn(ctx, "dashboard subscription status unavailable")
		} else {
			out.Subscription = status
		}
	}
	return out, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
