package listings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/media"
	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

const (
	defaultCondition = "new"
	removedReason    = "removed by seller"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sellerLookup interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error)
}

type accessChecker interface {
	StatusCheck(ctx context.Context, userID uuid.UUID) (*subscriptions.StatusResult, error)
}

// Service manages listings for sellers, buyers and admins.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*ListingDTO, error)
	Update(ctx context.Context, userID, listingID uuid.UUID, input UpdateInput) (*ListingDTO, error)
	Delete(ctx context.Context, userID, listingID uuid.UUID) error
	Publish(ctx context.Context, userID, listingID uuid.UUID) (*ListingDTO, error)
	Unpublish(ctx context.Context, userID, listingID uuid.UUID) (*ListingDTO, error)
	Get(ctx context.Context, viewer Viewer, listingID uuid.UUID) (*ListingDTO, error)
	List(ctx context.Context, viewer Viewer, filter ListFilter) (*pagination.Page[ListingDTO], error)
	ListMine(ctx context.Context, userID uuid.UUID, filter ListFilter) (*pagination.Page[ListingDTO], error)
	Suspend(ctx context.Context, adminID, listingID uuid.UUID, reason string) (*ListingDTO, error)
	Reinstate(ctx context.Context, adminID, listingID uuid.UUID) (*ListingDTO, error)
}

// ServiceParams groups the listings service dependencies.
type ServiceParams struct {
	Repo              *Repository
	Sellers           sellerLookup
	Access            accessChecker
	TransactionRunner txRunner
	Logger            *logger.Logger
	Currency          string
	Now               func() time.Time
}

type service struct {
	repo     *Repository
	sellers  sellerLookup
	access   accessChecker
	tx       txRunner
	logg     *logger.Logger
	currency string
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("listings repo required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("sellers lookup required")
	}
	if params.Access == nil {
		return nil, fmt.Errorf("access checker required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		sellers:  params.Sellers,
		access:   params.Access,
		tx:       params.TransactionRunner,
		logg:     params.Logger,
		currency: currency,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*ListingDTO, error) {
	seller, err := s.sellerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if err := validatePrice(input.Price, input.CompareAtPrice); err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	images, err := normalizeImages(input.Images)
	if err != nil {
		return nil, err
	}
	condition := strings.TrimSpace(input.Condition)
	if condition == "" {
		condition = defaultCondition
	}
	listing := &models.Listing{
		SellerID:       seller.ID,
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Price:          input.Price.Round(2),
		CompareAtPrice: roundPtr(input.CompareAtPrice),
		Currency:       s.currency,
		Stock:          input.Stock,
		State:          enums.ListingStateDraft,
		CategoryIDs:    pq.StringArray(cleanCategories(input.CategoryIDs)),
		Images:         pq.StringArray(images),
		Condition:      condition,
		Brand:          trimmed(input.Brand),
		SKU:            trimmed(input.SKU),
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create listing")
	}
	return FromModel(listing), nil
}

func (s *service) Update(ctx context.Context, userID, listingID uuid.UUID, input UpdateInput) (*ListingDTO, error) {
	return s.mutateOwned(ctx, userID, listingID, func(listing *models.Listing) error {
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
			}
			listing.Title = title
		}
		if input.Description != nil {
			listing.Description = strings.TrimSpace(*input.Description)
		}
		price := listing.Price
		if input.Price != nil {
			price = *input.Price
		}
		compare := listing.CompareAtPrice
		if input.CompareAtPrice != nil {
			compare = input.CompareAtPrice
		}
		if err := validatePrice(price, compare); err != nil {
			return err
		}
		listing.Price = price.Round(2)
		listing.CompareAtPrice = roundPtr(compare)
		if input.Stock != nil {
			if *input.Stock < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
			}
			listing.Stock = *input.Stock
		}
		if input.CategoryIDs != nil {
			listing.CategoryIDs = pq.StringArray(cleanCategories(*input.CategoryIDs))
		}
		if input.Images != nil {
			images, err := normalizeImages(*input.Images)
			if err != nil {
				return err
			}
			listing.Images = pq.StringArray(images)
		}
		if input.Condition != nil && strings.TrimSpace(*input.Condition) != "" {
			listing.Condition = strings.TrimSpace(*input.Condition)
		}
		if input.Brand != nil {
			listing.Brand = trimmed(input.Brand)
		}
		if input.SKU != nil {
			listing.SKU = trimmed(input.SKU)
		}
		return nil
	})
}

// Delete removes a draft. Published listings are suspended instead so order
// history keeps resolving.
func (s *service) Delete(ctx context.Context, userID, listingID uuid.UUID) error {
	seller, err := s.sellerFor(ctx, userID)
	if err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := loadOwned(ctx, repo, seller.ID, listingID)
		if err != nil {
			return err
		}
		switch listing.State {
		case enums.ListingStateDraft:
			if err := repo.Delete(ctx, listing.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete listing")
			}
		case enums.ListingStatePublished:
			reason := removedReason
			listing.State = enums.ListingStateSuspended
			listing.SuspendedReason = &reason
			if err := repo.Save(ctx, listing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "suspend listing")
			}
		case enums.ListingStateSuspended:
			// Repeating a seller removal is a no-op; a moderation hold is not the seller's to lift.
			if listing.SuspendedReason != nil && *listing.SuspendedReason == removedReason {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing is suspended by moderation")
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing cannot be deleted in its current state").
				WithDetails(map[string]any{"state": listing.State})
		}
		return nil
	})
}

// Publish requires active seller billing access.
func (s *service) Publish(ctx context.Context, userID, listingID uuid.UUID) (*ListingDTO, error) {
	status, err := s.access.StatusCheck(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !status.Active {
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "active seller subscription required").
			WithDetails(map[string]any{"reason": status.Reason})
	}
	return s.mutateOwned(ctx, userID, listingID, func(listing *models.Listing) error {
		if listing.State == enums.ListingStatePublished {
			return nil
		}
		if listing.State != enums.ListingStateDraft {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing cannot be published").
				WithDetails(map[string]any{"state": listing.State})
		}
		if listing.Price.LessThanOrEqual(decimal.Zero) {
			return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		now := s.now().UTC()
		listing.State = enums.ListingStatePublished
		listing.PublishedAt = &now
		return nil
	})
}

func (s *service) Unpublish(ctx context.Context, userID, listingID uuid.UUID) (*ListingDTO, error) {
	return s.mutateOwned(ctx, userID, listingID, func(listing *models.Listing) error {
		if listing.State != enums.ListingStatePublished {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not published")
		}
		listing.State = enums.ListingStateDraft
		return nil
	})
}

// Get hides unpublished listings from everyone but the owner and admins.
func (s *service) Get(ctx context.Context, viewer Viewer, listingID uuid.UUID) (*ListingDTO, error) {
	listing, err := s.repo.FindByID(ctx, listingID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
	}
	if listing.State != enums.ListingStatePublished && !viewer.isAdmin() && !s.owns(ctx, viewer.UserID, listing.SellerID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return FromModel(listing), nil
}

func (s *service) owns(ctx context.Context, userID, sellerID uuid.UUID) bool {
	if userID == uuid.Nil {
		return false
	}
	seller, err := s.sellers.FindByUserID(ctx, userID)
	return err == nil && seller.ID == sellerID
}

// List is the catalog search. Only admins may see other states.
func (s *service) List(ctx context.Context, viewer Viewer, filter ListFilter) (*pagination.Page[ListingDTO], error) {
	if !viewer.isAdmin() || filter.State == nil {
		published := enums.ListingStatePublished
		filter.State = &published
	}
	return s.list(ctx, filter)
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, filter ListFilter) (*pagination.Page[ListingDTO], error) {
	seller, err := s.sellerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	filter.SellerID = &seller.ID
	return s.list(ctx, filter)
}

func (s *service) list(ctx context.Context, filter ListFilter) (*pagination.Page[ListingDTO], error) {
	if filter.State != nil && !filter.State.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid listing state")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price exceeds max_price")
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Limit = pagination.NormalizeLimit(filter.Limit)
	rows, err := s.repo.List(ctx, filter, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list listings")
	}
	dtos := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}
	page := pagination.Build(dtos, filter.Limit, func(l ListingDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})
	return &page, nil
}

func (s *service) Suspend(ctx context.Context, adminID, listingID uuid.UUID, reason string) (*ListingDTO, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	out, err := s.mutate(ctx, listingID, func(listing *models.Listing) error {
		if listing.State == enums.ListingStateSuspended {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing already suspended")
		}
		listing.State = enums.ListingStateSuspended
		listing.SuspendedReason = &reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"listing_id": listingID.String(), "admin_id": adminID.String()}), "listing suspended")
	return out, nil
}

// Reinstate lifts a suspension. Listings that had been live go back to
// published, the rest to draft.
func (s *service) Reinstate(ctx context.Context, adminID, listingID uuid.UUID) (*ListingDTO, error) {
	out, err := s.mutate(ctx, listingID, func(listing *models.Listing) error {
		if listing.State != enums.ListingStateSuspended {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not suspended")
		}
		listing.State = enums.ListingStateDraft
		if listing.PublishedAt != nil {
			listing.State = enums.ListingStatePublished
		}
		listing.SuspendedReason = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"listing_id": listingID.String(), "admin_id": adminID.String()}), "listing reinstated")
	return out, nil
}

func (s *service) mutateOwned(ctx context.Context, userID, listingID uuid.UUID, change func(*models.Listing) error) (*ListingDTO, error) {
	seller, err := s.sellerFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out *models.Listing
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := loadOwned(ctx, repo, seller.ID, listingID)
		if err != nil {
			return err
		}
		if err := change(listing); err != nil {
			return err
		}
		if err := repo.Save(ctx, listing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update listing")
		}
		out = listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(out), nil
}

func (s *service) mutate(ctx context.Context, listingID uuid.UUID, change func(*models.Listing) error) (*ListingDTO, error) {
	var out *models.Listing
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.FindByIDForUpdate(ctx, listingID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
		}
		if err := change(listing); err != nil {
			return err
		}
		if err := repo.Save(ctx, listing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update listing")
		}
		out = listing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(out), nil
}

func loadOwned(ctx context.Context, repo *Repository, sellerID, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := repo.FindByIDForUpdate(ctx, listingID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
	}
	if listing.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return listing, nil
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

func validatePrice(price decimal.Decimal, compareAt *decimal.Decimal) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if compareAt != nil && compareAt.LessThan(price) {
		return pkgerrors.New(pkgerrors.CodeValidation, "compare_at_price must not be below price")
	}
	return nil
}

func normalizeImages(raw []string) ([]string, error) {
	images := media.NormalizeAll(raw)
	if len(images) > maxImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d images", maxImages))
	}
	return images, nil
}

func cleanCategories(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func roundPtr(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	r := v.Round(2)
	return &r
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
