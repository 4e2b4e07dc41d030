package reviews

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/media"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

const reviewConstraint = "ux_reviews_order_listing"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Service manages buyer reviews of delivered listings.
type Service interface {
	Create(ctx context.Context, buyerID uuid.UUID, input CreateInput) (*ReviewDTO, error)
	ListForListing(ctx context.Context, listingID uuid.UUID, params pagination.Params) (*ReviewList, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ReviewList, error)
	Hide(ctx context.Context, adminID, reviewID uuid.UUID) (*ReviewDTO, error)
}

type ServiceParams struct {
	Repo              *Repository
	Orders            orderLoader
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type service struct {
	repo   *Repository
	orders orderLoader
	tx     txRunner
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reviews repo required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders loader required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, orders: params.Orders, tx: params.TransactionRunner, logg: params.Logger}, nil
}

// Create records a review for a listing in one of the buyer's delivered
// orders. Each (order, listing) pair takes one review.
func (s *service) Create(ctx context.Context, buyerID uuid.UUID, input CreateInput) (*ReviewDTO, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	images := media.NormalizeAll(input.Images)
	if len(images) > maxImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many images").WithDetails(map[string]any{"max": maxImages})
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been delivered").
			WithDetails(map[string]any{"status": order.Status})
	}
	if !containsListing(order, input.ListingID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing is not part of this order")
	}

	review := &models.Review{
		ListingID: input.ListingID,
		SellerID:  order.SellerID,
		BuyerID:   buyerID,
		OrderID:   order.ID,
		Rating:    input.Rating,
		Title:     trimmed(input.Title),
		Body:      strings.TrimSpace(input.Body),
		Images:    pq.StringArray(images),
		Status:    enums.ReviewStatusVisible,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, review)
	})
	if err != nil {
		if db.IsUniqueViolation(err, reviewConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "listing already reviewed for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create review")
	}
	return FromModel(review), nil
}

func (s *service) ListForListing(ctx context.Context, listingID uuid.UUID, params pagination.Params) (*ReviewList, error) {
	return s.list(ctx, "listing_id", listingID, params)
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ReviewList, error) {
	return s.list(ctx, "seller_id", sellerID, params)
}

func (s *service) list(ctx context.Context, column string, id uuid.UUID, params pagination.Params) (*ReviewList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	var (
		rows    []models.Review
		average float64
		count   int64
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		if rows, err = repo.ListVisible(ctx, column, id, cursor, limit); err != nil {
			return err
		}
		average, count, err = repo.Stats(ctx, column, id)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	dtos := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}
	page := pagination.Build(dtos, limit, func(r ReviewDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return &ReviewList{Items: page.Items, NextCursor: page.NextCursor, AverageRating: average, ReviewCount: count}, nil
}

func (s *service) Hide(ctx context.Context, adminID, reviewID uuid.UUID) (*ReviewDTO, error) {
	var out *models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := repo.FindByID(ctx, reviewID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
		}
		if review.Status == enums.ReviewStatusHidden {
			out = review
			return nil
		}
		if err := repo.SetStatus(ctx, review.ID, enums.ReviewStatusHidden); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hide review")
		}
		review.Status = enums.ReviewStatusHidden
		out = review
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"review_id": reviewID.String(), "admin_id": adminID.String()}), "review hidden")
	return FromModel(out), nil
}

func containsListing(order *models.Order, listingID uuid.UUID) bool {
	for _, item := range order.Items {
		if item.ListingID == listingID {
			return true
		}
	}
	return false
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
