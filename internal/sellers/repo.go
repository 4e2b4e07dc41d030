package sellers

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

// Repository persists sellers and reads the dashboard aggregates.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

func (r *Repository) Create(ctx context.Context, seller *models.Seller) error {
	repo.EnsureID(&seller.ID)
	return r.DB(ctx).Create(seller).Error
}

func (r *Repository) Save(ctx context.Context, seller *models.Seller) error {
	return r.DB(ctx).Save(seller).Error
}

func (r *Repository) UpdateColumns(ctx context.Context, id uuid.UUID, values map[string]any) error {
	return r.DB(ctx).Model(&models.Seller{}).Where("id = ?", id).Updates(values).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := r.DB(ctx).First(&seller, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := repo.ForUpdate(r.DB(ctx)).First(&seller, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := r.DB(ctx).First(&seller, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Seller, error) {
	var seller models.Seller
	if err := r.DB(ctx).First(&seller, "shop_slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int64
	err := r.DB(ctx).Model(&models.Seller{}).Where("shop_slug = ?", slug).Count(&n).Error
	return n > 0, err
}

// ListingCounts returns the seller's listings per state.
func (r *Repository) ListingCounts(ctx context.Context, sellerID uuid.UUID) (map[enums.ListingState]int64, error) {
	var rows []struct {
		State enums.ListingState
		Total int64
	}
	err := r.DB(ctx).Model(&models.Listing{}).
		Select("state, COUNT(*) AS total").
		Where("seller_id = ?", sellerID).
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.ListingState]int64, len(rows))
	for _, row := range rows {
		out[row.State] = row.Total
	}
	return out, nil
}

// OrderCounts returns the seller's orders per status.
func (r *Repository) OrderCounts(ctx context.Context, sellerID uuid.UUID) (map[enums.OrderStatus]int64, error) {
	var rows []struct {
		Status enums.OrderStatus
		Total  int64
	}
	err := r.DB(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS total").
		Where("seller_id = ?", sellerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// SalesTotals sums settled orders: gross is subtotal minus discount.
func (r *Repository) SalesTotals(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	var row struct {
		Gross decimal.NullDecimal
		Fees  decimal.NullDecimal
	}
	err := r.DB(ctx).Model(&models.Order{}).
		Select("SUM(subtotal - discount) AS gross, SUM(platform_fee) AS fees").
		Where("seller_id = ? AND status IN ?", sellerID, enums.SettledOrderStatuses()).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return row.Gross.Decimal, row.Fees.Decimal, nil
}

// ReviewStats returns the average rating and count of visible reviews.
func (r *Repository) ReviewStats(ctx context.Context, sellerID uuid.UUID) (float64, int64, error) {
	var row struct {
		Average *float64
		Total   int64
	}
	err := r.DB(ctx).Model(&models.Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS total").
		Where("seller_id = ? AND status = ?", sellerID, enums.ReviewStatusVisible).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.Average == nil {
		return 0, row.Total, nil
	}
	return *row.Average, row.Total, nil
}
