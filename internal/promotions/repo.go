package promotions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
)

// Repository persists promotions and their redemptions.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

func (r *Repository) Create(ctx context.Context, p *models.Promotion) error {
	repo.EnsureID(&p.ID)
	return r.DB(ctx).Create(p).Error
}

func (r *Repository) Save(ctx context.Context, p *models.Promotion) error {
	return r.DB(ctx).Save(p).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Delete(&models.Promotion{}, "id = ?", id).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	var p models.Promotion
	if err := r.DB(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByCode matches code case-insensitively within a seller.
func (r *Repository) FindByCode(ctx context.Context, sellerID uuid.UUID, code string) (*models.Promotion, error) {
	var p models.Promotion
	err := r.DB(ctx).Where("seller_id = ? AND UPPER(code) = ?", sellerID, code).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Promotion, error) {
	var rows []models.Promotion
	err := r.DB(ctx).Where("seller_id = ?", sellerID).Order("created_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

// Redeem takes one use atomically. It reports false when the promotion is
// inactive or its limit is reached.
func (r *Repository) Redeem(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.DB(ctx).Model(&models.Promotion{}).
		Where("id = ? AND active = ? AND (max_uses IS NULL OR current_uses + 1 <= max_uses)", id, true).
		Updates(map[string]any{
			"current_uses": gorm.Expr("current_uses + 1"),
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) CreateRedemption(ctx context.Context, red *models.PromotionRedemption) error {
	repo.EnsureID(&red.ID)
	return r.DB(ctx).Create(red).Error
}

func (r *Repository) CountRedemptions(ctx context.Context, promotionID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB(ctx).Model(&models.PromotionRedemption{}).Where("promotion_id = ?", promotionID).Count(&n).Error
	return n, err
}
