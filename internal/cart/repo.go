package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

// Repository persists carts and their items.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// FindActive loads the owner's active cart with its items in insertion order.
func (r *Repository) FindActive(ctx context.Context, owner Owner) (*models.Cart, error) {
	q := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("status = ?", enums.CartStatusActive)
	if owner.UserID != uuid.Nil {
		q = q.Where("user_id = ?", owner.UserID)
	} else {
		q = q.Where("session_id = ? AND user_id IS NULL", owner.session())
	}
	var c models.Cart
	if err := q.First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Create(ctx context.Context, c *models.Cart) error {
	repo.EnsureID(&c.ID)
	return r.DB(ctx).Omit("Items").Create(c).Error
}

func (r *Repository) Touch(ctx context.Context, cartID uuid.UUID, now time.Time) error {
	return r.DB(ctx).Model(&models.Cart{}).Where("id = ?", cartID).UpdateColumn("updated_at", now).Error
}

func (r *Repository) SetStatus(ctx context.Context, cartID uuid.UUID, status enums.CartStatus) error {
	return r.DB(ctx).Model(&models.Cart{}).Where("id = ?", cartID).Update("status", status).Error
}

func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	repo.EnsureID(&item.ID)
	return r.DB(ctx).Create(item).Error
}

func (r *Repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.DB(ctx).Save(item).Error
}

func (r *Repository) DeleteItem(ctx context.Context, cartID, listingID uuid.UUID) (bool, error) {
	res := r.DB(ctx).Where("cart_id = ? AND listing_id = ?", cartID, listingID).Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.DB(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

func (r *Repository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	if err := r.DeleteItems(ctx, cartID); err != nil {
		return err
	}
	return r.DB(ctx).Delete(&models.Cart{}, "id = ?", cartID).Error
}

// DeleteStaleAnonymous removes session carts untouched since cutoff and
// returns how many carts went.
func (r *Repository) DeleteStaleAnonymous(ctx context.Context, cutoff time.Time) (int64, error) {
	stale := r.DB(ctx).Model(&models.Cart{}).Select("id").
		Where("user_id IS NULL AND updated_at < ?", cutoff)
	if err := r.DB(ctx).Where("cart_id IN (?)", stale).Delete(&models.CartItem{}).Error; err != nil {
		return 0, err
	}
	res := r.DB(ctx).Where("user_id IS NULL AND updated_at < ?", cutoff).Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}
