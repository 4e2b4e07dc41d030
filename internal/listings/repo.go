package listings

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

// Repository persists listings.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

func (r *Repository) Create(ctx context.Context, listing *models.Listing) error {
	repo.EnsureID(&listing.ID)
	return r.DB(ctx).Create(listing).Error
}

func (r *Repository) Save(ctx context.Context, listing *models.Listing) error {
	return r.DB(ctx).Save(listing).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Delete(&models.Listing{}, "id = ?", id).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.DB(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := repo.ForUpdate(r.DB(ctx)).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *Repository) FindMany(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error) {
	var rows []models.Listing
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// FindManyForUpdate locks the listings in id order.
func (r *Repository) FindManyForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error) {
	var rows []models.Listing
	if len(ids) == 0 {
		return rows, nil
	}
	err := repo.ForUpdate(r.DB(ctx)).Where("id IN ?", ids).Order("id ASC").Find(&rows).Error
	return rows, err
}

// AdjustStock adds delta to stock. A negative result fails the stock check
// constraint or matches no row.
func (r *Repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	res := r.DB(ctx).Model(&models.Listing{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	return res.RowsAffected == 1, res.Error
}

// List applies filter in newest-first order.
func (r *Repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor) ([]models.Listing, error) {
	conn := r.DB(ctx)
	q := conn.Model(&models.Listing{})
	if filter.SellerID != nil {
		q = q.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.State != nil {
		q = q.Where("state = ?", *filter.State)
	}
	if c := strings.TrimSpace(filter.CategoryID); c != "" {
		if conn.Dialector.Name() == "postgres" {
			q = q.Where("? = ANY(category_ids)", c)
		} else {
			q = q.Where("category_ids LIKE ?", "%"+c+"%")
		}
	}
	if text := strings.TrimSpace(filter.Query); text != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(text)+"%")
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	q = repo.AfterCursor(q, cursor, true)

	var rows []models.Listing
	err := q.Limit(pagination.LimitWithBuffer(filter.Limit)).Find(&rows).Error
	return rows, err
}

// Each walks listings in primary key order, in batches. An empty states slice
// means every state.
func (r *Repository) Each(ctx context.Context, states []enums.ListingState, fn func([]models.Listing) error) error {
	q := r.DB(ctx).Model(&models.Listing{})
	if len(states) > 0 {
		q = q.Where("state IN ?", states)
	}
	var batch []models.Listing
	return q.FindInBatches(&batch, 500, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}
