package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

const exportBatchSize = 500

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order and its snapshotted items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	repo.EnsureID(&order.ID)
	for i := range order.Items {
		repo.EnsureID(&order.Items[i].ID)
		order.Items[i].OrderID = order.ID
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items", orderItems).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := repo.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	var items []models.OrderItem
	if err := orderItems(r.db.WithContext(ctx)).Where("order_id = ?", id).Find(&items).Error; err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (r *repository) FindByCheckoutGroup(ctx context.Context, groupID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		Where("checkout_group_id = ?", groupID).
		Order("seller_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) ListForBuyer(ctx context.Context, buyerID uuid.UUID, filter ListFilter, cursor *pagination.Cursor) ([]models.Order, error) {
	return r.list(ctx, "buyer_id = ?", buyerID, filter, cursor)
}

func (r *repository) ListForSeller(ctx context.Context, sellerID uuid.UUID, filter ListFilter, cursor *pagination.Cursor) ([]models.Order, error) {
	return r.list(ctx, "seller_id = ?", sellerID, filter, cursor)
}

func (r *repository) list(ctx context.Context, scope string, id uuid.UUID, filter ListFilter, cursor *pagination.Cursor) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items", orderItems).Where(scope, id)
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	q = repo.AfterCursor(q, cursor, true)
	var rows []models.Order
	err := q.Limit(pagination.LimitWithBuffer(filter.Limit)).Find(&rows).Error
	return rows, err
}

// ListForExport walks orders in primary-key batches with items loaded.
func (r *repository) ListForExport(ctx context.Context, statuses []enums.OrderStatus, fn func([]models.Order) error) error {
	q := r.db.WithContext(ctx).Preload("Items", orderItems)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var batch []models.Order
	return q.FindInBatches(&batch, exportBatchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}

// Totals sums order totals and platform fees across statuses.
func (r *repository) Totals(ctx context.Context, statuses []enums.OrderStatus) (Totals, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("COUNT(*) AS orders, COALESCE(SUM(total), 0) AS gmv, COALESCE(SUM(platform_fee), 0) AS fees")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out Totals
	err := q.Scan(&out).Error
	return out, err
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}
