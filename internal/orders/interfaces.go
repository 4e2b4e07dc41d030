package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/outbox"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByCheckoutGroup(ctx context.Context, groupID uuid.UUID) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, filter ListFilter, cursor *pagination.Cursor) ([]models.Order, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, filter ListFilter, cursor *pagination.Cursor) ([]models.Order, error)
	ListForExport(ctx context.Context, statuses []enums.OrderStatus, fn func([]models.Order) error) error
	Totals(ctx context.Context, statuses []enums.OrderStatus) (Totals, error)
}

// InventoryReleaser returns reserved stock to a listing.
type InventoryReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type sellerLookup interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Seller, error)
}
