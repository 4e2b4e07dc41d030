package favorites

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

// Repository encapsulates favorites persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a favorites repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddItem inserts a favorite and ignores duplicates.
func (r *Repository) AddItem(ctx context.Context, userID, listingID uuid.UUID, now time.Time) error {
	if userID == uuid.Nil || listingID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	return r.db.WithContext(ctx).
		Exec(`INSERT INTO favorites (id, user_id, listing_id, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (user_id, listing_id) DO NOTHING`,
			uuid.New(), userID, listingID, now).
		Error
}

// RemoveItem deletes the user-listing favorite if it exists.
func (r *Repository) RemoveItem(ctx context.Context, userID, listingID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Delete(&models.Favorite{}).
		Error
}

// ListItems returns favorites joined to their listing, newest first.
func (r *Repository) ListItems(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]favoriteRecord, error) {
	selectColumns := []string{
		"f.id AS favorite_id",
		"f.created_at AS favorite_created_at",
		"l.id AS listing_id",
		"l.seller_id",
		"l.title",
		"l.price",
		"l.currency",
		"l.state",
		"l.images",
	}
	q := r.db.WithContext(ctx).
		Table("favorites f").
		Select(strings.Join(selectColumns, ", ")).
		Joins("JOIN listings l ON l.id = f.listing_id").
		Where("f.user_id = ?", userID)
	if cursor != nil {
		q = q.Where("(f.created_at < ?) OR (f.created_at = ? AND f.id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	q = q.Order("f.created_at DESC").Order("f.id DESC").Limit(pagination.LimitWithBuffer(limit))

	var records []favoriteRecord
	if err := q.Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListItemIDs returns only the listing IDs a user has favorited.
func (r *Repository) ListItemIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Favorite{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("listing_id", &ids).Error
	return ids, err
}

// CountForListing reports how many users favorited a listing.
func (r *Repository) CountForListing(ctx context.Context, listingID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Favorite{}).Where("listing_id = ?", listingID).Count(&n).Error
	return n, err
}
