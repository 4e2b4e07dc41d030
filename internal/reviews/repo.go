package reviews

import (
	"context"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

// Repository persists reviews.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	repo.EnsureID(&review.ID)
	return r.DB(ctx).Create(review).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.DB(ctx).First(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.ReviewStatus) error {
	return r.DB(ctx).Model(&models.Review{}).Where("id = ?", id).Update("status", status).Error
}

// ListVisible pages visible reviews for one column, newest first.
func (r *Repository) ListVisible(ctx context.Context, column string, id uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	q := r.DB(ctx).Where(column+" = ? AND status = ?", id, enums.ReviewStatusVisible)
	q = repo.AfterCursor(q, cursor, true)
	var rows []models.Review
	err := q.Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error
	return rows, err
}

// Stats averages visible ratings for one column, rounded to one decimal.
func (r *Repository) Stats(ctx context.Context, column string, id uuid.UUID) (float64, int64, error) {
	var row struct {
		Average *float64
		Total   int64
	}
	err := r.DB(ctx).Model(&models.Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS total").
		Where(column+" = ? AND status = ?", id, enums.ReviewStatusVisible).
		Scan(&row).Error
	if err != nil || row.Average == nil {
		return 0, row.Total, err
	}
	return math.Round(*row.Average*10) / 10, row.Total, nil
}
