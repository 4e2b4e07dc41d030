package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

// Repository owns verification_requests and seller_review_queue.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

func (r *Repository) CreateRequest(ctx context.Context, req *models.VerificationRequest) error {
	repo.EnsureID(&req.ID)
	return r.DB(ctx).Create(req).Error
}

// SupersedePending retires every pending request for (user, type).
func (r *Repository) SupersedePending(ctx context.Context, userID uuid.UUID, t enums.VerificationType, now time.Time) (int64, error) {
	res := r.DB(ctx).Model(&models.VerificationRequest{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, t, enums.VerificationRequestPending).
		Updates(map[string]any{"status": enums.VerificationRequestSuperseded, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *Repository) FindPendingForUpdate(ctx context.Context, userID uuid.UUID, t enums.VerificationType) (*models.VerificationRequest, error) {
	var req models.VerificationRequest
	err := repo.ForUpdate(r.DB(ctx)).
		Where("user_id = ? AND type = ? AND status = ?", userID, t, enums.VerificationRequestPending).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repository) SaveRequest(ctx context.Context, req *models.VerificationRequest) error {
	return r.DB(ctx).Save(req).Error
}

// ExpireStale marks pending requests past their expiry as expired.
func (r *Repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB(ctx).Model(&models.VerificationRequest{}).
		Where("status = ? AND expires_at <= ?", enums.VerificationRequestPending, now).
		Updates(map[string]any{"status": enums.VerificationRequestExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

// PurgeBefore deletes finished requests created before cutoff.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB(ctx).
		Where("status <> ? AND created_at < ?", enums.VerificationRequestPending, cutoff).
		Delete(&models.VerificationRequest{})
	return res.RowsAffected, res.Error
}

func (r *Repository) CreateQueueItem(ctx context.Context, item *models.SellerReviewQueueItem) error {
	repo.EnsureID(&item.ID)
	return r.DB(ctx).Create(item).Error
}

func (r *Repository) FindQueueItemForUpdate(ctx context.Context, id uuid.UUID) (*models.SellerReviewQueueItem, error) {
	var item models.SellerReviewQueueItem
	if err := repo.ForUpdate(r.DB(ctx)).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) SaveQueueItem(ctx context.Context, item *models.SellerReviewQueueItem) error {
	return r.DB(ctx).Save(item).Error
}

// ListQueue returns entries in review order: priority, then age.
func (r *Repository) ListQueue(ctx context.Context, status enums.ReviewQueueStatus, cursor *pagination.Cursor, limit int) ([]models.SellerReviewQueueItem, error) {
	q := r.DB(ctx).Model(&models.SellerReviewQueueItem{}).Where("status = ?", status)
	if cursor != nil && cursor.Rank != nil {
		rank := *cursor.Rank
		q = q.Where(
			"(priority > ?) OR (priority = ? AND created_at > ?) OR (priority = ? AND created_at = ? AND id > ?)",
			rank, rank, cursor.CreatedAt, rank, cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.SellerReviewQueueItem
	err := q.Order("priority ASC").Order("created_at ASC").Order("id ASC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) CountQueue(ctx context.Context, status enums.ReviewQueueStatus) (int64, error) {
	var n int64
	err := r.DB(ctx).Model(&models.SellerReviewQueueItem{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
