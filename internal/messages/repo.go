package messages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

// Repository persists message threads and their messages.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// FindThread looks up the thread for a (buyer, seller, listing) triple.
func (r *Repository) FindThread(ctx context.Context, buyerID, sellerUserID uuid.UUID, listingID *uuid.UUID) (*models.MessageThread, error) {
	q := r.DB(ctx).Where("buyer_id = ? AND seller_user_id = ?", buyerID, sellerUserID)
	if listingID == nil {
		q = q.Where("listing_id IS NULL")
	} else {
		q = q.Where("listing_id = ?", *listingID)
	}
	var thread models.MessageThread
	if err := q.First(&thread).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *Repository) FindThreadByID(ctx context.Context, id uuid.UUID) (*models.MessageThread, error) {
	var thread models.MessageThread
	if err := r.DB(ctx).First(&thread, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *Repository) CreateThread(ctx context.Context, thread *models.MessageThread) error {
	repo.EnsureID(&thread.ID)
	return r.DB(ctx).Create(thread).Error
}

// AppendMessage inserts msg and bumps the thread's last activity.
func (r *Repository) AppendMessage(ctx context.Context, msg *models.Message) error {
	repo.EnsureID(&msg.ID)
	if err := r.DB(ctx).Create(msg).Error; err != nil {
		return err
	}
	return r.DB(ctx).Model(&models.MessageThread{}).
		Where("id = ?", msg.ThreadID).
		Updates(map[string]any{"last_message_at": msg.CreatedAt, "updated_at": msg.CreatedAt}).Error
}

// ListThreads pages a user's threads, newest first.
func (r *Repository) ListThreads(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.MessageThread, error) {
	q := r.DB(ctx).Where("(buyer_id = ? OR seller_user_id = ?)", userID, userID)
	q = repo.AfterCursor(q, cursor, true)
	var rows []models.MessageThread
	err := q.Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error
	return rows, err
}

// UnreadCounts returns unread messages not sent by userID, keyed by thread.
func (r *Repository) UnreadCounts(ctx context.Context, userID uuid.UUID, threadIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ThreadID uuid.UUID
		Total    int64
	}
	err := r.DB(ctx).Model(&models.Message{}).
		Select("thread_id, COUNT(*) AS total").
		Where("thread_id IN ? AND sender_id <> ? AND read_at IS NULL", threadIDs, userID).
		Group("thread_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ThreadID] = row.Total
	}
	return out, nil
}

// ListMessages pages a thread oldest first.
func (r *Repository) ListMessages(ctx context.Context, threadID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Message, error) {
	q := r.DB(ctx).Where("thread_id = ?", threadID)
	q = repo.AfterCursor(q, cursor, false)
	var rows []models.Message
	err := q.Limit(pagination.LimitWithBuffer(limit)).Find(&rows).Error
	return rows, err
}

// MarkRead stamps read_at on messages addressed to readerID.
func (r *Repository) MarkRead(ctx context.Context, threadID, readerID uuid.UUID, at time.Time) (int64, error) {
	res := r.DB(ctx).Model(&models.Message{}).
		Where("thread_id = ? AND sender_id <> ? AND read_at IS NULL", threadID, readerID).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}
