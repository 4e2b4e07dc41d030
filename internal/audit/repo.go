// Package audit persists the append-only verification and account audit log.
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

// Entry is one audit row to record.
type Entry struct {
	UserID           uuid.UUID
	ActorID          *uuid.UUID
	Action           enums.AuditAction
	VerificationType *enums.VerificationType
	Details          map[string]any
}

// Recorder writes audit rows inside a caller's transaction.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}

// Repository reads and writes verification_audit_log.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Record inserts entry using tx, or the base connection when tx is nil.
func (r *Repository) Record(ctx context.Context, tx *gorm.DB, entry Entry) error {
	conn := r.DB(ctx)
	if tx != nil {
		conn = tx.WithContext(ctx)
	}
	row := models.VerificationAudit{
		ID:               uuid.New(),
		UserID:           entry.UserID,
		ActorID:          entry.ActorID,
		Action:           entry.Action,
		VerificationType: entry.VerificationType,
	}
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return err
		}
		row.Details = raw
	}
	return conn.Create(&row).Error
}

// ListForUser returns the user's audit rows, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.VerificationAudit, error) {
	var rows []models.VerificationAudit
	q := r.DB(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
