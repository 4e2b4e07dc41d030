package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/curiomarket/curio-backend/pkg/enums"
)

// VerificationRequest is one issued code. At most one row per (user, type) is
// pending; issuing a new code supersedes the previous one.
type VerificationRequest struct {
	ID          uuid.UUID                       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID                       `gorm:"column:user_id;type:uuid;not null;index"`
	Type        enums.VerificationType          `gorm:"column:type;type:text;not null"`
	CodeHash    string                          `gorm:"column:code_hash;not null"`
	Target      *string                         `gorm:"column:target"`
	ExpiresAt   time.Time                       `gorm:"column:expires_at;not null"`
	Attempts    int                             `gorm:"column:attempts;not null;default:0"`
	MaxAttempts int                             `gorm:"column:max_attempts;not null"`
	Status      enums.VerificationRequestStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	VerifiedAt  *time.Time                      `gorm:"column:verified_at"`
	CreatedAt   time.Time                       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                       `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the code can no longer be used at now.
func (r *VerificationRequest) Expired(now time.Time) bool {
	return r != nil && !now.Before(r.ExpiresAt)
}

// SellerReviewQueueItem is a seller business-verification submission awaiting
// an admin decision. Lower Priority values are reviewed first.
type SellerReviewQueueItem struct {
	ID          uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID               `gorm:"column:seller_id;type:uuid;not null;index"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	Priority    int                     `gorm:"column:priority;not null"`
	RiskFactors pq.StringArray          `gorm:"column:risk_factors;type:text[];not null;default:'{}'"`
	Status      enums.ReviewQueueStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ReviewedBy  *uuid.UUID              `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt  *time.Time              `gorm:"column:reviewed_at"`
	Notes       *string                 `gorm:"column:notes"`
	Submission  json.RawMessage         `gorm:"column:submission;type:jsonb;not null"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (SellerReviewQueueItem) TableName() string {
	return "seller_review_queue"
}

// VerificationAudit is an append-only record of verification actions.
type VerificationAudit struct {
	ID               uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	ActorID          *uuid.UUID              `gorm:"column:actor_id;type:uuid"`
	Action           enums.AuditAction       `gorm:"column:action;type:text;not null"`
	VerificationType *enums.VerificationType `gorm:"column:verification_type;type:text"`
	Details          json.RawMessage         `gorm:"column:details;type:jsonb"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (VerificationAudit) TableName() string {
	return "verification_audit_log"
}
