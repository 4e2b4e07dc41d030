package verification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

// IssueInput requests a new code, sent to the contact on file.
type IssueInput struct {
	Type enums.VerificationType `json:"type" validate:"required"`
}

// IssueResult describes the pending request. DevCode is only set for phone
// codes outside production-like environments.
type IssueResult struct {
	RequestID uuid.UUID              `json:"request_id"`
	Type      enums.VerificationType `json:"type"`
	ExpiresAt time.Time              `json:"expires_at"`
	DevCode   string                 `json:"dev_code,omitempty"`
}

// VerifyInput submits a code.
type VerifyInput struct {
	Type enums.VerificationType `json:"type" validate:"required"`
	Code string                 `json:"code" validate:"required,len=6,numeric"`
}

// VerifyResult reports the outcome of a successful verification.
type VerifyResult struct {
	Type              enums.VerificationType `json:"type"`
	Verified          bool                   `json:"verified"`
	VerificationLevel int                    `json:"verification_level"`
}

// Submission is the business information a seller submits for review.
type Submission struct {
	BusinessType    *enums.BusinessType `json:"business_type,omitempty"`
	BusinessName    *string             `json:"business_name,omitempty" validate:"omitempty,max=200"`
	TaxID           *string             `json:"tax_id,omitempty" validate:"omitempty,max=64"`
	BusinessLicense *string             `json:"business_license,omitempty" validate:"omitempty,max=128"`
	BusinessAddress *string             `json:"business_address,omitempty" validate:"omitempty,max=500"`
	BusinessPhone   *string             `json:"business_phone,omitempty" validate:"omitempty,max=32"`
	Notes           *string             `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// DecisionInput carries the reviewer's notes.
type DecisionInput struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// QueueParams filters the review queue. Status defaults to pending.
type QueueParams struct {
	Status *enums.ReviewQueueStatus
	Limit  int
	Cursor string
}

type QueueItemDTO struct {
	ID          uuid.UUID               `json:"id"`
	SellerID    uuid.UUID               `json:"seller_id"`
	UserID      uuid.UUID               `json:"user_id"`
	Priority    int                     `json:"priority"`
	RiskFactors []string                `json:"risk_factors"`
	Status      enums.ReviewQueueStatus `json:"status"`
	ReviewedBy  *uuid.UUID              `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time              `json:"reviewed_at,omitempty"`
	Notes       *string                 `json:"notes,omitempty"`
	Submission  json.RawMessage         `json:"submission"`
	CreatedAt   time.Time               `json:"created_at"`
}

func queueItemFromModel(m *models.SellerReviewQueueItem) QueueItemDTO {
	risks := []string(m.RiskFactors)
	if risks == nil {
		risks = []string{}
	}
	return QueueItemDTO{
		ID:          m.ID,
		SellerID:    m.SellerID,
		UserID:      m.UserID,
		Priority:    m.Priority,
		RiskFactors: risks,
		Status:      m.Status,
		ReviewedBy:  m.ReviewedBy,
		ReviewedAt:  m.ReviewedAt,
		Notes:       m.Notes,
		Submission:  m.Submission,
		CreatedAt:   m.CreatedAt,
	}
}

type AuditEntryDTO struct {
	ID               uuid.UUID               `json:"id"`
	ActorID          *uuid.UUID              `json:"actor_id,omitempty"`
	Action           enums.AuditAction       `json:"action"`
	VerificationType *enums.VerificationType `json:"verification_type,omitempty"`
	Details          json.RawMessage         `json:"details,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}
