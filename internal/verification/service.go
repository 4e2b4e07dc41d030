package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/audit"
	"github.com/curiomarket/curio-backend/internal/sellers"
	"github.com/curiomarket/curio-backend/internal/users"
	"github.com/curiomarket/curio-backend/pkg/config"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/email"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/outbox"
	"github.com/curiomarket/curio-backend/pkg/outbox/payloads"
	"github.com/curiomarket/curio-backend/pkg/pagination"
	"github.com/curiomarket/curio-backend/pkg/security"
)

const auditPageSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type auditLog interface {
	audit.Recorder
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.VerificationAudit, error)
}

// Service issues verification codes and runs the seller review queue.
type Service interface {
	IssueCode(ctx context.Context, userID uuid.UUID, t enums.VerificationType) (*IssueResult, error)
	VerifyCode(ctx context.Context, userID uuid.UUID, input VerifyInput) (*VerifyResult, error)
	SubmitSellerVerification(ctx context.Context, userID uuid.UUID, submission Submission) (*QueueItemDTO, error)
	GetVerificationQueue(ctx context.Context, params QueueParams) (*pagination.Page[QueueItemDTO], error)
	ApproveSeller(ctx context.Context, adminID, queueID uuid.UUID, notes string) (*QueueItemDTO, error)
	RejectSeller(ctx context.Context, adminID, queueID uuid.UUID, notes string) (*QueueItemDTO, error)
	PendingQueueLength(ctx context.Context) (int64, error)
	ListAuditLog(ctx context.Context, userID uuid.UUID) ([]AuditEntryDTO, error)
	Cleanup(ctx context.Context, retention time.Duration) (expired, purged int64, err error)
}

// ServiceParams groups the verification service dependencies.
type ServiceParams struct {
	Repo              *Repository
	Users             *users.Repository
	Sellers           *sellers.Repository
	Audit             auditLog
	Outbox            outbox.Emitter
	Limiter           rateLimiter
	Mailer            email.Sender
	Renderer          *email.Renderer
	TransactionRunner txRunner
	Logger            *logger.Logger
	Config            config.VerificationConfig
	// ExposeDevCodes returns phone codes in the response. Only set in dev.
	ExposeDevCodes bool
	Now            func() time.Time
}

type service struct {
	repo     *Repository
	users    *users.Repository
	sellers  *sellers.Repository
	audit    auditLog
	outbox   outbox.Emitter
	limiter  rateLimiter
	mailer   email.Sender
	renderer *email.Renderer
	tx       txRunner
	logg     *logger.Logger
	cfg      config.VerificationConfig
	argon    security.ArgonParams
	devCodes bool
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("verification repo required")
	case params.Users == nil:
		return nil, fmt.Errorf("users repo required")
	case params.Sellers == nil:
		return nil, fmt.Errorf("sellers repo required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit log required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Limiter == nil:
		return nil, fmt.Errorf("rate limiter required")
	case params.Mailer == nil || params.Renderer == nil:
		return nil, fmt.Errorf("mailer and renderer required")
	case params.TransactionRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 15 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.IssueLimit <= 0 {
		cfg.IssueLimit = 5
	}
	if cfg.IssueWindow <= 0 {
		cfg.IssueWindow = 15 * time.Minute
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		users:    params.Users,
		sellers:  params.Sellers,
		audit:    params.Audit,
		outbox:   params.Outbox,
		limiter:  params.Limiter,
		mailer:   params.Mailer,
		renderer: params.Renderer,
		tx:       params.TransactionRunner,
		logg:     params.Logger,
		cfg:      cfg,
		argon:    security.ParamsFromConfig(cfg),
		devCodes: params.ExposeDevCodes,
		now:      now,
	}, nil
}

// IssueCode creates a fresh code for (user, type) and supersedes any pending
// one. Email, identity and address codes go to the e-mail on file; phone
// codes are only logged since SMS delivery is not wired.
func (s *service) IssueCode(ctx context.Context, userID uuid.UUID, t enums.VerificationType) (*IssueResult, error) {
	if !t.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid verification type")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "verification_type": string(t)})

	allowed, _, err := s.limiter.FixedWindowAllow(ctx, "verification:"+userID.String()+":"+string(t), int64(s.cfg.IssueLimit), s.cfg.IssueWindow)
	if err != nil {
		s.logg.Error(ctx, "verification rate limit check failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit unavailable")
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many verification codes requested")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	target, err := targetFor(user, t)
	if err != nil {
		return nil, err
	}

	code, err := security.GenerateCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
	}
	hash, err := security.HashCode(code, s.argon)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash code")
	}

	now := s.now().UTC()
	req := &models.VerificationRequest{
		UserID:      userID,
		Type:        t,
		CodeHash:    hash,
		Target:      &target,
		ExpiresAt:   now.Add(s.cfg.CodeTTL),
		MaxAttempts: s.cfg.MaxAttempts,
		Status:      enums.VerificationRequestPending,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		superseded, err := repo.SupersedePending(ctx, userID, t, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "supersede pending codes")
		}
		if err := repo.CreateRequest(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store verification request")
		}
		vt := t
		return s.audit.Record(ctx, tx, audit.Entry{
			UserID:           userID,
			ActorID:          &userID,
			Action:           enums.AuditCodeIssued,
			VerificationType: &vt,
			Details:          map[string]any{"request_id": req.ID.String(), "superseded": superseded},
		})
	})
	if err != nil {
		return nil, err
	}

	out := &IssueResult{RequestID: req.ID, Type: t, ExpiresAt: req.ExpiresAt}
	if t == enums.VerificationTypePhone {
		if s.devCodes {
			s.logg.Info(s.logg.WithField(ctx, "code", code), "phone verification code issued")
			out.DevCode = code
		} else {
			s.logg.Info(ctx, "phone verification code issued; sms delivery disabled")
		}
		return out, nil
	}

	msg, err := s.renderer.Render(email.TemplateVerificationCode, target, user.DisplayName(), map[string]any{
		"Name":             strings.TrimSpace(deref(user.FirstName)),
		"Type":             string(t),
		"Code":             code,
		"ExpiresInMinutes": int(s.cfg.CodeTTL.Minutes()),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render verification e-mail")
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logg.Error(ctx, "verification e-mail failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send verification e-mail")
	}
	s.logg.Info(ctx, "verification code issued")
	return out, nil
}

func targetFor(user *models.User, t enums.VerificationType) (string, error) {
	if t == enums.VerificationTypePhone {
		phone := strings.TrimSpace(deref(user.Phone))
		if phone == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "add a phone number before verifying it")
		}
		return phone, nil
	}
	addr := strings.TrimSpace(deref(user.Email))
	if addr == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "an e-mail address is required")
	}
	return addr, nil
}

type verifyOutcome int

const (
	outcomeVerified verifyOutcome = iota
	outcomeMismatch
	outcomeLocked
	outcomeExpired
)

// VerifyCode checks code against the single pending request for the type.
// Failed attempts and lockouts are committed before the error is returned.
func (s *service) VerifyCode(ctx context.Context, userID uuid.UUID, input VerifyInput) (*VerifyResult, error) {
	t := input.Type
	if !t.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid verification type")
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "verification_type": string(t)})

	var (
		outcome   verifyOutcome
		remaining int
		level     int
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()
		req, err := repo.FindPendingForUpdate(ctx, userID, t)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no pending verification code")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load verification request")
		}
		vt := t
		entry := audit.Entry{UserID: userID, ActorID: &userID, VerificationType: &vt, Details: map[string]any{"request_id": req.ID.String()}}

		if req.Expired(now) {
			req.Status = enums.VerificationRequestExpired
			outcome = outcomeExpired
			return repo.SaveRequest(ctx, req)
		}
		if req.Attempts >= req.MaxAttempts {
			req.Status = enums.VerificationRequestLocked
			outcome = outcomeLocked
			return repo.SaveRequest(ctx, req)
		}

		req.Attempts++
		ok, err := security.VerifyCode(code, req.CodeHash)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compare code")
		}
		if !ok {
			outcome = outcomeMismatch
			entry.Action = enums.AuditCodeFailed
			if req.Attempts >= req.MaxAttempts {
				req.Status = enums.VerificationRequestLocked
				outcome = outcomeLocked
				entry.Action = enums.AuditCodeLocked
			}
			remaining = req.MaxAttempts - req.Attempts
			entry.Details["attempts"] = req.Attempts
			if err := repo.SaveRequest(ctx, req); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record attempt")
			}
			return s.audit.Record(ctx, tx, entry)
		}

		req.Status = enums.VerificationRequestVerified
		req.VerifiedAt = &now
		if err := repo.SaveRequest(ctx, req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark request verified")
		}
		userRepo := s.users.WithTx(tx)
		user, err := userRepo.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		setFlag(user, t)
		approved, err := s.sellerApproved(ctx, tx, userID)
		if err != nil {
			return err
		}
		level = ComputeLevel(user, approved)
		if err := userRepo.UpdateColumns(ctx, userID, map[string]any{
			flagColumn(t):        true,
			"verification_level": level,
			"updated_at":         now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user verification")
		}
		outcome = outcomeVerified
		entry.Action = enums.AuditCodeVerified
		entry.Details["verification_level"] = level
		return s.audit.Record(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	switch outcome {
	case outcomeExpired:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification code expired")
	case outcomeLocked:
		s.logg.Warn(ctx, "verification request locked")
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many failed attempts; request a new code")
	case outcomeMismatch:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid verification code").
			WithDetails(map[string]any{"attempts_remaining": remaining})
	}
	s.logg.Info(ctx, "verification succeeded")
	return &VerifyResult{Type: t, Verified: true, VerificationLevel: level}, nil
}

func (s *service) sellerApproved(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (bool, error) {
	seller, err := s.sellers.WithTx(tx).FindByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	return seller.VerificationStatus == enums.SellerVerificationApproved, nil
}

// SubmitSellerVerification queues the seller's business details for review.
// Every submission is a new queue entry.
func (s *service) SubmitSellerVerification(ctx context.Context, userID uuid.UUID, submission Submission) (*QueueItemDTO, error) {
	if submission.BusinessType != nil && !submission.BusinessType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid business type")
	}
	priority, risks := ComputePriority(submission)
	raw, err := json.Marshal(submission)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode submission")
	}

	var item *models.SellerReviewQueueItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sellerRepo := s.sellers.WithTx(tx)
		seller, err := sellerRepo.FindByUserID(ctx, userID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "open a shop before requesting verification")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
		}
		if seller.VerificationStatus == enums.SellerVerificationApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "seller already verified")
		}

		now := s.now().UTC()
		values := map[string]any{
			"verification_status": enums.SellerVerificationPending,
			"risk_score":          priority,
			"updated_at":          now,
		}
		fields := map[string]*string{
			"business_name":    submission.BusinessName,
			"tax_id":           submission.TaxID,
			"business_license": submission.BusinessLicense,
			"business_address": submission.BusinessAddress,
			"business_phone":   submission.BusinessPhone,
		}
		for column, v := range fields {
			if present(v) {
				values[column] = strings.TrimSpace(*v)
			}
		}
		if submission.BusinessType != nil {
			values["business_type"] = *submission.BusinessType
		}
		if err := sellerRepo.UpdateColumns(ctx, seller.ID, values); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update seller")
		}

		item = &models.SellerReviewQueueItem{
			SellerID:    seller.ID,
			UserID:      userID,
			Priority:    priority,
			RiskFactors: pq.StringArray(risks),
			Status:      enums.ReviewQueuePending,
			Submission:  raw,
		}
		if err := s.repo.WithTx(tx).CreateQueueItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create queue entry")
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			UserID:  userID,
			ActorID: &userID,
			Action:  enums.AuditSellerSubmitted,
			Details: map[string]any{"queue_id": item.ID.String(), "priority": priority, "risk_factors": risks},
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, userID, "", enums.EventSellerVerificationSubmitted, seller.ID, payloads.SellerVerificationSubmitted{
			SellerID: seller.ID,
			UserID:   userID,
			QueueID:  item.ID,
			Priority: priority,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":  userID.String(),
		"queue_id": item.ID.String(),
		"priority": priority,
	}), "seller verification submitted")
	dto := queueItemFromModel(item)
	return &dto, nil
}

func (s *service) GetVerificationQueue(ctx context.Context, params QueueParams) (*pagination.Page[QueueItemDTO], error) {
	status := enums.ReviewQueuePending
	if params.Status != nil {
		if !params.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid queue status")
		}
		status = *params.Status
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil && cursor.Rank == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListQueue(ctx, status, cursor, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list review queue")
	}
	dtos := make([]QueueItemDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, queueItemFromModel(&rows[i]))
	}
	page := pagination.Build(dtos, limit, func(item QueueItemDTO) pagination.Cursor {
		rank := int64(item.Priority)
		return pagination.Cursor{Rank: &rank, CreatedAt: item.CreatedAt, ID: item.ID}
	})
	return &page, nil
}

func (s *service) ApproveSeller(ctx context.Context, adminID, queueID uuid.UUID, notes string) (*QueueItemDTO, error) {
	return s.decide(ctx, adminID, queueID, notes, true)
}

func (s *service) RejectSeller(ctx context.Context, adminID, queueID uuid.UUID, notes string) (*QueueItemDTO, error) {
	return s.decide(ctx, adminID, queueID, notes, false)
}

func (s *service) decide(ctx context.Context, adminID, queueID uuid.UUID, notes string, approve bool) (*QueueItemDTO, error) {
	queueStatus, sellerStatus, action := enums.ReviewQueueRejected, enums.SellerVerificationRejected, enums.AuditSellerRejected
	if approve {
		queueStatus, sellerStatus, action = enums.ReviewQueueApproved, enums.SellerVerificationApproved, enums.AuditSellerApproved
	}
	notes = strings.TrimSpace(notes)

	var item *models.SellerReviewQueueItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		item, err = repo.FindQueueItemForUpdate(ctx, queueID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "queue entry not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load queue entry")
		}
		if item.Status != enums.ReviewQueuePending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "queue entry already decided").
				WithDetails(map[string]any{"status": item.Status})
		}
		now := s.now().UTC()
		reviewer := adminID
		item.Status = queueStatus
		item.ReviewedBy = &reviewer
		item.ReviewedAt = &now
		if notes != "" {
			item.Notes = &notes
		}
		if err := repo.SaveQueueItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update queue entry")
		}
		if err := s.sellers.WithTx(tx).UpdateColumns(ctx, item.SellerID, map[string]any{
			"verification_status": sellerStatus,
			"updated_at":          now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update seller status")
		}

		details := map[string]any{"queue_id": item.ID.String()}
		if notes != "" {
			details["notes"] = notes
		}
		if approve {
			userRepo := s.users.WithTx(tx)
			user, err := userRepo.FindByIDForUpdate(ctx, item.UserID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller user")
			}
			level := ComputeLevel(user, true)
			if level < user.VerificationLevel {
				level = user.VerificationLevel
			}
			if err := userRepo.UpdateColumns(ctx, user.ID, map[string]any{"verification_level": level, "updated_at": now}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "raise verification level")
			}
			details["verification_level"] = level
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			UserID:  item.UserID,
			ActorID: &reviewer,
			Action:  action,
			Details: details,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, adminID, string(enums.UserRoleAdmin), enums.EventSellerVerificationDecided, item.SellerID, payloads.SellerVerificationDecided{
			SellerID: item.SellerID,
			UserID:   item.UserID,
			QueueID:  item.ID,
			Decision: sellerStatus,
			Notes:    notes,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"queue_id": item.ID.String(),
		"admin_id": adminID.String(),
		"decision": string(sellerStatus),
	}), "seller verification decided")
	dto := queueItemFromModel(item)
	return &dto, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actorID uuid.UUID, role string, eventType enums.OutboxEventType, sellerID uuid.UUID, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSeller,
		AggregateID:   sellerID,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: role},
		Data:          data,
		OccurredAt:    s.now().UTC(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit seller verification event")
	}
	return nil
}

func (s *service) PendingQueueLength(ctx context.Context) (int64, error) {
	n, err := s.repo.CountQueue(ctx, enums.ReviewQueuePending)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count review queue")
	}
	return n, nil
}

func (s *service) ListAuditLog(ctx context.Context, userID uuid.UUID) ([]AuditEntryDTO, error) {
	rows, err := s.audit.ListForUser(ctx, userID, auditPageSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list audit log")
	}
	out := make([]AuditEntryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, AuditEntryDTO{
			ID:               row.ID,
			ActorID:          row.ActorID,
			Action:           row.Action,
			VerificationType: row.VerificationType,
			Details:          row.Details,
			CreatedAt:        row.CreatedAt,
		})
	}
	return out, nil
}

// Cleanup expires stale pending codes and deletes finished requests older
// than retention.
func (s *service) Cleanup(ctx context.Context, retention time.Duration) (int64, int64, error) {
	now := s.now().UTC()
	expired, err := s.repo.ExpireStale(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("expire stale codes: %w", err)
	}
	purged, err := s.repo.PurgeBefore(ctx, now.Add(-retention))
	if err != nil {
		return expired, 0, fmt.Errorf("purge verification requests: %w", err)
	}
	return expired, purged, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
