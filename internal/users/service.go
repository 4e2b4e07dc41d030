package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/audit"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the user account surface.
type Service interface {
	UpsertFromOIDC(ctx context.Context, profile OIDCProfile) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*models.User, error)
	SetAccountStatus(ctx context.Context, actorID, userID uuid.UUID, status enums.AccountStatus) (*models.User, error)
	SetRole(ctx context.Context, actorID, userID uuid.UUID, role enums.UserRole) (*models.User, error)
	List(ctx context.Context, filter ListFilter) (*pagination.Page[UserDTO], error)
	CountByRole(ctx context.Context) (map[enums.UserRole]int64, error)
}

// ServiceParams groups the users service dependencies.
type ServiceParams struct {
	Repo              *Repository
	Audit             audit.Recorder
	TransactionRunner txRunner
	Now               func() time.Time
}

type service struct {
	repo  *Repository
	audit audit.Recorder
	tx    txRunner
	now   func() time.Time
}

// NewService validates deps and builds the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("users repo required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, audit: params.Audit, tx: params.TransactionRunner, now: now}, nil
}

// UpsertFromOIDC creates a buyer on first login, otherwise refreshes profile
// fields from the identity provider. The role is never touched.
func (s *service) UpsertFromOIDC(ctx context.Context, profile OIDCProfile) (*models.User, error) {
	subject := strings.TrimSpace(profile.Subject)
	if subject == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity subject missing")
	}
	email := optional(strings.ToLower(profile.Email))
	now := s.now().UTC()

	var out *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := repo.FindBySubject(ctx, subject)
		if err != nil && !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		if user == nil {
			user = &models.User{
				OIDCSubject:       subject,
				Role:              enums.UserRoleBuyer,
				AccountStatus:     enums.AccountStatusActive,
				SubscriptionState: enums.SubscriptionStateNone,
			}
			applyProfile(user, email, profile)
			user.LastLoginAt = &now
			if err := repo.Create(ctx, user); err != nil {
				if db.IsUniqueViolation(err, "ux_users_email") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already linked to another account")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
			}
			out = user
			return nil
		}
		applyProfile(user, email, profile)
		user.LastLoginAt = &now
		if err := repo.Save(ctx, user); err != nil {
			if db.IsUniqueViolation(err, "ux_users_email") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already linked to another account")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applyProfile(user *models.User, email *string, profile OIDCProfile) {
	if email != nil {
		if user.Email == nil || !strings.EqualFold(*user.Email, *email) {
			user.EmailVerified = false
		}
		user.Email = email
	}
	if v := optional(profile.FirstName); v != nil {
		user.FirstName = v
	}
	if v := optional(profile.LastName); v != nil {
		user.LastName = v
	}
	if v := optional(profile.ProfileImageURL); v != nil {
		user.ProfileImageURL = v
	}
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return user, nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*models.User, error) {
	values := map[string]any{}
	set := func(column string, v *string) {
		if v == nil {
			return
		}
		values[column] = optional(*v)
	}
	set("first_name", input.FirstName)
	set("last_name", input.LastName)
	set("profile_image_url", input.ProfileImageURL)
	if input.Phone != nil {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		phone := optional(*input.Phone)
		values["phone"] = phone
		if current.Phone == nil || phone == nil || *current.Phone != *phone {
			values["phone_verified"] = false
		}
	}
	if len(values) > 0 {
		values["updated_at"] = s.now().UTC()
		if err := s.repo.UpdateColumns(ctx, id, values); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile")
		}
	}
	return s.Get(ctx, id)
}

// SetAccountStatus bans, suspends or reinstates a user. Admins cannot change
// their own status.
func (s *service) SetAccountStatus(ctx context.Context, actorID, userID uuid.UUID, status enums.AccountStatus) (*models.User, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid account status")
	}
	if actorID == userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot change own account status")
	}
	return s.mutate(ctx, actorID, userID, func(user *models.User) (enums.AuditAction, map[string]any, bool) {
		if user.AccountStatus == status {
			return "", nil, false
		}
		details := map[string]any{"from": user.AccountStatus, "to": status}
		user.AccountStatus = status
		return enums.AuditAccountStatusChanged, details, true
	})
}

// SetRole is the admin role override.
func (s *service) SetRole(ctx context.Context, actorID, userID uuid.UUID, role enums.UserRole) (*models.User, error) {
	if !role.IsValid() || role == enums.UserRoleVisitor {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if actorID == userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot change own role")
	}
	return s.mutate(ctx, actorID, userID, func(user *models.User) (enums.AuditAction, map[string]any, bool) {
		if user.Role == role {
			return "", nil, false
		}
		details := map[string]any{"from": user.Role, "to": role}
		user.Role = role
		return enums.AuditRoleChanged, details, true
	})
}

func (s *service) mutate(ctx context.Context, actorID, userID uuid.UUID, change func(*models.User) (enums.AuditAction, map[string]any, bool)) (*models.User, error) {
	var out *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := repo.FindByIDForUpdate(ctx, userID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		action, details, changed := change(user)
		out = user
		if !changed {
			return nil
		}
		if err := repo.Save(ctx, user); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update user")
		}
		actor := actorID
		return s.audit.Record(ctx, tx, audit.Entry{
			UserID:  userID,
			ActorID: &actor,
			Action:  action,
			Details: details,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) (*pagination.Page[UserDTO], error) {
	filter.Limit = pagination.NormalizeLimit(filter.Limit)
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user query")
	}
	dtos := make([]UserDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}
	page := pagination.Build(dtos, filter.Limit, func(u UserDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
	})
	return &page, nil
}

func (s *service) CountByRole(ctx context.Context) (map[enums.UserRole]int64, error) {
	counts, err := s.repo.CountByRole(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count users")
	}
	return counts, nil
}
