package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

// UserDTO is the transport shape of a user.
type UserDTO struct {
	ID                uuid.UUID               `json:"id"`
	Email             *string                 `json:"email,omitempty"`
	FirstName         *string                 `json:"first_name,omitempty"`
	LastName          *string                 `json:"last_name,omitempty"`
	ProfileImageURL   *string                 `json:"profile_image_url,omitempty"`
	Phone             *string                 `json:"phone,omitempty"`
	Role              enums.UserRole          `json:"role"`
	AccountStatus     enums.AccountStatus     `json:"account_status"`
	EmailVerified     bool                    `json:"email_verified"`
	PhoneVerified     bool                    `json:"phone_verified"`
	IdentityVerified  bool                    `json:"identity_verified"`
	AddressVerified   bool                    `json:"address_verified"`
	VerificationLevel int                     `json:"verification_level"`
	SubscriptionState enums.SubscriptionState `json:"subscription_state"`
	LastLoginAt       *time.Time              `json:"last_login_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// FromModel maps a user row to its DTO.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		ProfileImageURL:   u.ProfileImageURL,
		Phone:             u.Phone,
		Role:              u.Role,
		AccountStatus:     u.AccountStatus,
		EmailVerified:     u.EmailVerified,
		PhoneVerified:     u.PhoneVerified,
		IdentityVerified:  u.IdentityVerified,
		AddressVerified:   u.AddressVerified,
		VerificationLevel: u.VerificationLevel,
		SubscriptionState: u.SubscriptionState,
		LastLoginAt:       u.LastLoginAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// OIDCProfile is the identity read from a verified ID token.
type OIDCProfile struct {
	Subject         string
	Email           string
	FirstName       string
	LastName        string
	ProfileImageURL string
}

// UpdateProfileInput holds the self-service profile fields. Nil leaves a
// field unchanged; an empty string clears it.
type UpdateProfileInput struct {
	FirstName       *string `json:"first_name" validate:"omitempty,max=100"`
	LastName        *string `json:"last_name" validate:"omitempty,max=100"`
	Phone           *string `json:"phone" validate:"omitempty,max=32"`
	ProfileImageURL *string `json:"profile_image_url" validate:"omitempty,max=2048"`
}

// ListFilter drives the admin user list.
type ListFilter struct {
	Role   *enums.UserRole
	Status *enums.AccountStatus
	Query  string
	Limit  int
	Cursor string
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
