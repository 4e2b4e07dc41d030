package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/repo"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

// Repository exposes user persistence.
type Repository struct {
	repo.Base
}

// NewRepository constructs a users repo bound to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// Create inserts user, assigning an id when missing.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	repo.EnsureID(&user.ID)
	return r.DB(ctx).Create(user).Error
}

// Save writes every column of user.
func (r *Repository) Save(ctx context.Context, user *models.User) error {
	return r.DB(ctx).Save(user).Error
}

// UpdateColumns patches the named columns.
func (r *Repository) UpdateColumns(ctx context.Context, id uuid.UUID, values map[string]any) error {
	return r.DB(ctx).Model(&models.User{}).Where("id = ?", id).Updates(values).Error
}

// FindByID loads a user by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDForUpdate loads and row-locks a user; call it inside a transaction.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := repo.ForUpdate(r.DB(ctx)).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindBySubject loads the user bound to an OIDC subject.
func (r *Repository) FindBySubject(ctx context.Context, subject string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "oidc_subject = ?", subject).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByStripeCustomerID loads the user owning a Stripe customer.
func (r *Repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).First(&user, "stripe_customer_id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns users newest first for the admin console.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.User, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, err
	}
	q := r.DB(ctx).Model(&models.User{})
	if filter.Role != nil {
		q = q.Where("role = ?", *filter.Role)
	}
	if filter.Status != nil {
		q = q.Where("account_status = ?", *filter.Status)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(COALESCE(email, '')) LIKE ? OR LOWER(COALESCE(first_name, '')) LIKE ? OR LOWER(COALESCE(last_name, '')) LIKE ?", like, like, like)
	}
	var users []models.User
	err = repo.AfterCursor(q, cursor, true).Limit(pagination.LimitWithBuffer(filter.Limit)).Find(&users).Error
	return users, err
}

// CountByRole returns the number of users per role.
func (r *Repository) CountByRole(ctx context.Context) (map[enums.UserRole]int64, error) {
	var rows []struct {
		Role  enums.UserRole
		Total int64
	}
	if err := r.DB(ctx).Model(&models.User{}).Select("role, COUNT(*) AS total").Group("role").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.UserRole]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Total
	}
	return out, nil
}

// ListForReconcile returns users with a Stripe subscription that is either
// still live or changed since `since`, ordered by id for keyset batching.
func (r *Repository) ListForReconcile(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]models.User, error) {
	terminal := []enums.SubscriptionState{enums.SubscriptionStateCanceled, enums.SubscriptionStateIncompleteExpired}
	q := r.DB(ctx).
		Where("stripe_subscription_id IS NOT NULL AND stripe_subscription_id <> ''").
		Where("subscription_state NOT IN ? OR subscription_updated_at >= ?", terminal, since)
	if afterID != uuid.Nil {
		q = q.Where("id > ?", afterID)
	}
	var users []models.User
	err := q.Order("id ASC").Limit(limit).Find(&users).Error
	return users, err
}
