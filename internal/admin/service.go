// Package admin backs the platform administration endpoints.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/curiomarket/curio-backend/internal/orders"
	"github.com/curiomarket/curio-backend/internal/users"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

type userAdmin interface {
	SetAccountStatus(ctx context.Context, actorID, userID uuid.UUID, status enums.AccountStatus) (*models.User, error)
	SetRole(ctx context.Context, actorID, userID uuid.UUID, role enums.UserRole) (*models.User, error)
	CountByRole(ctx context.Context) (map[enums.UserRole]int64, error)
}

type orderTotals interface {
	Totals(ctx context.Context, statuses []enums.OrderStatus) (orders.Totals, error)
}

type queueCounter interface {
	PendingQueueLength(ctx context.Context) (int64, error)
}

// PlatformStats is the admin dashboard summary.
type PlatformStats struct {
	UsersByRole          map[enums.UserRole]int64 `json:"users_by_role"`
	TotalUsers           int64                    `json:"total_users"`
	Orders               int64                    `json:"orders"`
	GMV                  decimal.Decimal          `json:"gmv"`
	Fees                 decimal.Decimal          `json:"fees"`
	PendingVerifications int64                    `json:"pending_verifications"`
	GeneratedAt          time.Time                `json:"generated_at"`
}

// Service is the admin-only account and reporting surface.
type Service interface {
	Ban(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error)
	Suspend(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error)
	Reinstate(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error)
	SetRole(ctx context.Context, adminID, userID uuid.UUID, role enums.UserRole) (*users.UserDTO, error)
	Stats(ctx context.Context) (*PlatformStats, error)
}

type ServiceParams struct {
	Users        userAdmin
	Orders       orderTotals
	Verification queueCounter
	Logger       *logger.Logger
	Now          func() time.Time
}

type service struct {
	users        userAdmin
	orders       orderTotals
	verification queueCounter
	logg         *logger.Logger
	now          func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order totals required")
	}
	if params.Verification == nil {
		return nil, fmt.Errorf("verification queue required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:        params.Users,
		orders:       params.Orders,
		verification: params.Verification,
		logg:         params.Logger,
		now:          now,
	}, nil
}

func (s *service) Ban(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error) {
	return s.setStatus(ctx, adminID, userID, enums.AccountStatusBanned)
}

func (s *service) Suspend(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error) {
	return s.setStatus(ctx, adminID, userID, enums.AccountStatusSuspended)
}

func (s *service) Reinstate(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error) {
	return s.setStatus(ctx, adminID, userID, enums.AccountStatusActive)
}

func (s *service) setStatus(ctx context.Context, adminID, userID uuid.UUID, status enums.AccountStatus) (*users.UserDTO, error) {
	user, err := s.users.SetAccountStatus(ctx, adminID, userID, status)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"admin_id": adminID.String(),
		"user_id":  userID.String(),
		"status":   string(status),
	}), "account status changed")
	return users.FromModel(user), nil
}

func (s *service) SetRole(ctx context.Context, adminID, userID uuid.UUID, role enums.UserRole) (*users.UserDTO, error) {
	user, err := s.users.SetRole(ctx, adminID, userID, role)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"admin_id": adminID.String(),
		"user_id":  userID.String(),
		"role":     string(role),
	}), "user role changed")
	return users.FromModel(user), nil
}

// Stats gathers the dashboard counters concurrently.
func (s *service) Stats(ctx context.Context) (*PlatformStats, error) {
	var (
		byRole  map[enums.UserRole]int64
		totals  orders.Totals
		pending int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		byRole, err = s.users.CountByRole(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.orders.Totals(gctx, orders.RevenueStatuses)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.verification.PendingQueueLength(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &PlatformStats{
		UsersByRole:          byRole,
		Orders:               totals.Orders,
		GMV:                  totals.GMV.Round(2),
		Fees:                 totals.Fees.Round(2),
		PendingVerifications: pending,
		GeneratedAt:          s.now().UTC(),
	}
	for _, n := range byRole {
		stats.TotalUsers += n
	}
	return stats, nil
}
