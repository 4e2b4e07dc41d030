package favorites

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

type listingLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// Service exposes favorite operations for users.
type Service interface {
	Add(ctx context.Context, userID, listingID uuid.UUID) error
	Remove(ctx context.Context, userID, listingID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[FavoriteDTO], error)
	ListIDs(ctx context.Context, userID uuid.UUID) (FavoriteIDsDTO, error)
}

type service struct {
	repo     *Repository
	listings listingLoader
	now      func() time.Time
}

// NewService builds a favorites service backed by the repository.
func NewService(repo *Repository, listings listingLoader) (Service, error) {
	if repo == nil {
		return nil, errors.New("favorites repository required")
	}
	if listings == nil {
		return nil, errors.New("listing loader required")
	}
	return &service{repo: repo, listings: listings, now: time.Now}, nil
}

// Add favorites a published listing. Adding twice is a no-op.
func (s *service) Add(ctx context.Context, userID, listingID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
	}
	if listing.State != enums.ListingStatePublished {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	if err := s.repo.AddItem(ctx, userID, listingID, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add favorite")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, userID, listingID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if err := s.repo.RemoveItem(ctx, userID, listingID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove favorite")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[FavoriteDTO], error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	records, err := s.repo.ListItems(ctx, userID, cursor, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list favorites")
	}
	type row struct {
		dto FavoriteDTO
		id  uuid.UUID
	}
	rows := make([]row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, row{dto: rec.toDTO(), id: rec.FavoriteID})
	}
	built := pagination.Build(rows, limit, func(r row) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.dto.FavoritedAt, ID: r.id}
	})
	page := pagination.Page[FavoriteDTO]{Items: make([]FavoriteDTO, 0, len(built.Items)), NextCursor: built.NextCursor}
	for _, r := range built.Items {
		page.Items = append(page.Items, r.dto)
	}
	return &page, nil
}

func (s *service) ListIDs(ctx context.Context, userID uuid.UUID) (FavoriteIDsDTO, error) {
	if userID == uuid.Nil {
		return FavoriteIDsDTO{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	ids, err := s.repo.ListItemIDs(ctx, userID)
	if err != nil {
		return FavoriteIDsDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list favorite ids")
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return FavoriteIDsDTO{ListingIDs: ids}, nil
}
