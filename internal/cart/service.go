package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

const maxLineQuantity = 99

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages user and anonymous carts.
type Service interface {
	Get(ctx context.Context, owner Owner) (*CartDTO, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*CartDTO, error)
	UpdateItem(ctx context.Context, owner Owner, listingID uuid.UUID, input UpdateItemInput) (*CartDTO, error)
	RemoveItem(ctx context.Context, owner Owner, listingID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, owner Owner) error
	Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*CartDTO, error)
	PurgeAnonymous(ctx context.Context, olderThan time.Duration) (int64, error)
}

type ServiceParams struct {
	Repo              *Repository
	Listings          *listings.Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo     *Repository
	listings *listings.Repository
	tx       txRunner
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repo required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		listings: params.Listings,
		tx:       params.TransactionRunner,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*CartDTO, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	var out *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.render(ctx, tx, owner)
		return err
	})
	return out, err
}

func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*CartDTO, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing_id is required")
	}
	if input.Quantity < 1 || input.Quantity > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 1 and 99")
	}
	return s.mutate(ctx, owner, true, func(tx *gorm.DB, c *models.Cart) error {
		listing, err := s.purchasable(ctx, tx, input.ListingID)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)
		if item := findItem(c, input.ListingID); item != nil {
			qty := item.Quantity + input.Quantity
			if err := checkStock(listing, qty); err != nil {
				return err
			}
			item.Quantity = qty
			item.UnitPrice = listing.Price
			return wrapInternal(repo.SaveItem(ctx, item), "update cart item")
		}
		if err := checkStock(listing, input.Quantity); err != nil {
			return err
		}
		return wrapInternal(repo.CreateItem(ctx, &models.CartItem{
			CartID:    c.ID,
			ListingID: listing.ID,
			SellerID:  listing.SellerID,
			Quantity:  input.Quantity,
			UnitPrice: listing.Price,
		}), "add cart item")
	})
}

func (s *service) UpdateItem(ctx context.Context, owner Owner, listingID uuid.UUID, input UpdateItemInput) (*CartDTO, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if input.Quantity < 0 || input.Quantity > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 0 and 99")
	}
	if input.Quantity == 0 {
		return s.RemoveItem(ctx, owner, listingID)
	}
	return s.mutate(ctx, owner, false, func(tx *gorm.DB, c *models.Cart) error {
		item := findItem(c, listingID)
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		listing, err := s.purchasable(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if err := checkStock(listing, input.Quantity); err != nil {
			return err
		}
		item.Quantity = input.Quantity
		item.UnitPrice = listing.Price
		return wrapInternal(s.repo.WithTx(tx).SaveItem(ctx, item), "update cart item")
	})
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, listingID uuid.UUID) (*CartDTO, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, owner, false, func(tx *gorm.DB, c *models.Cart) error {
		removed, err := s.repo.WithTx(tx).DeleteItem(ctx, c.ID, listingID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		return nil
	})
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if err := owner.validate(); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		c, err := repo.FindActive(ctx, owner)
		if err != nil {
			if db.IsNotFound(err) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if err := repo.DeleteItems(ctx, c.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		return wrapInternal(repo.Touch(ctx, c.ID, s.now()), "touch cart")
	})
}

// Merge folds the anonymous session cart into the user's cart. Quantities add
// up to the available stock and lines that can no longer be bought are
// dropped. The session cart is deleted afterwards.
func (s *service) Merge(ctx context.Context, userID uuid.UUID, sessionID string) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	userOwner := Owner{UserID: userID}
	anonOwner := Owner{SessionID: sessionID}
	if anonOwner.session() == "" {
		return s.Get(ctx, userOwner)
	}
	if err := anonOwner.validate(); err != nil {
		return nil, err
	}

	var out *CartDTO
	merged := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		anon, err := repo.FindActive(ctx, anonOwner)
		if err != nil && !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load session cart")
		}
		if anon != nil {
			target, err := s.ensureCart(ctx, repo, userOwner)
			if err != nil {
				return err
			}
			ids := make([]uuid.UUID, 0, len(anon.Items))
			for _, item := range anon.Items {
				ids = append(ids, item.ListingID)
			}
			rows, err := s.listings.WithTx(tx).FindMany(ctx, ids)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listings")
			}
			byID := indexListings(rows)
			for _, item := range anon.Items {
				listing, ok := byID[item.ListingID]
				if !ok || !listing.Purchasable() {
					continue
				}
				if existing := findItem(target, item.ListingID); existing != nil {
					existing.Quantity = min(existing.Quantity+item.Quantity, listing.Stock, maxLineQuantity)
					existing.UnitPrice = listing.Price
					if err := repo.SaveItem(ctx, existing); err != nil {
						return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart item")
					}
				} else {
					if err := repo.CreateItem(ctx, &models.CartItem{
						CartID:    target.ID,
						ListingID: listing.ID,
						SellerID:  listing.SellerID,
						Quantity:  min(item.Quantity, listing.Stock, maxLineQuantity),
						UnitPrice: listing.Price,
					}); err != nil {
						return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart item")
					}
				}
				merged++
			}
			if err := repo.DeleteCart(ctx, anon.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete session cart")
			}
			if err := repo.Touch(ctx, target.ID, s.now()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch cart")
			}
		}
		out, err = s.render(ctx, tx, userOwner)
		return err
	})
	if err != nil {
		return nil, err
	}
	if merged > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "merged_items": merged}), "session cart merged")
	}
	return out, nil
}

func (s *service) PurgeAnonymous(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	var removed int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		removed, err = s.repo.WithTx(tx).DeleteStaleAnonymous(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purge anonymous carts")
	}
	return removed, nil
}

// mutate runs change against the owner's active cart and renders the result.
// With create unset a missing cart is NOT_FOUND.
func (s *service) mutate(ctx context.Context, owner Owner, create bool, change func(tx *gorm.DB, c *models.Cart) error) (*CartDTO, error) {
	var out *CartDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var c *models.Cart
		var err error
		if create {
			c, err = s.ensureCart(ctx, repo, owner)
		} else {
			c, err = repo.FindActive(ctx, owner)
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
			}
			err = wrapInternal(err, "load cart")
		}
		if err != nil {
			return err
		}
		if err := change(tx, c); err != nil {
			return err
		}
		if err := repo.Touch(ctx, c.ID, s.now()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch cart")
		}
		out, err = s.render(ctx, tx, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) ensureCart(ctx context.Context, repo *Repository, owner Owner) (*models.Cart, error) {
	c, err := repo.FindActive(ctx, owner)
	if err == nil {
		return c, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	c = &models.Cart{Status: enums.CartStatusActive}
	if owner.UserID != uuid.Nil {
		userID := owner.UserID
		c.UserID = &userID
	} else {
		session := owner.session()
		c.SessionID = &session
	}
	if err := repo.Create(ctx, c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}
	return c, nil
}

func (s *service) render(ctx context.Context, tx *gorm.DB, owner Owner) (*CartDTO, error) {
	c, err := s.repo.WithTx(tx).FindActive(ctx, owner)
	if err != nil {
		if db.IsNotFound(err) {
			return emptyCart(), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	ids := make([]uuid.UUID, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ListingID)
	}
	rows, err := s.listings.WithTx(tx).FindMany(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listings")
	}
	return toDTO(c, indexListings(rows)), nil
}

func (s *service) purchasable(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := s.listings.WithTx(tx).FindByID(ctx, listingID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
	}
	if listing.State != enums.ListingStatePublished {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return listing, nil
}

func checkStock(listing *models.Listing, qty int) error {
	if qty > maxLineQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 1 and 99")
	}
	if listing.Stock < qty {
		return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").
			WithDetails(map[string]any{"listing_id": listing.ID.String(), "available": listing.Stock})
	}
	return nil
}

func findItem(c *models.Cart, listingID uuid.UUID) *models.CartItem {
	for i := range c.Items {
		if c.Items[i].ListingID == listingID {
			return &c.Items[i]
		}
	}
	return nil
}

func indexListings(rows []models.Listing) map[uuid.UUID]models.Listing {
	out := make(map[uuid.UUID]models.Listing, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out
}

func wrapInternal(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
