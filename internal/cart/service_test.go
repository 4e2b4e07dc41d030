package cart

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/internal/listings"
	"github.com/curiomarket/curio-backend/pkg/db/dbtest"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

type fixture struct {
	svc Service
	db  *gorm.DB
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	f := &fixture{db: client.DB(), now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(client.DB()),
		Listings:          listings.NewRepository(client.DB()),
		TransactionRunner: client,
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:               func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) listing(t *testing.T, title, price string, stock int, state enums.ListingState) *models.Listing {
	t.Helper()
	l := &models.Listing{
		ID:          uuid.New(),
		SellerID:    uuid.New(),
		Title:       title,
		Price:       decimal.RequireFromString(price),
		Currency:    "usd",
		Stock:       stock,
		State:       state,
		CategoryIDs: pq.StringArray{},
		Images:      pq.StringArray{"gs://curio-media/uploads/listing/a.png"},
		Condition:   "used",
	}
	require.NoError(t, f.db.Create(l).Error)
	return l
}

func anon() Owner {
	return Owner{SessionID: uuid.NewString()}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestOwnerValidation(t *testing.T) {
	assert.True(t, pkgerrors.IsCode(Owner{}.validate(), pkgerrors.CodeUnauthorized))
	assert.True(t, pkgerrors.IsCode(Owner{SessionID: "not-a-uuid"}.validate(), pkgerrors.CodeValidation))
	assert.NoError(t, Owner{UserID: uuid.New()}.validate())
	assert.NoError(t, anon().validate())
}

func TestGetEmptyCart(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.Get(context.Background(), Owner{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Nil(t, out.ID)
	assert.Empty(t, out.Items)
	assert.True(t, out.Subtotal.IsZero())
}

func TestAddItemMergesQuantities(t *testing.T) {
	f := newFixture(t)
	owner := Owner{UserID: uuid.New()}
	lamp := f.listing(t, "Brass lamp", "25.00", 5, enums.ListingStatePublished)

	_, err := f.svc.AddItem(context.Background(), owner, AddItemInput{ListingID: lamp.ID, Quantity: 2})
	require.NoError(t, err)
	out, err := f.svc.AddItem(context.Background(), owner, AddItemInput{ListingID: lamp.ID, Quantity: 1})
	require.NoError(t, err)

	require.Len(t, out.Items, 1)
	assert.Equal(t, 3, out.Items[0].Quantity)
	assert.Equal(t, 3, out.ItemCount)
	assert.True(t, out.Subtotal.Equal(decimal.NewFromInt(75)))
	assert.True(t, out.Items[0].Available)
	require.NotNil(t, out.Items[0].Image)
	assert.Equal(t, "/objects/uploads/listing/a.png", *out.Items[0].Image)
}

func TestAddItemRejectsUnavailableListings(t *testing.T) {
	f := newFixture(t)
	owner := anon()
	draft := f.listing(t, "Draft", "10.00", 5, enums.ListingStateDraft)
	scarce := f.listing(t, "Scarce", "10.00", 1, enums.ListingStatePublished)

	_, err := f.svc.AddItem(context.Background(), owner, AddItemInput{ListingID: draft.ID, Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddItem(context.Background(), owner, AddItemInput{ListingID: scarce.ID, Quantity: 2})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.AddItem(context.Background(), owner, AddItemInput{ListingID: scarce.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.AddItem(context.Background(), owner, AddItemInput{ListingID: scarce.ID, Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateItemZeroRemoves(t *testing.T) {
	f := newFixture(t)
	owner := anon()
	vase := f.listing(t, "Vase", "12.50", 4, enums.ListingStatePublished)
	_, err := f.svc.AddItem(context.Background(), owner, AddItemInput{ListingID: vase.ID, Quantity: 1})
	require.NoError(t, err)

	out, err := f.svc.UpdateItem(context.Background(), owner, vase.ID, UpdateItemInput{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Items[0].Quantity)

	_, err = f.svc.UpdateItem(context.Background(), owner, vase.ID, UpdateItemInput{Quantity: 5})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	out, err = f.svc.UpdateItem(context.Background(), owner, vase.ID, UpdateItemInput{Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, out.Items)

	_, err = f.svc.RemoveItem(context.Background(), owner, vase.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	owner := Owner{UserID: uuid.New()}
	a := f.listing(t, "A", "1.00", 3, enums.ListingStatePublished)
	b := f.listing(t, "B", "2.00", 3, enums.ListingStatePublished)
	_, err := f.svc.AddItem(context.Background(), owner, AddItemInput{ListingID: a.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.AddItem(context.Background(), owner, AddItemInput{ListingID: b.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, f.svc.Clear(context.Background(), owner))
	out, err := f.svc.Get(context.Background(), owner)
	require.NoError(t, err)
	assert.NotNil(t, out.ID)
	assert.Empty(t, out.Items)
}

func TestMergeFoldsSessionCartIntoUserCart(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	session := anon()
	shared := f.listing(t, "Shared", "5.00", 3, enums.ListingStatePublished)
	only := f.listing(t, "Session only", "7.00", 2, enums.ListingStatePublished)
	gone := f.listing(t, "Gone", "9.00", 2, enums.ListingStatePublished)

	_, err := f.svc.AddItem(context.Background(), Owner{UserID: userID}, AddItemInput{ListingID: shared.ID, Quantity: 2})
	require.NoError(t, err)
	for _, id := range []uuid.UUID{shared.ID, only.ID, gone.ID} {
		_, err = f.svc.AddItem(context.Background(), session, AddItemInput{ListingID: id, Quantity: 2})
		require.NoError(t, err)
	}
	require.NoError(t, f.db.Model(&models.Listing{}).Where("id = ?", gone.ID).Update("state", enums.ListingStateSuspended).Error)

	out, err := f.svc.Merge(context.Background(), userID, session.SessionID)
	require.NoError(t, err)

	quantities := map[uuid.UUID]int{}
	for _, item := range out.Items {
		quantities[item.ListingID] = item.Quantity
	}
	assert.Equal(t, map[uuid.UUID]int{shared.ID: 3, only.ID: 2}, quantities)

	left, err := f.svc.Get(context.Background(), session)
	require.NoError(t, err)
	assert.Nil(t, left.ID)
}

func TestPurgeAnonymous(t *testing.T) {
	f := newFixture(t)
	item := f.listing(t, "Old", "3.00", 3, enums.ListingStatePublished)
	stale := anon()
	_, err := f.svc.AddItem(context.Background(), stale, AddItemInput{ListingID: item.ID, Quantity: 1})
	require.NoError(t, err)
	user := Owner{UserID: uuid.New()}
	_, err = f.svc.AddItem(context.Background(), user, AddItemInput{ListingID: item.ID, Quantity: 1})
	require.NoError(t, err)

	f.now = f.now.Add(31 * 24 * time.Hour)
	removed, err := f.svc.PurgeAnonymous(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	out, err := f.svc.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
}
