package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

type fakeListings struct {
	rows   []models.Listing
	states []enums.ListingState
}

func (f *fakeListings) Each(_ context.Context, states []enums.ListingState, fn func([]models.Listing) error) error {
	f.states = states
	return fn(f.rows)
}

type fakeOrders struct{ rows []models.Order }

func (f *fakeOrders) ListForExport(_ context.Context, _ []enums.OrderStatus, fn func([]models.Order) error) error {
	return fn(f.rows)
}

func strptr(v string) *string { return &v }

func newTestService(t *testing.T, l *fakeListings, o *fakeOrders) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Listings:  l,
		Orders:    o,
		PublicURL: "https://curio.example/",
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func sampleListing() models.Listing {
	return models.Listing{
		ID:          uuid.MustParse("7b0c9c2e-1d2a-4d57-9f0a-1f9e3c1c0a01"),
		SellerID:    uuid.New(),
		Title:       "Brass Lamp",
		Price:       decimal.RequireFromString("42.5"),
		Currency:    "usd",
		Stock:       3,
		State:       enums.ListingStatePublished,
		Condition:   "vintage",
		Brand:       strptr("Tiffany"),
		Images:      pq.StringArray{"gs://curio-media/uploads/listing/lamp.jpg"},
		CategoryIDs: pq.StringArray{},
	}
}

func TestGoogleShoppingFeed(t *testing.T) {
	l := &fakeListings{rows: []models.Listing{sampleListing()}}
	svc := newTestService(t, l, &fakeOrders{})

	var buf bytes.Buffer
	require.NoError(t, svc.Write(context.Background(), KindGoogleShopping, &buf))
	assert.Equal(t, []enums.ListingState{enums.ListingStatePublished}, l.states)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, googleColumns, records[0])
	assert.Equal(t, []string{
		"7b0c9c2e-1d2a-4d57-9f0a-1f9e3c1c0a01",
		"Brass Lamp",
		"Brass Lamp",
		"https://curio.example/listings/7b0c9c2e-1d2a-4d57-9f0a-1f9e3c1c0a01",
		"https://curio.example/objects/uploads/listing/lamp.jpg",
		"in stock",
		"42.50 USD",
		"used",
		"Tiffany",
	}, records[1])
}

func TestFacebookCatalogFeed(t *testing.T) {
	row := sampleListing()
	row.Stock = 0
	row.Brand = nil
	svc := newTestService(t, &fakeListings{rows: []models.Listing{row}}, &fakeOrders{})

	var buf bytes.Buffer
	require.NoError(t, svc.Write(context.Background(), KindFacebookCatalog, &buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, facebookColumns, records[0])
	assert.Equal(t, "out of stock", records[1][3])
	assert.Equal(t, "", records[1][8])
	assert.Equal(t, "0", records[1][9])
}

func TestOrdersWorkbookHasOrdersAndItems(t *testing.T) {
	orderID := uuid.New()
	o := models.Order{
		ID:              orderID,
		CheckoutGroupID: uuid.New(),
		BuyerID:         uuid.New(),
		SellerID:        uuid.New(),
		Status:          enums.OrderStatusPaid,
		Subtotal:        decimal.NewFromInt(50),
		Discount:        decimal.NewFromInt(5),
		PlatformFee:     decimal.NewFromFloat(4.5),
		Total:           decimal.NewFromInt(45),
		Currency:        "usd",
		CreatedAt:       time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Items: []models.OrderItem{
			{OrderID: orderID, ListingID: uuid.New(), Title: "Cup", UnitPrice: decimal.NewFromInt(10), Quantity: 2, LineTotal: decimal.NewFromInt(20)},
			{OrderID: orderID, ListingID: uuid.New(), Title: "Saucer", UnitPrice: decimal.NewFromInt(30), Quantity: 1, LineTotal: decimal.NewFromInt(30)},
		},
	}
	svc := newTestService(t, &fakeListings{}, &fakeOrders{rows: []models.Order{o}})

	var buf bytes.Buffer
	require.NoError(t, svc.Write(context.Background(), KindOrders, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	orders, err := f.GetRows(sheetOrders)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "order_id", orders[0][0])
	assert.Equal(t, orderID.String(), orders[1][0])
	assert.Equal(t, "2026-05-01T12:00:00Z", orders[1][2])
	assert.Equal(t, "paid", orders[1][3])

	items, err := f.GetRows(sheetItems)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Saucer", items[2][2])
}

func TestListingsWorkbookIncludesEveryState(t *testing.T) {
	draft := sampleListing()
	draft.ID = uuid.New()
	draft.State = enums.ListingStateDraft
	l := &fakeListings{rows: []models.Listing{sampleListing(), draft}}
	svc := newTestService(t, l, &fakeOrders{})

	var buf bytes.Buffer
	require.NoError(t, svc.Write(context.Background(), KindListings, &buf))
	assert.Nil(t, l.states)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetListings)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "draft", rows[2][3])
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Orders.xlsx")
	assert.True(t, ok)
	assert.Equal(t, KindOrders, k)
	assert.Equal(t, contentTypeXLSX, k.ContentType())
	assert.Equal(t, contentTypeCSV, KindGoogleShopping.ContentType())

	_, ok = ParseKind("payouts.csv")
	assert.False(t, ok)
}
