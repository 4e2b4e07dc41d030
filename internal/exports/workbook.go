package exports

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/curiomarket/curio-backend/pkg/db/models"
)

const (
	sheetOrders   = "Orders"
	sheetItems    = "Items"
	sheetListings = "Listings"
	defaultSheet  = "Sheet1"
)

var (
	orderHeader   = []any{"order_id", "checkout_group_id", "created_at", "status", "buyer_id", "seller_id", "subtotal", "discount", "platform_fee", "total", "currency", "tracking_number"}
	itemHeader    = []any{"order_id", "listing_id", "title", "unit_price", "quantity", "line_total"}
	listingHeader = []any{"listing_id", "seller_id", "title", "state", "price", "currency", "stock", "condition", "brand", "sku", "published_at", "created_at"}
)

// sheetWriter appends rows to one streamed sheet.
type sheetWriter struct {
	sw  *excelize.StreamWriter
	row int
}

func newSheetWriter(f *excelize.File, sheet string, header []any, headerStyle int) (*sheetWriter, error) {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, err
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return nil, err
	}
	return &sheetWriter{sw: sw, row: 1}, nil
}

func (s *sheetWriter) append(values []any) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	return s.sw.SetRow(cell, values)
}

func newWorkbook(first string, others ...string) (*excelize.File, int, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet, first); err != nil {
		f.Close()
		return nil, 0, err
	}
	for _, name := range others {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, 0, err
		}
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, style, nil
}

// writeOrders builds an Orders sheet with one row per order and an Items
// sheet with one row per line.
func (s *service) writeOrders(ctx context.Context, w io.Writer) error {
	f, style, err := newWorkbook(sheetOrders, sheetItems)
	if err != nil {
		return err
	}
	defer f.Close()

	orders, err := newSheetWriter(f, sheetOrders, orderHeader, style)
	if err != nil {
		return err
	}
	items, err := newSheetWriter(f, sheetItems, itemHeader, style)
	if err != nil {
		return err
	}
	err = s.orders.ListForExport(ctx, nil, func(batch []models.Order) error {
		for i := range batch {
			o := &batch[i]
			if err := orders.append(orderRow(o)); err != nil {
				return err
			}
			for j := range o.Items {
				if err := items.append(itemRow(&o.Items[j])); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := orders.sw.Flush(); err != nil {
		return err
	}
	if err := items.sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

func (s *service) writeListings(ctx context.Context, w io.Writer) error {
	f, style, err := newWorkbook(sheetListings)
	if err != nil {
		return err
	}
	defer f.Close()

	sheet, err := newSheetWriter(f, sheetListings, listingHeader, style)
	if err != nil {
		return err
	}
	err = s.listings.Each(ctx, nil, func(batch []models.Listing) error {
		for i := range batch {
			if err := sheet.append(listingRow(&batch[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := sheet.sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

func orderRow(o *models.Order) []any {
	return []any{
		o.ID.String(),
		o.CheckoutGroupID.String(),
		stamp(&o.CreatedAt),
		string(o.Status),
		o.BuyerID.String(),
		o.SellerID.String(),
		o.Subtotal.InexactFloat64(),
		o.Discount.InexactFloat64(),
		o.PlatformFee.InexactFloat64(),
		o.Total.InexactFloat64(),
		strings.ToUpper(o.Currency),
		deref(o.TrackingNumber),
	}
}

func itemRow(it *models.OrderItem) []any {
	return []any{
		it.OrderID.String(),
		it.ListingID.String(),
		it.Title,
		it.UnitPrice.InexactFloat64(),
		it.Quantity,
		it.LineTotal.InexactFloat64(),
	}
}

func listingRow(l *models.Listing) []any {
	return []any{
		l.ID.String(),
		l.SellerID.String(),
		l.Title,
		string(l.State),
		l.Price.InexactFloat64(),
		strings.ToUpper(l.Currency),
		l.Stock,
		l.Condition,
		deref(l.Brand),
		deref(l.SKU),
		stamp(l.PublishedAt),
		stamp(&l.CreatedAt),
	}
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
