package exports

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/curiomarket/curio-backend/internal/media"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
)

var (
	googleColumns   = []string{"id", "title", "description", "link", "image_link", "availability", "price", "condition", "brand"}
	facebookColumns = []string{"id", "title", "description", "availability", "condition", "price", "link", "image_link", "brand", "inventory"}
)

// writeFeed writes published listings as a product catalog CSV.
func (s *service) writeFeed(ctx context.Context, w io.Writer, header []string, row func(*models.Listing) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	err := s.listings.Each(ctx, []enums.ListingState{enums.ListingStatePublished}, func(batch []models.Listing) error {
		for i := range batch {
			if err := cw.Write(row(&batch[i])); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func (s *service) googleRow(l *models.Listing) []string {
	return []string{
		l.ID.String(),
		l.Title,
		feedDescription(l),
		s.listingLink(l.ID),
		s.imageLink(media.NormalizeAll(l.Images)),
		availability(l),
		feedPrice(l),
		feedCondition(l.Condition),
		brand(l),
	}
}

func (s *service) facebookRow(l *models.Listing) []string {
	return []string{
		l.ID.String(),
		l.Title,
		feedDescription(l),
		availability(l),
		feedCondition(l.Condition),
		feedPrice(l),
		s.listingLink(l.ID),
		s.imageLink(media.NormalizeAll(l.Images)),
		brand(l),
		strconv.Itoa(l.Stock),
	}
}

func availability(l *models.Listing) string {
	if l.Stock > 0 {
		return "in stock"
	}
	return "out of stock"
}

// feedPrice renders "12.50 USD".
func feedPrice(l *models.Listing) string {
	return l.Price.StringFixed(2) + " " + strings.ToUpper(l.Currency)
}

// feedCondition maps listing conditions onto the new/refurbished/used vocabulary.
func feedCondition(c string) string {
	switch strings.ToLower(c) {
	case "new":
		return "new"
	case "refurbished":
		return "refurbished"
	default:
		return "used"
	}
}

func feedDescription(l *models.Listing) string {
	if d := strings.TrimSpace(l.Description); d != "" {
		return d
	}
	return l.Title
}

func brand(l *models.Listing) string {
	if l.Brand == nil {
		return ""
	}
	return *l.Brand
}
