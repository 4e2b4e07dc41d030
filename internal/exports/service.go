package exports

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

type listingSource interface {
	Each(ctx context.Context, states []enums.ListingState, fn func([]models.Listing) error) error
}

type orderSource interface {
	ListForExport(ctx context.Context, statuses []enums.OrderStatus, fn func([]models.Order) error) error
}

// Kind names one downloadable export.
type Kind string

const (
	KindGoogleShopping  Kind = "google-shopping.csv"
	KindFacebookCatalog Kind = "facebook-catalog.csv"
	KindOrders          Kind = "orders.xlsx"
	KindListings        Kind = "listings.xlsx"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ContentType is the media type served for k.
func (k Kind) ContentType() string {
	if strings.HasSuffix(string(k), ".xlsx") {
		return contentTypeXLSX
	}
	return contentTypeCSV
}

// ParseKind matches the file name used in export routes.
func ParseKind(value string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(value))); k {
	case KindGoogleShopping, KindFacebookCatalog, KindOrders, KindListings:
		return k, true
	}
	return "", false
}

// Service streams admin exports.
type Service interface {
	Write(ctx context.Context, kind Kind, w io.Writer) error
}

type ServiceParams struct {
	Listings  listingSource
	Orders    orderSource
	PublicURL string
	Logger    *logger.Logger
}

type service struct {
	listings  listingSource
	orders    orderSource
	publicURL string
	logg      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Listings == nil {
		return nil, fmt.Errorf("listing source required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		listings:  params.Listings,
		orders:    params.Orders,
		publicURL: strings.TrimRight(params.PublicURL, "/"),
		logg:      params.Logger,
	}, nil
}

func (s *service) Write(ctx context.Context, kind Kind, w io.Writer) error {
	ctx = s.logg.WithField(ctx, "export", string(kind))
	var err error
	switch kind {
	case KindGoogleShopping:
		err = s.writeFeed(ctx, w, googleColumns, s.googleRow)
	case KindFacebookCatalog:
		err = s.writeFeed(ctx, w, facebookColumns, s.facebookRow)
	case KindOrders:
		err = s.writeOrders(ctx, w)
	case KindListings:
		err = s.writeListings(ctx, w)
	default:
		return fmt.Errorf("unknown export %q", kind)
	}
	if err != nil {
		s.logg.Error(ctx, "export failed", err)
		return err
	}
	s.logg.Info(ctx, "export written")
	return nil
}

func (s *service) listingLink(id uuid.UUID) string {
	return s.publicURL + "/listings/" + id.String()
}

func (s *service) imageLink(images []string) string {
	if len(images) == 0 {
		return ""
	}
	img := images[0]
	if strings.HasPrefix(img, "/") {
		return s.publicURL + img
	}
	return img
}
