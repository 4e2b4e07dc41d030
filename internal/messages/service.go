package messages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/pkg/db"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/pagination"
)

const threadConstraint = "ux_message_threads_triple"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sellerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
}

type listingLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}

// Service runs buyer/seller conversations.
type Service interface {
	StartThread(ctx context.Context, buyerID uuid.UUID, input StartThreadInput) (*ThreadDTO, error)
	Send(ctx context.Context, userID, threadID uuid.UUID, input SendInput) (*MessageDTO, error)
	ListThreads(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[ThreadDTO], error)
	ListMessages(ctx context.Context, userID, threadID uuid.UUID, params pagination.Params) (*pagination.Page[MessageDTO], error)
	MarkRead(ctx context.Context, userID, threadID uuid.UUID) (int64, error)
}

type ServiceParams struct {
	Repo              *Repository
	Sellers           sellerLookup
	Listings          listingLookup
	TransactionRunner txRunner
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo     *Repository
	sellers  sellerLookup
	listings listingLookup
	tx       txRunner
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("messages repo required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("seller lookup required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listing lookup required")
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
		sellers:  params.Sellers,
		listings: params.Listings,
		tx:       params.TransactionRunner,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// StartThread returns the buyer's thread with a seller, creating it on first
// contact. An optional opening message is appended either way.
func (s *service) StartThread(ctx context.Context, buyerID uuid.UUID, input StartThreadInput) (*ThreadDTO, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	body := strings.TrimSpace(input.Body)
	if len(body) > maxBodyLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message too long")
	}
	seller, err := s.sellers.FindByID(ctx, input.SellerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	if seller.UserID == buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot message your own shop")
	}
	if input.ListingID != nil {
		listing, err := s.listings.FindByID(ctx, *input.ListingID)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load listing")
		}
		if listing.SellerID != seller.ID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing does not belong to seller")
		}
	}

	thread, err := s.findOrCreate(ctx, buyerID, seller.UserID, input.ListingID)
	if err != nil {
		return nil, err
	}
	if body != "" {
		if _, err := s.append(ctx, thread, buyerID, body); err != nil {
			return nil, err
		}
	}
	dto := threadDTO(thread, 0)
	return &dto, nil
}

func (s *service) findOrCreate(ctx context.Context, buyerID, sellerUserID uuid.UUID, listingID *uuid.UUID) (*models.MessageThread, error) {
	thread, err := s.repo.FindThread(ctx, buyerID, sellerUserID, listingID)
	if err == nil {
		return thread, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load thread")
	}
	thread = &models.MessageThread{BuyerID: buyerID, SellerUserID: sellerUserID, ListingID: listingID}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateThread(ctx, thread)
	})
	if err == nil {
		return thread, nil
	}
	if !db.IsUniqueViolation(err, threadConstraint) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create thread")
	}
	// lost a race with a concurrent start
	thread, err = s.repo.FindThread(ctx, buyerID, sellerUserID, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload thread")
	}
	return thread, nil
}

func (s *service) Send(ctx context.Context, userID, threadID uuid.UUID, input SendInput) (*MessageDTO, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}
	if len(body) > maxBodyLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message too long")
	}
	thread, err := s.participantThread(ctx, userID, threadID)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, thread, userID, body)
}

func (s *service) append(ctx context.Context, thread *models.MessageThread, senderID uuid.UUID, body string) (*MessageDTO, error) {
	msg := &models.Message{ThreadID: thread.ID, SenderID: senderID, Body: body, CreatedAt: s.now().UTC()}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).AppendMessage(ctx, msg)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "send message")
	}
	thread.LastMessageAt = &msg.CreatedAt
	s.logg.Debug(s.logg.WithField(ctx, "thread_id", thread.ID.String()), "message sent")
	dto := messageDTO(msg)
	return &dto, nil
}

func (s *service) ListThreads(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[ThreadDTO], error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListThreads(ctx, userID, cursor, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list threads")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	unread, err := s.repo.UnreadCounts(ctx, userID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count unread")
	}
	dtos := make([]ThreadDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, threadDTO(&rows[i], unread[rows[i].ID]))
	}
	page := pagination.Build(dtos, limit, func(t ThreadDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	return &page, nil
}

func (s *service) ListMessages(ctx context.Context, userID, threadID uuid.UUID, params pagination.Params) (*pagination.Page[MessageDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if _, err := s.participantThread(ctx, userID, threadID); err != nil {
		return nil, err
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListMessages(ctx, threadID, cursor, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list messages")
	}
	dtos := make([]MessageDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, messageDTO(&rows[i]))
	}
	page := pagination.Build(dtos, limit, func(m MessageDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return &page, nil
}

// MarkRead marks the other participant's messages read and returns how many changed.
func (s *service) MarkRead(ctx context.Context, userID, threadID uuid.UUID) (int64, error) {
	if _, err := s.participantThread(ctx, userID, threadID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkRead(ctx, threadID, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark read")
	}
	return n, nil
}

func (s *service) participantThread(ctx context.Context, userID, threadID uuid.UUID) (*models.MessageThread, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	thread, err := s.repo.FindThreadByID(ctx, threadID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "thread not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load thread")
	}
	if !thread.HasParticipant(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant in this thread")
	}
	return thread, nil
}
