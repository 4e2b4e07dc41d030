package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/db/models"
)

const maxBodyLength = 4000

type StartThreadInput struct {
	SellerID  uuid.UUID  `json:"seller_id" validate:"required"`
	ListingID *uuid.UUID `json:"listing_id"`
	Body      string     `json:"body" validate:"max=4000"`
}

type SendInput struct {
	Body string `json:"body" validate:"required,max=4000"`
}

type ThreadDTO struct {
	ID            uuid.UUID  `json:"id"`
	BuyerID       uuid.UUID  `json:"buyer_id"`
	SellerUserID  uuid.UUID  `json:"seller_user_id"`
	ListingID     *uuid.UUID `json:"listing_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Unread        int64      `json:"unread"`
	CreatedAt     time.Time  `json:"created_at"`
}

func threadDTO(t *models.MessageThread, unread int64) ThreadDTO {
	return ThreadDTO{
		ID:            t.ID,
		BuyerID:       t.BuyerID,
		SellerUserID:  t.SellerUserID,
		ListingID:     t.ListingID,
		LastMessageAt: t.LastMessageAt,
		Unread:        unread,
		CreatedAt:     t.CreatedAt,
	}
}

type MessageDTO struct {
	ID        uuid.UUID  `json:"id"`
	ThreadID  uuid.UUID  `json:"thread_id"`
	SenderID  uuid.UUID  `json:"sender_id"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func messageDTO(m *models.Message) MessageDTO {
	return MessageDTO{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
}
