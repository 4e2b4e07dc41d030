package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/curiomarket/curio-backend/pkg/pagination"
)

// Base is embedded by domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase binds a Base to the provided connection or transaction.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx when one is given.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Conn returns the raw connection.
func (b Base) Conn() *gorm.DB {
	return b.db
}

// ForUpdate adds SELECT ... FOR UPDATE to q. Dialects without row locks ignore it.
func ForUpdate(q *gorm.DB) *gorm.DB {
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

// AfterCursor restricts q to rows after cursor in (created_at, id) order and
// applies that order. desc selects newest-first.
func AfterCursor(q *gorm.DB, cursor *pagination.Cursor, desc bool) *gorm.DB {
	if desc {
		if cursor != nil {
			q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		return q.Order("created_at DESC").Order("id DESC")
	}
	if cursor != nil {
		q = q.Where("(created_at > ?) OR (created_at = ? AND id > ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	return q.Order("created_at ASC").Order("id ASC")
}

// EnsureID assigns a fresh id when id is nil.
func EnsureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
