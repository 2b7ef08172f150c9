package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert writes entry unless its (order, attempt) slot is taken; the
	// boolean reports whether a row was written.
	Insert(ctx context.Context, db *gorm.DB, entry *CreationAuditEntry) (bool, error)
	MaxAttemptNumber(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int, error)
	// ListRecent returns up to limit entries, newest attempt first. limit <= 0 is unbounded.
	ListRecent(ctx context.Context, db *gorm.DB, orderID snowflake.ID, limit int) ([]CreationAuditEntry, error)
	Latest(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*CreationAuditEntry, error)
	InvoiceExists(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (bool, error)
}
