package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Trail interface {
	// Append numbers and writes an attempt entry. A non-nil tx makes the entry
	// part of the caller's transaction.
	Append(ctx context.Context, tx *gorm.DB, req AppendRequest) (*CreationAuditEntry, error)
	// GetAuditTrail returns entries in ascending attempt order. A positive limit
	// keeps only the most recent limit entries.
	GetAuditTrail(ctx context.Context, orderID snowflake.ID, limit int) ([]CreationAuditEntry, error)
	HasFailedAttempts(ctx context.Context, orderID snowflake.ID) (bool, error)
}
