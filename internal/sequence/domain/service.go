package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Allocator interface {
	// Allocate issues the next value for the key. Failures are allocation errors.
	Allocate(ctx context.Context, entityType EntityType, outletID snowflake.ID) (int64, error)
	Format(entityType EntityType, outletCode string, seq int64, at time.Time) (string, error)
	// AllocateCode allocates and formats a code, falling back to a flagged
	// timestamp-derived code when the counter store is unavailable.
	AllocateCode(ctx context.Context, req AllocateCodeRequest) (*Code, error)
}
