package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Increment atomically bumps the counter for the key, creating it at 1,
	// and returns the new value in a single round trip.
	Increment(ctx context.Context, db *gorm.DB, entityType EntityType, outletID snowflake.ID) (int64, error)
	Current(ctx context.Context, db *gorm.DB, entityType EntityType, outletID snowflake.ID) (int64, error)
}
