package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/sequence/domain"
	pkgdb "github.com/smallbiznis/rentbill/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Increment(ctx context.Context, db *gorm.DB, entityType domain.EntityType, outletID snowflake.ID) (int64, error) {
	now := time.Now().UTC()
	if pkgdb.DialectName(db) == pkgdb.DialectMySQL {
		return r.incrementMySQL(ctx, db, entityType, outletID, now)
	}

	var value int64
	err := db.WithContext(ctx).Raw(
		`INSERT INTO sequence_counters (entity_type, outlet_id, last_value, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (entity_type, outlet_id)
		 DO UPDATE SET last_value = sequence_counters.last_value + 1, updated_at = excluded.updated_at
		 RETURNING last_value`,
		entityType,
		outletID,
		now,
	).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, domain.ErrCounterNotIssued
	}
	return value, nil
}

// incrementMySQL uses LAST_INSERT_ID(expr) so the new value is read back on the
// same connection without a second statement racing other writers.
func (r *repo) incrementMySQL(ctx context.Context, db *gorm.DB, entityType domain.EntityType, outletID snowflake.ID, now time.Time) (int64, error) {
	var value int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO sequence_counters (entity_type, outlet_id, last_value, updated_at)
			 VALUES (?, ?, LAST_INSERT_ID(1), ?)
			 ON DUPLICATE KEY UPDATE last_value = LAST_INSERT_ID(last_value + 1), updated_at = VALUES(updated_at)`,
			entityType,
			outletID,
			now,
		).Error; err != nil {
			return err
		}
		return tx.Raw(`SELECT LAST_INSERT_ID()`).Scan(&value).Error
	})
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, domain.ErrCounterNotIssued
	}
	return value, nil
}

func (r *repo) Current(ctx context.Context, db *gorm.DB, entityType domain.EntityType, outletID snowflake.ID) (int64, error) {
	var value int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(last_value), 0) FROM sequence_counters WHERE entity_type = ? AND outlet_id = ?`,
		entityType,
		outletID,
	).Scan(&value).Error
	return value, err
}
