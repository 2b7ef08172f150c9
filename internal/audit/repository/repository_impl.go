package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/audit/domain"
	pkgdb "github.com/smallbiznis/rentbill/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.CreationAuditEntry) (bool, error) {
	if entry == nil {
		return false, nil
	}

	stmt := `INSERT INTO invoice_creation_audit (
			id, order_id, invoice_id, outlet_id, requester_id, attempt_number,
			success, error_message, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id, attempt_number) DO NOTHING`
	if pkgdb.DialectName(db) == pkgdb.DialectMySQL {
		stmt = `INSERT IGNORE INTO invoice_creation_audit (
			id, order_id, invoice_id, outlet_id, requester_id, attempt_number,
			success, error_message, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}

	res := db.WithContext(ctx).Exec(stmt,
		entry.ID,
		entry.OrderID,
		entry.InvoiceID,
		entry.OutletID,
		entry.RequesterID,
		entry.AttemptNumber,
		entry.Success,
		entry.ErrorMessage,
		entry.Metadata,
		entry.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MaxAttemptNumber(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int, error) {
	var max int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(attempt_number), 0) FROM invoice_creation_audit WHERE order_id = ?`,
		orderID,
	).Scan(&max).Error
	return max, err
}

func (r *repo) ListRecent(ctx context.Context, db *gorm.DB, orderID snowflake.ID, limit int) ([]domain.CreationAuditEntry, error) {
	var entries []domain.CreationAuditEntry
	stmt := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("attempt_number desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) Latest(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.CreationAuditEntry, error) {
	entries, err := r.ListRecent(ctx, db, orderID, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (r *repo) InvoiceExists(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM invoices WHERE order_id = ?`,
		orderID,
	).Scan(&count).Error
	return count > 0, err
}
