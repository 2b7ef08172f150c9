package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/invoice/domain"
	"github.com/smallbiznis/rentbill/pkg/db/option"
	"github.com/smallbiznis/rentbill/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) (bool, error) {
	if invoice == nil {
		return false, nil
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(invoice)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []domain.InvoiceLineItem) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	// a zero id would drop out of the struct condition and match any row
	if id == 0 {
		return nil, nil
	}
	return repository.ProvideStore[domain.Invoice](db).FindOne(ctx, &domain.Invoice{ID: id})
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Invoice, error) {
	if orderID == 0 {
		return nil, nil
	}
	return repository.ProvideStore[domain.Invoice](db).FindOne(ctx, &domain.Invoice{OrderID: orderID})
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceLineItem, error) {
	items, err := repository.ProvideStore[domain.InvoiceLineItem](db).Find(ctx,
		&domain.InvoiceLineItem{InvoiceID: invoiceID},
		option.WithSortBy(option.QuerySortBy{Field: "line_no", Allow: map[string]bool{"line_no": true}}),
	)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.InvoiceLineItem, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		lines = append(lines, *item)
	}
	return lines, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Invoice, error) {
	query := &domain.Invoice{
		OutletID:            filter.OutletID,
		Status:              filter.Status,
		InvoiceNumberSource: filter.NumberSource,
	}
	options := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Field: "id", Desc: true, Allow: map[string]bool{"id": true}}),
		option.WithLimit(filter.Limit),
	}
	if filter.BeforeID != 0 {
		options = append(options, option.ApplyOperator(option.Condition{
			Field:    "id",
			Operator: option.LT,
			Value:    filter.BeforeID,
		}))
	}
	return repository.ProvideStore[domain.Invoice](db).Find(ctx, query, options...)
}

func (r *repo) UpdateAggregates(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices
		SET payment_received = ?, balance_due = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		invoice.PaymentReceived,
		invoice.BalanceDue,
		invoice.Status,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) ListOverdueCandidates(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	query := db.WithContext(ctx).
		Where("status = ? AND due_date < ? AND balance_due > 0", domain.InvoiceStatusPending, now).
		Order("due_date asc, id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&invoices).Error
	return invoices, err
}
