package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// RecordPayment inserts the payment and recomputes the invoice aggregates
	// in one transaction holding the invoice row lock.
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*LedgerResult, error)
	// DeletePayment soft-deletes the payment under the same lock and recomputation.
	DeletePayment(ctx context.Context, paymentID snowflake.ID) (*LedgerResult, error)
	ListPayments(ctx context.Context, invoiceID snowflake.ID) ([]Payment, error)
	// RefreshOverdue moves up to limit pending invoices past their due date to
	// overdue and returns how many changed.
	RefreshOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	// FindActive ignores soft-deleted rows.
	FindActive(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	ListActive(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
}
