package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// CreateInvoiceForOrder runs the bounded creation pipeline. An order that
	// already has an invoice yields it with OutcomeExisting.
	CreateInvoiceForOrder(ctx context.Context, orderID snowflake.ID) (*CreationResult, error)
	// RecreateInvoiceForOrder is the manual retry entry point; same algorithm.
	RecreateInvoiceForOrder(ctx context.Context, orderID snowflake.ID) (*CreationResult, error)

	GetInvoice(ctx context.Context, id snowflake.ID) (*Invoice, error)
	GetInvoiceByOrder(ctx context.Context, orderID snowflake.ID) (*Invoice, error)
	ListInvoiceLineItems(ctx context.Context, invoiceID snowflake.ID) ([]InvoiceLineItem, error)
	ListInvoices(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	// ListFallbackNumbered returns the outlet's invoices whose number needs
	// reconciliation, newest first.
	ListFallbackNumbered(ctx context.Context, outletID snowflake.ID, limit int) ([]Invoice, error)
}

type ListFilter struct {
	OutletID     snowflake.ID
	Status       InvoiceStatus
	NumberSource NumberSource
	BeforeID     snowflake.ID
	Limit        int
}

type Repository interface {
	// Insert writes the header unless the order already has an invoice; the
	// boolean reports whether a row was written.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) (bool, error)
	InsertLines(ctx context.Context, db *gorm.DB, lines []InvoiceLineItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// FindByIDForUpdate row-locks the invoice for the rest of the transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Invoice, error)
	ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceLineItem, error)
	// List pages by descending id.
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Invoice, error)
	UpdateAggregates(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	// ListOverdueCandidates returns pending invoices with a balance past due.
	ListOverdueCandidates(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Invoice, error)
}
