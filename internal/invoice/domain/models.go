// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbill/pkg/db/pagination"
	"gorm.io/datatypes"
)

// InvoiceStatus is derived from the payment aggregates and the due date.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	default:
		return false
	}
}

// NumberSource records whether the invoice number came from the outlet
// counter or from the fallback path.
type NumberSource string

const (
	NumberSourceSequence NumberSource = "sequence"
	NumberSourceFallback NumberSource = "fallback"
)

// Invoice is created once per order and only its payment aggregates change
// afterwards.
type Invoice struct {
	ID                  snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InvoiceNumber       string            `gorm:"column:invoice_number;type:varchar(64);not null;uniqueIndex:ux_invoices_invoice_number" json:"invoice_number"`
	InvoiceNumberSource NumberSource      `gorm:"column:invoice_number_source;type:varchar(16);not null;default:'sequence'" json:"invoice_number_source"`
	OrderID             snowflake.ID      `gorm:"column:order_id;not null;uniqueIndex:ux_invoices_order_id" json:"order_id"`
	OutletID            snowflake.ID      `gorm:"column:outlet_id;not null;index" json:"outlet_id"`
	CustomerID          snowflake.ID      `gorm:"column:customer_id;not null;index" json:"customer_id"`
	Subtotal            decimal.Decimal   `gorm:"column:subtotal;type:numeric(14,2);not null" json:"subtotal"`
	CGST                decimal.Decimal   `gorm:"column:cgst;type:numeric(14,2);not null" json:"cgst"`
	SGST                decimal.Decimal   `gorm:"column:sgst;type:numeric(14,2);not null" json:"sgst"`
	IGST                decimal.Decimal   `gorm:"column:igst;type:numeric(14,2);not null" json:"igst"`
	TaxTotal            decimal.Decimal   `gorm:"column:tax_total;type:numeric(14,2);not null" json:"tax_total"`
	TotalAmount         decimal.Decimal   `gorm:"column:total_amount;type:numeric(14,2);not null" json:"total_amount"`
	PaymentReceived     decimal.Decimal   `gorm:"column:payment_received;type:numeric(14,2);not null" json:"payment_received"`
	BalanceDue          decimal.Decimal   `gorm:"column:balance_due;type:numeric(14,2);not null" json:"balance_due"`
	Status              InvoiceStatus     `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	DueDate             time.Time         `gorm:"column:due_date;not null" json:"due_date"`
	Metadata            datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt           time.Time         `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// IsFallbackNumbered reports whether the number needs reconciliation.
func (i *Invoice) IsFallbackNumbered() bool {
	return i != nil && i.InvoiceNumberSource == NumberSourceFallback
}

// InvoiceLineItem is immutable once written.
type InvoiceLineItem struct {
	ID             snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InvoiceID      snowflake.ID    `gorm:"column:invoice_id;not null;uniqueIndex:ux_invoice_line_items_invoice_line,priority:1" json:"invoice_id"`
	LineNo         int             `gorm:"column:line_no;not null;uniqueIndex:ux_invoice_line_items_invoice_line,priority:2" json:"line_no"`
	Description    string          `gorm:"column:description;type:text;not null" json:"description"`
	Quantity       decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null" json:"quantity"`
	UnitRate       decimal.Decimal `gorm:"column:unit_rate;type:numeric(14,2);not null" json:"unit_rate"`
	TaxRatePercent decimal.Decimal `gorm:"column:tax_rate_percent;type:numeric(5,2);not null" json:"tax_rate_percent"`
	LineTotal      decimal.Decimal `gorm:"column:line_total;type:numeric(14,2);not null" json:"line_total"`
	LineTax        decimal.Decimal `gorm:"column:line_tax;type:numeric(14,2);not null" json:"line_tax"`
	CreatedAt      time.Time       `gorm:"column:created_at;not null" json:"created_at"`
}

func (InvoiceLineItem) TableName() string { return "invoice_line_items" }

// Outcome distinguishes a fresh invoice from an idempotent no-op.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeExisting Outcome = "existing"
)

type CreationResult struct {
	Invoice  *Invoice `json:"invoice"`
	Outcome  Outcome  `json:"outcome"`
	Attempts int      `json:"attempts"`
}

type ListInvoiceRequest struct {
	OutletID     snowflake.ID
	Status       InvoiceStatus
	NumberSource NumberSource
	PageToken    string
	PageSize     int
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}
