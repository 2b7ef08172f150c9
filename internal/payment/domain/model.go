package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	"gorm.io/gorm"
)

type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodUPI          Method = "upi"
	MethodBankTransfer Method = "bank_transfer"
	MethodCheque       Method = "cheque"
	MethodOther        Method = "other"
)

// ParseMethod accepts any casing and surrounding space.
func ParseMethod(value string) (Method, bool) {
	method := Method(strings.ToLower(strings.TrimSpace(value)))
	switch method {
	case MethodCash, MethodCard, MethodUPI, MethodBankTransfer, MethodCheque, MethodOther:
		return method, true
	default:
		return "", false
	}
}

// Payment is soft-deleted; only rows with a null deleted_at count toward the
// invoice aggregates.
type Payment struct {
	ID                  snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InvoiceID           snowflake.ID    `gorm:"column:invoice_id;not null;index" json:"invoice_id"`
	OutletID            snowflake.ID    `gorm:"column:outlet_id;not null;index" json:"outlet_id"`
	ReceiptNumber       string          `gorm:"column:receipt_number;type:varchar(64);not null;uniqueIndex:ux_payments_receipt_number" json:"receipt_number"`
	ReceiptNumberSource string          `gorm:"column:receipt_number_source;type:varchar(16);not null" json:"receipt_number_source"`
	Amount              decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Method              Method          `gorm:"column:method;type:varchar(32);not null" json:"method"`
	PaidOn              time.Time       `gorm:"column:paid_on;not null" json:"paid_on"`
	Reference           *string         `gorm:"column:reference;type:varchar(128)" json:"reference,omitempty"`
	CreatedBy           string          `gorm:"column:created_by;type:varchar(128);not null" json:"created_by"`
	CreatedAt           time.Time       `gorm:"column:created_at;not null" json:"created_at"`
	DeletedAt           gorm.DeletedAt  `gorm:"column:deleted_at;index" json:"-"`
}

func (Payment) TableName() string { return "payments" }

type RecordPaymentRequest struct {
	InvoiceID snowflake.ID
	Amount    decimal.Decimal
	Method    Method
	PaidOn    time.Time
	Reference *string
}

// LedgerResult pairs a payment mutation with the recomputed invoice.
type LedgerResult struct {
	Payment *Payment               `json:"payment"`
	Invoice *invoicedomain.Invoice `json:"invoice"`
}
