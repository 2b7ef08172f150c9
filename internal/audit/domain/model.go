package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CreationAuditEntry records one invoice creation attempt for an order.
// Rows are append-only and numbered 1..N per order.
type CreationAuditEntry struct {
	ID            snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrderID       snowflake.ID      `gorm:"column:order_id;not null;uniqueIndex:ux_invoice_creation_audit_order_attempt,priority:1" json:"order_id"`
	InvoiceID     *snowflake.ID     `gorm:"column:invoice_id" json:"invoice_id,omitempty"`
	OutletID      snowflake.ID      `gorm:"column:outlet_id;not null" json:"outlet_id"`
	RequesterID   string            `gorm:"column:requester_id;type:varchar(128);not null" json:"requester_id"`
	AttemptNumber int               `gorm:"column:attempt_number;not null;uniqueIndex:ux_invoice_creation_audit_order_attempt,priority:2" json:"attempt_number"`
	Success       bool              `gorm:"column:success;not null" json:"success"`
	ErrorMessage  *string           `gorm:"column:error_message;type:varchar(200)" json:"error_message,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at;not null" json:"created_at"`
}

func (CreationAuditEntry) TableName() string { return "invoice_creation_audit" }

// AppendRequest describes an attempt outcome. Err is rendered into the
// truncated error message for failed attempts.
type AppendRequest struct {
	OrderID     snowflake.ID
	InvoiceID   *snowflake.ID
	OutletID    snowflake.ID
	RequesterID string
	Success     bool
	Err         error
	Metadata    map[string]any
}
