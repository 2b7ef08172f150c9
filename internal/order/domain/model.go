package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/rentbill/internal/tax/domain"
)

// Order is the billing view of an order owned by the order-management system.
type Order struct {
	ID                snowflake.ID
	OutletID          snowflake.ID
	OutletCode        string
	OutletStateCode   string
	CustomerID        snowflake.ID
	CustomerStateCode string
	Lines             []OrderLine
}

type OrderLine struct {
	LineNo         int
	Description    string
	Quantity       decimal.Decimal
	UnitRate       decimal.Decimal
	TaxRatePercent decimal.Decimal
}

// TaxLines projects the order lines into tax calculator input, preserving order.
func (o *Order) TaxLines() []taxdomain.LineItem {
	out := make([]taxdomain.LineItem, 0, len(o.Lines))
	for _, line := range o.Lines {
		out = append(out, taxdomain.LineItem{
			Description:    line.Description,
			Quantity:       line.Quantity,
			UnitRate:       line.UnitRate,
			TaxRatePercent: line.TaxRatePercent,
		})
	}
	return out
}

// Rows below mirror the collaborator-owned tables this package reads. They are
// never written by the billing engine outside of tests and seeding.

type OutletRecord struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Code      string       `gorm:"type:varchar(32);not null"`
	Name      string       `gorm:"type:text;not null"`
	StateCode string       `gorm:"column:state_code;type:varchar(8)"`
}

func (OutletRecord) TableName() string { return "outlets" }

type CustomerRecord struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	OutletID  snowflake.ID `gorm:"column:outlet_id;not null"`
	Name      string       `gorm:"type:text;not null"`
	StateCode string       `gorm:"column:state_code;type:varchar(8)"`
}

func (CustomerRecord) TableName() string { return "customers" }

type OrderRecord struct {
	ID         snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	OutletID   snowflake.ID `gorm:"column:outlet_id;not null"`
	CustomerID snowflake.ID `gorm:"column:customer_id;not null"`
	CreatedAt  time.Time    `gorm:"not null"`
}

func (OrderRecord) TableName() string { return "orders" }

type OrderItemRecord struct {
	ID             snowflake.ID    `gorm:"primaryKey;autoIncrement:false"`
	OrderID        snowflake.ID    `gorm:"column:order_id;not null;index"`
	LineNo         int             `gorm:"column:line_no;not null"`
	Description    string          `gorm:"type:text;not null"`
	Quantity       decimal.Decimal `gorm:"type:numeric(14,3);not null"`
	Rate           decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TaxRatePercent decimal.Decimal `gorm:"column:tax_rate_percent;type:numeric(5,2);not null"`
}

func (OrderItemRecord) TableName() string { return "order_items" }
