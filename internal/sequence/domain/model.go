package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntityType scopes a counter. Each (entity type, outlet) pair owns one row.
type EntityType string

const (
	EntityInvoice EntityType = "invoice"
	EntityPayment EntityType = "payment"
)

func (e EntityType) Valid() bool {
	switch e {
	case EntityInvoice, EntityPayment:
		return true
	default:
		return false
	}
}

// Source records where an issued code came from.
type Source string

const (
	SourceSequence Source = "sequence"
	SourceFallback Source = "fallback"
)

// SequenceCounter is the persisted counter row. LastValue only ever grows.
type SequenceCounter struct {
	EntityType EntityType   `gorm:"column:entity_type;type:varchar(32);primaryKey"`
	OutletID   snowflake.ID `gorm:"column:outlet_id;primaryKey;autoIncrement:false"`
	LastValue  int64        `gorm:"column:last_value;not null"`
	UpdatedAt  time.Time    `gorm:"column:updated_at;not null"`
}

func (SequenceCounter) TableName() string { return "sequence_counters" }

type AllocateCodeRequest struct {
	EntityType EntityType
	OutletID   snowflake.ID
	OutletCode string
	At         time.Time
}

// Code is a formatted document number. Fallback codes carry no sequence value
// and must be reconciled later.
type Code struct {
	Value    string
	Sequence int64
	Source   Source
}

func (c Code) IsFallback() bool {
	return c.Source == SourceFallback
}
