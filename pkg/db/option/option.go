package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		op := cond.Operator
		if op == "" {
			op = EQ
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, op), cond.Value)
	})
}

type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

func WithQuerySortBy(field, order string, allow map[string]bool) QuerySortBy {
	return QuerySortBy{
		Field: strings.TrimSpace(field),
		Desc:  strings.EqualFold(strings.TrimSpace(order), "desc"),
		Allow: allow,
	}
}

// WithSortBy orders by an allow-listed column; anything else falls back to created_at.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := sort.Field
		if field == "" || !sort.Allow[field] {
			field = "created_at"
		}
		if sort.Desc {
			return db.Order(field + " desc")
		}
		return db.Order(field + " asc")
	})
}

func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}
