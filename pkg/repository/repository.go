package repository

import (
	"context"

	"github.com/smallbiznis/rentbill/pkg/db/option"
	"gorm.io/gorm"
)

// Reader is a generic filter-by-example gorm reader. Zero-valued fields of
// the query struct are ignored, as with gorm's struct conditions.
type Reader[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
}

// ProvideStore binds a Reader to db, which may be a transaction handle.
func ProvideStore[T any](db *gorm.DB) Reader[T] {
	return reader[T]{db: db}
}
