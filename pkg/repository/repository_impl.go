package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/rentbill/pkg/db/option"
	"gorm.io/gorm"
)

type reader[T any] struct {
	db *gorm.DB
}

func (r reader[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var rows []*T
	if err := r.scope(ctx, query, opts).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne returns nil, nil when nothing matches.
func (r reader[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var row T
	err := r.scope(ctx, query, opts).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &row, nil
}

func (r reader[T]) scope(ctx context.Context, query *T, opts []option.QueryOption) *gorm.DB {
	stmt := r.db.WithContext(ctx).Where(query)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	return stmt
}
