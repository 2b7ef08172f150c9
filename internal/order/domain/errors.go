package domain

import "errors"

var (
	ErrInvalidOrder   = errors.New("invalid_order")
	ErrOrderNotFound  = errors.New("order_not_found")
	ErrOutletNotFound = errors.New("outlet_not_found")
)
