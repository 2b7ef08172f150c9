package domain

import "errors"

var (
	ErrEmptyLines      = errors.New("empty_line_items")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidRate     = errors.New("invalid_unit_rate")
	ErrInvalidTaxRate  = errors.New("invalid_tax_rate")
)
