package domain

import "errors"

var (
	ErrInvalidOrder     = errors.New("invalid_order")
	ErrInvalidInvoice   = errors.New("invalid_invoice")
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
	ErrInvoiceExists    = errors.New("invoice_already_exists")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidStatus    = errors.New("invalid_status")
)
