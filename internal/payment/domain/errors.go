package domain

import "errors"

var (
	ErrInvalidPayment  = errors.New("invalid_payment")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidMethod   = errors.New("invalid_payment_method")
	ErrPaymentNotFound = errors.New("payment_not_found")
	ErrInvoiceNotFound = errors.New("invoice_not_found")
)
