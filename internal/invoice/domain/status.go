package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settle derives the balance and status for a grand total and the sum of
// active payments. Overdue applies only to invoices with nothing received.
func Settle(grandTotal, received decimal.Decimal, dueDate, now time.Time) (decimal.Decimal, InvoiceStatus) {
	balance := grandTotal.Sub(received)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	balance = balance.Round(2)

	switch {
	case balance.IsZero():
		return balance, InvoiceStatusPaid
	case received.IsPositive() && received.LessThan(grandTotal):
		return balance, InvoiceStatusPartial
	case !dueDate.IsZero() && now.After(dueDate):
		return balance, InvoiceStatusOverdue
	default:
		return balance, InvoiceStatusPending
	}
}

// DueDate is the creation time plus the payment terms in whole days.
func DueDate(createdAt time.Time, termsDays int) time.Time {
	return createdAt.AddDate(0, 0, termsDays)
}
