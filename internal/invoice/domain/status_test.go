package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSettle(t *testing.T) {
	due := time.Date(2026, time.November, 17, 0, 0, 0, 0, time.UTC)
	before := due.Add(-time.Hour)
	after := due.Add(time.Hour)
	grand := decimal.RequireFromString("2885.00")

	cases := []struct {
		name        string
		received    string
		now         time.Time
		wantBalance string
		wantStatus  InvoiceStatus
	}{
		{"nothing received before due", "0", before, "2885", InvoiceStatusPending},
		{"nothing received after due", "0", after, "2885", InvoiceStatusOverdue},
		{"partial before due", "1000.00", before, "1885", InvoiceStatusPartial},
		{"partial stays partial after due", "1000.00", after, "1885", InvoiceStatusPartial},
		{"exact payment", "2885.00", after, "0", InvoiceStatusPaid},
		{"overpayment clamps balance", "3000.00", before, "0", InvoiceStatusPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			balance, status := Settle(grand, decimal.RequireFromString(tc.received), due, tc.now)
			assert.True(t, decimal.RequireFromString(tc.wantBalance).Equal(balance), "balance %s", balance)
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func TestSettleZeroTotalIsPaid(t *testing.T) {
	balance, status := Settle(decimal.Zero, decimal.Zero, time.Time{}, time.Now())
	assert.True(t, balance.IsZero())
	assert.Equal(t, InvoiceStatusPaid, status)
}

func TestDueDate(t *testing.T) {
	created := time.Date(2026, time.October, 18, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.November, 17, 10, 0, 0, 0, time.UTC), DueDate(created, 30))
	assert.Equal(t, created, DueDate(created, 0))
}
