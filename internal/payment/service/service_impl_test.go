package service_test

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/rentbill/internal/invoice/repository"
	orderdomain "github.com/smallbiznis/rentbill/internal/order/domain"
	orderrepository "github.com/smallbiznis/rentbill/internal/order/repository"
	"github.com/smallbiznis/rentbill/internal/outletcontext"
	"github.com/smallbiznis/rentbill/internal/payment/domain"
	"github.com/smallbiznis/rentbill/internal/payment/repository"
	"github.com/smallbiznis/rentbill/internal/payment/service"
	seqdomain "github.com/smallbiznis/rentbill/internal/sequence/domain"
	seqrepository "github.com/smallbiznis/rentbill/internal/sequence/repository"
	seqservice "github.com/smallbiznis/rentbill/internal/sequence/service"
	"github.com/smallbiznis/rentbill/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

const testOutletID snowflake.ID = 1

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "payment.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&orderdomain.OutletRecord{},
		&invoicedomain.Invoice{},
		&domain.Payment{},
		&seqdomain.SequenceCounter{},
	))
	require.NoError(t, db.Create(&orderdomain.OutletRecord{ID: testOutletID, Code: "BLR01", Name: "Indiranagar", StateCode: "KA"}).Error)
	return db
}

// seedInvoice stores an unpaid intra-state invoice with grand total 2885.00.
func seedInvoice(t *testing.T, db *gorm.DB, id snowflake.ID, dueDate time.Time) *invoicedomain.Invoice {
	t.Helper()
	invoice := &invoicedomain.Invoice{
		ID:                  id,
		InvoiceNumber:       "INV-BLR01-202610-" + id.String(),
		InvoiceNumberSource: invoicedomain.NumberSourceSequence,
		OrderID:             id + 1000,
		OutletID:            testOutletID,
		CustomerID:          2,
		Subtotal:            decimal.RequireFromString("2500.00"),
		CGST:                decimal.RequireFromString("192.50"),
		SGST:                decimal.RequireFromString("192.50"),
		IGST:                decimal.Zero,
		TaxTotal:            decimal.RequireFromString("385.00"),
		TotalAmount:         decimal.RequireFromString("2885.00"),
		PaymentReceived:     decimal.Zero,
		BalanceDue:          decimal.RequireFromString("2885.00"),
		Status:              invoicedomain.InvoiceStatusPending,
		DueDate:             dueDate,
		CreatedAt:           testNow,
		UpdatedAt:           testNow,
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func newLedger(t *testing.T, db *gorm.DB, clk clock.Clock) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	billing := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())

	return service.NewService(service.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Invoices: invoicerepository.Provide(),
		Orders:   orderrepository.NewProvider(orderrepository.Params{DB: db}),
		Sequence: seqservice.NewService(seqservice.Params{
			DB:      db,
			Log:     zap.NewNop(),
			Repo:    seqrepository.Provide(),
			Clock:   clk,
			Billing: billing,
		}),
		Clock: clk,
	})
}

func dec(value string) decimal.Decimal { return decimal.RequireFromString(value) }

func record(t *testing.T, ledger domain.Service, invoiceID snowflake.ID, amount string) *domain.LedgerResult {
	t.Helper()
	result, err := ledger.RecordPayment(context.Background(), domain.RecordPaymentRequest{
		InvoiceID: invoiceID,
		Amount:    dec(amount),
		Method:    domain.MethodUPI,
		PaidOn:    testNow,
	})
	require.NoError(t, err)
	return result
}

func loadInvoice(t *testing.T, db *gorm.DB, id snowflake.ID) *invoicedomain.Invoice {
	t.Helper()
	var invoice invoicedomain.Invoice
	require.NoError(t, db.First(&invoice, "id = ?", id).Error)
	return &invoice
}

func TestRecordPaymentSettlesInTwoInstalments(t *testing.T) {
	db := setupTestDB(t)
	invoice := seedInvoice(t, db, 500, testNow.AddDate(0, 0, 30))
	ctx := outletcontext.WithActorID(context.Background(), "cashier-7")
	ledger := newLedger(t, db, clock.NewFakeClock(testNow))

	first, err := ledger.RecordPayment(ctx, domain.RecordPaymentRequest{
		InvoiceID: invoice.ID,
		Amount:    dec("1000.00"),
		Method:    domain.Method(" UPI "),
		PaidOn:    testNow,
	})
	require.NoError(t, err)
	assert.True(t, dec("1885.00").Equal(first.Invoice.BalanceDue), first.Invoice.BalanceDue.String())
	assert.Equal(t, invoicedomain.InvoiceStatusPartial, first.Invoice.Status)
	assert.Equal(t, "PAY-BLR01-202610-00001", first.Payment.ReceiptNumber)
	assert.Equal(t, "sequence", first.Payment.ReceiptNumberSource)
	assert.Equal(t, domain.MethodUPI, first.Payment.Method)
	assert.Equal(t, "cashier-7", first.Payment.CreatedBy)

	second := record(t, ledger, invoice.ID, "1885.00")
	assert.True(t, second.Invoice.BalanceDue.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, second.Invoice.Status)
	assert.Equal(t, "PAY-BLR01-202610-00002", second.Payment.ReceiptNumber)

	stored := loadInvoice(t, db, invoice.ID)
	assert.True(t, dec("2885.00").Equal(stored.PaymentReceived))
	assert.True(t, stored.BalanceDue.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, stored.Status)
}

func TestDeletePaymentRecomputesAggregates(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	invoice := seedInvoice(t, db, 501, testNow.AddDate(0, 0, 30))
	ledger := newLedger(t, db, clock.NewFakeClock(testNow))

	first := record(t, ledger, invoice.ID, "1000.00")
	second := record(t, ledger, invoice.ID, "1885.00")

	afterSecond, err := ledger.DeletePayment(ctx, second.Payment.ID)
	require.NoError(t, err)
	assert.True(t, dec("1885.00").Equal(afterSecond.Invoice.BalanceDue))
	assert.Equal(t, invoicedomain.InvoiceStatusPartial, afterSecond.Invoice.Status)

	afterFirst, err := ledger.DeletePayment(ctx, first.Payment.ID)
	require.NoError(t, err)
	assert.True(t, dec("2885.00").Equal(afterFirst.Invoice.BalanceDue))
	assert.True(t, afterFirst.Invoice.PaymentReceived.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusPending, afterFirst.Invoice.Status)

	_, err = ledger.DeletePayment(ctx, first.Payment.ID)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	payments, err := ledger.ListPayments(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	// soft-deleted rows stay in the table
	var total int64
	require.NoError(t, db.Unscoped().Model(&domain.Payment{}).Count(&total).Error)
	assert.EqualValues(t, 2, total)
}

func TestRecordPaymentValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	invoice := seedInvoice(t, db, 502, testNow.AddDate(0, 0, 30))
	ledger := newLedger(t, db, clock.NewFakeClock(testNow))
	longRef := strings.Repeat("r", 200)

	cases := []struct {
		name string
		req  domain.RecordPaymentRequest
		want error
	}{
		{"zero amount", domain.RecordPaymentRequest{InvoiceID: invoice.ID, Amount: decimal.Zero, Method: domain.MethodCash}, domain.ErrInvalidAmount},
		{"negative amount", domain.RecordPaymentRequest{InvoiceID: invoice.ID, Amount: dec("-5"), Method: domain.MethodCash}, domain.ErrInvalidAmount},
		{"sub-paisa amount", domain.RecordPaymentRequest{InvoiceID: invoice.ID, Amount: dec("10.005"), Method: domain.MethodCash}, domain.ErrInvalidAmount},
		{"unknown method", domain.RecordPaymentRequest{InvoiceID: invoice.ID, Amount: dec("10"), Method: "barter"}, domain.ErrInvalidMethod},
		{"missing invoice id", domain.RecordPaymentRequest{Amount: dec("10"), Method: domain.MethodCash}, domain.ErrInvalidPayment},
		{"long reference", domain.RecordPaymentRequest{InvoiceID: invoice.ID, Amount: dec("10"), Method: domain.MethodCash, Reference: &longRef}, domain.ErrInvalidPayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.RecordPayment(ctx, tc.req)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := ledger.RecordPayment(ctx, domain.RecordPaymentRequest{InvoiceID: 9999, Amount: dec("10"), Method: domain.MethodCash})
	assert.True(t, errs.IsNotFound(err))

	stored := loadInvoice(t, db, invoice.ID)
	assert.True(t, stored.PaymentReceived.IsZero())
}

func TestRefreshOverdue(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(testNow)
	ledger := newLedger(t, db, clk)

	pastDue := seedInvoice(t, db, 600, testNow.AddDate(0, 0, -1))
	notDue := seedInvoice(t, db, 601, testNow.AddDate(0, 0, 5))
	partial := seedInvoice(t, db, 602, testNow.AddDate(0, 0, -1))
	record(t, ledger, partial.ID, "100.00")

	changed, err := ledger.RefreshOverdue(ctx, testNow, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, loadInvoice(t, db, pastDue.ID).Status)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, loadInvoice(t, db, notDue.ID).Status)
	assert.Equal(t, invoicedomain.InvoiceStatusPartial, loadInvoice(t, db, partial.ID).Status)

	changed, err = ledger.RefreshOverdue(ctx, testNow, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	// paying an overdue invoice in part moves it to partial
	result := record(t, ledger, pastDue.ID, "885.00")
	assert.Equal(t, invoicedomain.InvoiceStatusPartial, result.Invoice.Status)
	assert.True(t, dec("2000.00").Equal(result.Invoice.BalanceDue))
}

func TestConcurrentPaymentsDoNotLoseUpdates(t *testing.T) {
	db := setupTestDB(t)
	invoice := seedInvoice(t, db, 700, testNow.AddDate(0, 0, 30))
	ledger := newLedger(t, db, clock.NewFakeClock(testNow))

	const workers = 10
	var wg sync.WaitGroup
	receipts := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := ledger.RecordPayment(context.Background(), domain.RecordPaymentRequest{
				InvoiceID: invoice.ID,
				Amount:    dec("100.00"),
				Method:    domain.MethodCash,
			})
			if assert.NoError(t, err) {
				receipts <- result.Payment.ReceiptNumber
			}
		}()
	}
	wg.Wait()
	close(receipts)

	seen := map[string]bool{}
	for receipt := range receipts {
		assert.False(t, seen[receipt], "duplicate receipt %s", receipt)
		seen[receipt] = true
	}
	assert.Len(t, seen, workers)

	stored := loadInvoice(t, db, invoice.ID)
	assert.True(t, dec("1000.00").Equal(stored.PaymentReceived), stored.PaymentReceived.String())
	assert.True(t, dec("1885.00").Equal(stored.BalanceDue), stored.BalanceDue.String())
	assert.Equal(t, invoicedomain.InvoiceStatusPartial, stored.Status)
}

func TestLedgerBalanceInvariantUnderRandomMutations(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	due := testNow.AddDate(0, 0, 30)
	invoice := seedInvoice(t, db, 800, due)
	ledger := newLedger(t, db, clock.NewFakeClock(testNow))
	grand := dec("2885.00")

	rng := rand.New(rand.NewSource(42))
	active := map[snowflake.ID]decimal.Decimal{}
	for step := 0; step < 40; step++ {
		if len(active) > 0 && rng.Intn(3) == 0 {
			for id := range active {
				_, err := ledger.DeletePayment(ctx, id)
				require.NoError(t, err)
				delete(active, id)
				break
			}
		} else {
			amount := decimal.New(int64(rng.Intn(90000)+1), -2)
			result := record(t, ledger, invoice.ID, amount.StringFixed(2))
			active[result.Payment.ID] = amount
		}

		sum := decimal.Zero
		for _, amount := range active {
			sum = sum.Add(amount)
		}
		wantBalance, wantStatus := invoicedomain.Settle(grand, sum, due, testNow)
		if wantBalance.IsNegative() {
			t.Fatalf("negative balance")
		}

		stored := loadInvoice(t, db, invoice.ID)
		require.True(t, sum.Equal(stored.PaymentReceived), "step %d: received %s want %s", step, stored.PaymentReceived, sum)
		require.True(t, wantBalance.Equal(stored.BalanceDue), "step %d: balance %s want %s", step, stored.BalanceDue, wantBalance)
		require.Equal(t, wantStatus, stored.Status, "step %d", step)

		expected := grand.Sub(sum)
		if expected.IsNegative() {
			expected = decimal.Zero
		}
		require.True(t, expected.Equal(stored.BalanceDue), "step %d", step)
	}
}
