package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbill/internal/clock"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	"github.com/smallbiznis/rentbill/internal/observability/logger"
	"github.com/smallbiznis/rentbill/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/rentbill/internal/order/domain"
	"github.com/smallbiznis/rentbill/internal/outletcontext"
	paymentdomain "github.com/smallbiznis/rentbill/internal/payment/domain"
	seqdomain "github.com/smallbiznis/rentbill/internal/sequence/domain"
	pkgdb "github.com/smallbiznis/rentbill/pkg/db"
	"github.com/smallbiznis/rentbill/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxReferenceLength = 128

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     paymentdomain.Repository
	Invoices invoicedomain.Repository
	Orders   orderdomain.Provider
	Sequence seqdomain.Allocator
	Clock    clock.Clock
	Metrics  *metrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     paymentdomain.Repository
	invoices invoicedomain.Repository
	orders   orderdomain.Provider
	sequence seqdomain.Allocator
	clock    clock.Clock
	metrics  *metrics.BillingMetrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		invoices: p.Invoices,
		orders:   p.Orders,
		sequence: p.Sequence,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

func (s *Service) RecordPayment(ctx context.Context, req paymentdomain.RecordPaymentRequest) (*paymentdomain.LedgerResult, error) {
	method, reference, err := validateRecord(req)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	paidOn := req.PaidOn
	if paidOn.IsZero() {
		paidOn = now
	}

	invoice, err := s.invoices.FindByID(ctx, s.db, req.InvoiceID)
	if err != nil {
		return nil, pkgdb.ClassifyError(err, "load invoice")
	}
	if invoice == nil {
		return nil, errs.NotFound(paymentdomain.ErrInvoiceNotFound, "invoice not found")
	}

	code, err := s.sequence.AllocateCode(ctx, seqdomain.AllocateCodeRequest{
		EntityType: seqdomain.EntityPayment,
		OutletID:   invoice.OutletID,
		OutletCode: s.outletCode(ctx, invoice.OutletID),
		At:         now,
	})
	if err != nil {
		return nil, err
	}

	payment := &paymentdomain.Payment{
		ID:                  s.genID.Generate(),
		InvoiceID:           invoice.ID,
		OutletID:            invoice.OutletID,
		ReceiptNumber:       code.Value,
		ReceiptNumberSource: string(code.Source),
		Amount:              req.Amount,
		Method:              method,
		PaidOn:              paidOn.UTC(),
		Reference:           reference,
		CreatedBy:           outletcontext.ActorIDFromContext(ctx),
		CreatedAt:           now,
	}

	var updated *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.invoices.FindByIDForUpdate(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return paymentdomain.ErrInvoiceNotFound
		}
		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			return err
		}
		updated, err = s.recompute(ctx, tx, locked, now)
		return err
	})
	if err != nil {
		return nil, s.classify(err, "record payment")
	}

	s.metrics.AddPaymentMutations(metrics.PaymentOperationRecord, 1)
	logger.WithContext(ctx, s.log).Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", updated.ID.String()),
		zap.String("receipt_number", payment.ReceiptNumber),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("status", string(updated.Status)),
	)
	return &paymentdomain.LedgerResult{Payment: payment, Invoice: updated}, nil
}

func (s *Service) DeletePayment(ctx context.Context, paymentID snowflake.ID) (*paymentdomain.LedgerResult, error) {
	if paymentID == 0 {
		return nil, errs.Validation(paymentdomain.ErrInvalidPayment, "payment id is required")
	}

	now := s.clock.Now().UTC()
	var (
		payment *paymentdomain.Payment
		updated *invoicedomain.Invoice
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindActive(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if found == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		locked, err := s.invoices.FindByIDForUpdate(ctx, tx, found.InvoiceID)
		if err != nil {
			return err
		}
		if locked == nil {
			return paymentdomain.ErrInvoiceNotFound
		}
		// a concurrent delete may have won while we waited for the lock
		deleted, err := s.repo.SoftDelete(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if !deleted {
			return paymentdomain.ErrPaymentNotFound
		}
		payment = found
		updated, err = s.recompute(ctx, tx, locked, now)
		return err
	})
	if err != nil {
		return nil, s.classify(err, "delete payment")
	}

	s.metrics.AddPaymentMutations(metrics.PaymentOperationDelete, 1)
	logger.WithContext(ctx, s.log).Info("payment deleted",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", updated.ID.String()),
		zap.String("status", string(updated.Status)),
	)
	return &paymentdomain.LedgerResult{Payment: payment, Invoice: updated}, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID snowflake.ID) ([]paymentdomain.Payment, error) {
	if invoiceID == 0 {
		return nil, errs.Validation(paymentdomain.ErrInvalidPayment, "invoice id is required")
	}
	invoice, err := s.invoices.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, pkgdb.ClassifyError(err, "load invoice")
	}
	if invoice == nil {
		return nil, errs.NotFound(paymentdomain.ErrInvoiceNotFound, "invoice not found")
	}
	payments, err := s.repo.ListActive(ctx, s.db, invoiceID)
	if err != nil {
		return nil, pkgdb.ClassifyError(err, "list payments")
	}
	return payments, nil
}

// RefreshOverdue handles each invoice in its own transaction so one failure
// does not hold back the rest of the batch.
func (s *Service) RefreshOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	candidates, err := s.invoices.ListOverdueCandidates(ctx, s.db, now, limit)
	if err != nil {
		return 0, pkgdb.ClassifyError(err, "list overdue candidates")
	}

	log := logger.WithContext(ctx, s.log)
	changed := 0
	var failures []error
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}
		var moved bool
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			locked, err := s.invoices.FindByIDForUpdate(ctx, tx, candidate.ID)
			if err != nil || locked == nil {
				return err
			}
			before := locked.Status
			updated, err := s.recompute(ctx, tx, locked, now)
			if err != nil {
				return err
			}
			moved = before != updated.Status && updated.Status == invoicedomain.InvoiceStatusOverdue
			return nil
		})
		if err != nil {
			log.Warn("overdue refresh failed", zap.String("invoice_id", candidate.ID.String()), zap.Error(err))
			failures = append(failures, pkgdb.ClassifyError(err, "refresh invoice "+candidate.ID.String()))
			continue
		}
		if moved {
			changed++
		}
	}

	s.metrics.AddPaymentMutations(metrics.PaymentOperationOverdue, changed)
	if changed > 0 {
		log.Info("invoices marked overdue", zap.Int("count", changed))
	}
	return changed, errors.Join(failures...)
}

// recompute rebuilds the aggregates from the active payments. The caller must
// hold the invoice row lock.
func (s *Service) recompute(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, now time.Time) (*invoicedomain.Invoice, error) {
	payments, err := s.repo.ListActive(ctx, tx, invoice.ID)
	if err != nil {
		return nil, err
	}

	received := decimal.Zero
	for _, payment := range payments {
		received = received.Add(payment.Amount)
	}
	balance, status := invoicedomain.Settle(invoice.TotalAmount, received, invoice.DueDate, now)

	invoice.PaymentReceived = received.Round(2)
	invoice.BalanceDue = balance
	invoice.Status = status
	invoice.UpdatedAt = now
	if err := s.invoices.UpdateAggregates(ctx, tx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// outletCode is best effort; the allocator formats unknown outlets by id.
func (s *Service) outletCode(ctx context.Context, outletID snowflake.ID) string {
	if s.orders == nil {
		return ""
	}
	outlet, err := s.orders.GetOutlet(ctx, outletID)
	if err != nil {
		s.log.Warn("outlet lookup failed", zap.String("outlet_id", outletID.String()), zap.Error(err))
		return ""
	}
	return outlet.Code
}

func (s *Service) classify(err error, message string) error {
	switch {
	case errors.Is(err, paymentdomain.ErrInvoiceNotFound):
		return errs.NotFound(err, "invoice not found")
	case errors.Is(err, paymentdomain.ErrPaymentNotFound):
		return errs.NotFound(err, "payment not found")
	default:
		return pkgdb.ClassifyError(err, message)
	}
}

func validateRecord(req paymentdomain.RecordPaymentRequest) (paymentdomain.Method, *string, error) {
	if req.InvoiceID == 0 {
		return "", nil, errs.Validation(paymentdomain.ErrInvalidPayment, "invoice id is required")
	}
	if !req.Amount.IsPositive() {
		return "", nil, errs.Validation(paymentdomain.ErrInvalidAmount, "amount must be positive")
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return "", nil, errs.Validation(paymentdomain.ErrInvalidAmount, "amount has more than two decimal places")
	}
	method, ok := paymentdomain.ParseMethod(string(req.Method))
	if !ok {
		return "", nil, errs.Validation(paymentdomain.ErrInvalidMethod, "unsupported payment method")
	}

	if req.Reference == nil {
		return method, nil, nil
	}
	reference := strings.TrimSpace(*req.Reference)
	if reference == "" {
		return method, nil, nil
	}
	if utf8.RuneCountInString(reference) > maxReferenceLength {
		return "", nil, errs.Validation(paymentdomain.ErrInvalidPayment, "reference is too long")
	}
	return method, &reference, nil
}
