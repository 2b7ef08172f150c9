package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	"github.com/smallbiznis/rentbill/internal/invoice/domain"
	"github.com/smallbiznis/rentbill/internal/observability/logger"
	"github.com/smallbiznis/rentbill/internal/observability/metrics"
	"github.com/smallbiznis/rentbill/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/rentbill/internal/order/domain"
	"github.com/smallbiznis/rentbill/internal/outletcontext"
	seqdomain "github.com/smallbiznis/rentbill/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/rentbill/internal/tax/domain"
	pkgdb "github.com/smallbiznis/rentbill/pkg/db"
	"github.com/smallbiznis/rentbill/pkg/errs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const tracerName = "rentbill/invoice"

const (
	triggerCreate = "create"
	triggerRetry  = "retry"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Orders   orderdomain.Provider
	Tax      taxdomain.Calculator
	Sequence seqdomain.Allocator
	Audit    auditdomain.Trail
	Clock    clock.Clock
	Billing  *config.BillingConfigHolder
	Metrics  *metrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	orders   orderdomain.Provider
	tax      taxdomain.Calculator
	sequence seqdomain.Allocator
	audit    auditdomain.Trail
	clock    clock.Clock
	billing  *config.BillingConfigHolder
	metrics  *metrics.BillingMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		orders:   p.Orders,
		tax:      p.Tax,
		sequence: p.Sequence,
		audit:    p.Audit,
		clock:    p.Clock,
		billing:  p.Billing,
		metrics:  p.Metrics,
	}
}

// attemptState carries what one call learns across its attempts.
type attemptState struct {
	trigger  string
	outletID snowflake.ID
	// code is reused by later attempts unless it came from the fallback path
	code *seqdomain.Code
}

func (s *Service) CreateInvoiceForOrder(ctx context.Context, orderID snowflake.ID) (*domain.CreationResult, error) {
	return s.run(ctx, orderID, triggerCreate)
}

func (s *Service) RecreateInvoiceForOrder(ctx context.Context, orderID snowflake.ID) (*domain.CreationResult, error) {
	return s.run(ctx, orderID, triggerRetry)
}

func (s *Service) run(ctx context.Context, orderID snowflake.ID, trigger string) (result *domain.CreationResult, err error) {
	if orderID == 0 {
		return nil, errs.Validation(domain.ErrInvalidOrder, "order id is required")
	}

	ctx, span := tracing.Start(ctx, tracerName, "invoice.create", trace.WithAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.String("trigger", trigger),
	))
	defer func() { tracing.End(span, err) }()

	start := s.clock.Now()
	defer func() { s.metrics.ObserveCreationDuration(s.clock.Now().Sub(start)) }()

	log := logger.WithContext(ctx, s.log).With(
		zap.String("order_id", orderID.String()),
		zap.String("trigger", trigger),
	)

	policy := s.billingConfig().Retry
	state := &attemptState{trigger: trigger}
	attempts := 0
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if sleepErr := s.clock.Sleep(ctx, policy.Delay(attempt-1)); sleepErr != nil {
				log.Warn("retry wait interrupted", zap.Int("attempt", attempt), zap.Error(sleepErr))
				break
			}
		}

		existing, guardErr := s.repo.FindByOrderID(ctx, s.db, orderID)
		if guardErr == nil && existing != nil {
			s.metrics.IncCreationAttempt(metrics.CreationOutcomeNoop)
			log.Info("invoice already exists for order",
				zap.String("invoice_id", existing.ID.String()),
				zap.Int("attempt", attempt),
			)
			return &domain.CreationResult{Invoice: existing, Outcome: domain.OutcomeExisting, Attempts: attempts}, nil
		}

		attempts++
		var invoice *domain.Invoice
		if guardErr != nil {
			lastErr = pkgdb.ClassifyError(guardErr, "check existing invoice")
		} else {
			invoice, lastErr = s.attempt(ctx, orderID, attempt, state)
		}

		if lastErr == nil {
			s.metrics.IncCreationAttempt(metrics.CreationOutcomeSucceeded)
			log.Info("invoice created",
				zap.String("invoice_id", invoice.ID.String()),
				zap.String("invoice_number", invoice.InvoiceNumber),
				zap.String("number_source", string(invoice.InvoiceNumberSource)),
				zap.Int("attempt", attempt),
			)
			return &domain.CreationResult{Invoice: invoice, Outcome: domain.OutcomeCreated, Attempts: attempts}, nil
		}

		switch {
		case errs.IsValidation(lastErr), errs.IsNotFound(lastErr):
			log.Info("invoice creation rejected", zap.Error(lastErr))
			return nil, lastErr
		case errs.IsConflict(lastErr):
			s.metrics.IncCreationAttempt(metrics.CreationOutcomeConflict)
			log.Info("invoice created concurrently by another caller", zap.Int("attempt", attempt))
			return nil, lastErr
		}

		s.metrics.IncCreationAttempt(metrics.CreationOutcomeFailed)
		log.Warn("invoice creation attempt failed", zap.Int("attempt", attempt), zap.Error(lastErr))
		s.recordFailure(ctx, log, orderID, attempt, state, lastErr)

		if ctx.Err() != nil {
			break
		}
	}

	s.metrics.IncCreationAttempt(metrics.CreationOutcomeExhausted)
	log.Error("invoice creation failed", zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil, &errs.CreationFailedError{OrderID: orderID.String(), Attempts: attempts, Last: lastErr}
}

// attempt runs one fetch, compute, allocate and persist pass. The invoice,
// its lines and the success audit entry commit together or not at all.
func (s *Service) attempt(ctx context.Context, orderID snowflake.ID, attempt int, state *attemptState) (invoice *domain.Invoice, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "invoice.create.attempt", trace.WithAttributes(
		attribute.Int("attempt", attempt),
	))
	defer func() { tracing.End(span, err) }()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, orderdomain.ErrOrderNotFound):
			return nil, errs.NotFound(err, "order not found")
		case errors.Is(err, orderdomain.ErrInvalidOrder):
			return nil, errs.Validation(err, "invalid order")
		default:
			return nil, pkgdb.ClassifyError(err, "load order")
		}
	}
	state.outletID = order.OutletID

	breakdown, err := s.tax.ComputeTax(order.TaxLines(), order.OutletStateCode, order.CustomerStateCode)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if state.code == nil || state.code.IsFallback() {
		code, err := s.sequence.AllocateCode(ctx, seqdomain.AllocateCodeRequest{
			EntityType: seqdomain.EntityInvoice,
			OutletID:   order.OutletID,
			OutletCode: order.OutletCode,
			At:         now,
		})
		if err != nil {
			return nil, err
		}
		state.code = code
	}

	invoice = s.buildInvoice(ctx, order, breakdown, state, now)
	lines := s.buildLines(invoice.ID, order, breakdown, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.Insert(ctx, tx, invoice)
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrInvoiceExists
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}
		_, err = s.audit.Append(ctx, tx, auditdomain.AppendRequest{
			OrderID:   orderID,
			InvoiceID: &invoice.ID,
			OutletID:  order.OutletID,
			Success:   true,
			Metadata: map[string]any{
				"trigger":        state.trigger,
				"call_attempt":   attempt,
				"invoice_number": invoice.InvoiceNumber,
				"number_source":  string(invoice.InvoiceNumberSource),
			},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvoiceExists) {
			return nil, errs.Conflict(err, "order already has an invoice")
		}
		if pkgdb.IsDuplicateKeyErr(err) {
			// the number collided with an existing invoice; draw a new one next time
			state.code = nil
			return nil, errs.Wrap(errs.KindInternal, err, "persist invoice")
		}
		return nil, pkgdb.ClassifyError(err, "persist invoice")
	}
	return invoice, nil
}

func (s *Service) buildInvoice(ctx context.Context, order *orderdomain.Order, breakdown *taxdomain.TaxBreakdown, state *attemptState, now time.Time) *domain.Invoice {
	source := domain.NumberSourceSequence
	if state.code.IsFallback() {
		source = domain.NumberSourceFallback
	}
	dueDate := domain.DueDate(now, s.billingConfig().Payment.TermsDays)
	balance, status := domain.Settle(breakdown.GrandTotal, decimal.Zero, dueDate, now)

	metadata := datatypes.JSONMap{
		"trigger":      state.trigger,
		"requested_by": outletcontext.ActorIDFromContext(ctx),
	}
	if state.code.IsFallback() {
		metadata["needs_reconciliation"] = true
	}

	return &domain.Invoice{
		ID:                  s.genID.Generate(),
		InvoiceNumber:       state.code.Value,
		InvoiceNumberSource: source,
		OrderID:             order.ID,
		OutletID:            order.OutletID,
		CustomerID:          order.CustomerID,
		Subtotal:            breakdown.Subtotal,
		CGST:                breakdown.CGST,
		SGST:                breakdown.SGST,
		IGST:                breakdown.IGST,
		TaxTotal:            breakdown.TaxTotal,
		TotalAmount:         breakdown.GrandTotal,
		PaymentReceived:     decimal.Zero,
		BalanceDue:          balance,
		Status:              status,
		DueDate:             dueDate,
		Metadata:            metadata,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *Service) buildLines(invoiceID snowflake.ID, order *orderdomain.Order, breakdown *taxdomain.TaxBreakdown, now time.Time) []domain.InvoiceLineItem {
	lines := make([]domain.InvoiceLineItem, 0, len(order.Lines))
	for i, line := range order.Lines {
		lineNo := line.LineNo
		if lineNo <= 0 {
			lineNo = i + 1
		}
		item := domain.InvoiceLineItem{
			ID:             s.genID.Generate(),
			InvoiceID:      invoiceID,
			LineNo:         lineNo,
			Description:    line.Description,
			Quantity:       line.Quantity,
			UnitRate:       line.UnitRate,
			TaxRatePercent: line.TaxRatePercent,
			CreatedAt:      now,
		}
		if i < len(breakdown.Lines) {
			item.LineTotal = breakdown.Lines[i].LineTotal
			item.LineTax = breakdown.Lines[i].LineTax
		}
		lines = append(lines, item)
	}
	return lines
}

// recordFailure appends the failed attempt outside the rolled back
// transaction. A cancelled caller context does not suppress the entry.
func (s *Service) recordFailure(ctx context.Context, log *zap.Logger, orderID snowflake.ID, attempt int, state *attemptState, cause error) {
	ctx = context.WithoutCancel(ctx)
	metadata := map[string]any{
		"trigger":      state.trigger,
		"call_attempt": attempt,
		"error_kind":   string(errs.KindOf(cause)),
	}
	if !s.resolveOutlet(ctx, log, orderID, state) {
		metadata["outlet_unknown"] = true
	}

	_, err := s.audit.Append(ctx, nil, auditdomain.AppendRequest{
		OrderID:  orderID,
		OutletID: state.outletID,
		Success:  false,
		Err:      cause,
		Metadata: metadata,
	})
	if err != nil {
		log.Error("failed to append audit entry", zap.Int("attempt", attempt), zap.Error(err))
	}
}

// resolveOutlet fills state.outletID when the attempt failed before the
// order was loaded. It reports false when the outlet is still unknown.
func (s *Service) resolveOutlet(ctx context.Context, log *zap.Logger, orderID snowflake.ID, state *attemptState) bool {
	if state.outletID != 0 {
		return true
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		log.Warn("outlet lookup for audit entry failed", zap.Error(err))
		return false
	}
	state.outletID = order.OutletID
	return state.outletID != 0
}

func (s *Service) billingConfig() config.BillingConfig {
	if s.billing == nil {
		return config.DefaultBillingConfig()
	}
	return s.billing.Get()
}
