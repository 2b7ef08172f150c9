package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	"github.com/smallbiznis/rentbill/internal/observability/metrics"
	"github.com/smallbiznis/rentbill/internal/sequence/domain"
	"github.com/smallbiznis/rentbill/internal/sequence/format"
	"github.com/smallbiznis/rentbill/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Clock   clock.Clock
	Billing *config.BillingConfigHolder
	Metrics *metrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	clock   clock.Clock
	billing *config.BillingConfigHolder
	metrics *metrics.BillingMetrics
}

func NewService(p Params) domain.Allocator {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("sequence.service"),
		repo:    p.Repo,
		clock:   p.Clock,
		billing: p.Billing,
		metrics: p.Metrics,
	}
}

func (s *Service) Allocate(ctx context.Context, entityType domain.EntityType, outletID snowflake.ID) (int64, error) {
	if !entityType.Valid() {
		return 0, errs.Validation(domain.ErrInvalidEntityType, fmt.Sprintf("unknown entity type %q", entityType))
	}
	if outletID == 0 {
		return 0, errs.Validation(domain.ErrInvalidOutlet, "outlet id is required")
	}

	value, err := s.repo.Increment(ctx, s.db, entityType, outletID)
	if err != nil {
		return 0, errs.Allocation(err, "allocate "+string(entityType)+" sequence")
	}
	return value, nil
}

// Format renders PREFIX-OUTLET-YYYYMM-NNNNN, e.g. INV-BLR01-202610-00042.
func (s *Service) Format(entityType domain.EntityType, outletCode string, seq int64, at time.Time) (string, error) {
	return format.FormatCode(format.DefaultCodeTemplate, format.Parts{
		Prefix: s.prefix(entityType),
		Outlet: NormalizeOutletCode(outletCode),
		At:     at,
		Seq:    seq,
	})
}

func (s *Service) AllocateCode(ctx context.Context, req domain.AllocateCodeRequest) (*domain.Code, error) {
	at := req.At
	if at.IsZero() {
		at = s.clock.Now()
	}
	outletCode := req.OutletCode
	if strings.TrimSpace(outletCode) == "" {
		outletCode = req.OutletID.String()
	}

	seq, err := s.Allocate(ctx, req.EntityType, req.OutletID)
	if err == nil {
		value, err := s.Format(req.EntityType, outletCode, seq, at)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "format sequence code")
		}
		s.metrics.IncSequenceAllocation(string(req.EntityType), metrics.AllocationSourceSequence)
		return &domain.Code{
			Value:    value,
			Sequence: seq,
			Source:   domain.SourceSequence,
		}, nil
	}
	if errs.IsValidation(err) || ctx.Err() != nil {
		return nil, err
	}

	value, ferr := s.fallbackCode(req.EntityType, outletCode, at)
	if ferr != nil {
		return nil, errs.Wrap(errs.KindInternal, ferr, "format fallback code")
	}
	code := &domain.Code{
		Value:  value,
		Source: domain.SourceFallback,
	}
	s.metrics.IncSequenceAllocation(string(req.EntityType), metrics.AllocationSourceFallback)
	s.log.Warn("sequence allocation failed, issuing fallback code",
		zap.String("entity_type", string(req.EntityType)),
		zap.String("outlet_id", req.OutletID.String()),
		zap.String("code", code.Value),
		zap.Error(err),
	)
	return code, nil
}

// fallbackCode renders PREFIX-OUTLET-YYYYMM-F<ULID>. The F marker keeps it
// visibly distinct from counter-issued numbers.
func (s *Service) fallbackCode(entityType domain.EntityType, outletCode string, at time.Time) (string, error) {
	id := ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy())
	return format.FormatCode(format.FallbackCodeTemplate, format.Parts{
		Prefix: s.prefix(entityType),
		Outlet: NormalizeOutletCode(outletCode),
		At:     at,
		Token:  id.String(),
	})
}

func (s *Service) prefix(entityType domain.EntityType) string {
	cfg := config.DefaultBillingConfig()
	if s.billing != nil {
		cfg = s.billing.Get()
	}
	switch entityType {
	case domain.EntityPayment:
		return strings.ToUpper(cfg.Payment.Prefix)
	default:
		return strings.ToUpper(cfg.Invoice.Prefix)
	}
}

// NormalizeOutletCode reduces an outlet code to upper-case alphanumerics.
func NormalizeOutletCode(code string) string {
	normalized := strings.ToUpper(strings.ReplaceAll(slug.Make(code), "-", ""))
	if normalized == "" {
		return "OUTLET"
	}
	return normalized
}
