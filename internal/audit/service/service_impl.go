package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/audit/domain"
	"github.com/smallbiznis/rentbill/internal/audit/masking"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	obscontext "github.com/smallbiznis/rentbill/internal/observability/context"
	"github.com/smallbiznis/rentbill/internal/outletcontext"
	pkgdb "github.com/smallbiznis/rentbill/pkg/db"
	"github.com/smallbiznis/rentbill/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// numbering collisions are retried this many times before giving up
const maxNumberingRetries = 3

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Billing *config.BillingConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	billing *config.BillingConfigHolder
}

func NewService(p Params) domain.Trail {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		billing: p.Billing,
	}
}

// Append returns nil, nil when a failure arrives after the order already has
// an invoice; the success entry stays last. For failures the invoice check
// runs after the attempt number is read, so a success committed in between is
// either seen here or collides on the (order, attempt) key and forces a reread.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, req domain.AppendRequest) (*domain.CreationAuditEntry, error) {
	if req.OrderID == 0 {
		return nil, errs.Validation(domain.ErrInvalidOrder, "order id is required")
	}
	if req.Success && (req.InvoiceID == nil || *req.InvoiceID == 0) {
		return nil, errs.Validation(domain.ErrSuccessWithoutTarget, "successful attempt must reference an invoice")
	}

	db := tx
	if db == nil {
		db = s.db
	}

	entry := &domain.CreationAuditEntry{
		OrderID:     req.OrderID,
		InvoiceID:   req.InvoiceID,
		OutletID:    req.OutletID,
		RequesterID: s.requester(ctx, req.RequesterID),
		Success:     req.Success,
		Metadata:    s.metadata(ctx, req.Metadata),
		CreatedAt:   s.clock.Now(),
	}
	if !req.Success && req.Err != nil {
		message := masking.SanitizeMessage(req.Err.Error(), s.messageLimit())
		entry.ErrorMessage = &message
	}

	for try := 0; try < maxNumberingRetries; try++ {
		max, err := s.repo.MaxAttemptNumber(ctx, db, req.OrderID)
		if err != nil {
			return nil, pkgdb.ClassifyError(err, "number audit entry")
		}
		if !req.Success {
			exists, err := s.repo.InvoiceExists(ctx, db, req.OrderID)
			if err != nil {
				return nil, pkgdb.ClassifyError(err, "check invoice before audit")
			}
			if exists {
				s.log.Info("skipping failure entry for invoiced order",
					zap.String("order_id", req.OrderID.String()),
					zap.Error(req.Err),
				)
				return nil, nil
			}
		}
		entry.ID = s.genID.Generate()
		entry.AttemptNumber = max + 1

		inserted, err := s.repo.Insert(ctx, db, entry)
		if err != nil {
			return nil, pkgdb.ClassifyError(err, "append audit entry")
		}
		if inserted {
			return entry, nil
		}
	}
	return nil, errs.Transient(domain.ErrAttemptNumberRace, "audit attempt number contended")
}

func (s *Service) GetAuditTrail(ctx context.Context, orderID snowflake.ID, limit int) ([]domain.CreationAuditEntry, error) {
	if orderID == 0 {
		return nil, errs.Validation(domain.ErrInvalidOrder, "order id is required")
	}
	entries, err := s.repo.ListRecent(ctx, s.db, orderID, limit)
	if err != nil {
		return nil, pkgdb.ClassifyError(err, "list audit trail")
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// HasFailedAttempts is true when the latest entry is a failure and the order
// still has no invoice.
func (s *Service) HasFailedAttempts(ctx context.Context, orderID snowflake.ID) (bool, error) {
	if orderID == 0 {
		return false, errs.Validation(domain.ErrInvalidOrder, "order id is required")
	}
	latest, err := s.repo.Latest(ctx, s.db, orderID)
	if err != nil {
		return false, pkgdb.ClassifyError(err, "load latest audit entry")
	}
	if latest == nil || latest.Success {
		return false, nil
	}
	exists, err := s.repo.InvoiceExists(ctx, s.db, orderID)
	if err != nil {
		return false, pkgdb.ClassifyError(err, "check invoice")
	}
	return !exists, nil
}

func (s *Service) requester(ctx context.Context, requesterID string) string {
	if trimmed := strings.TrimSpace(requesterID); trimmed != "" {
		return trimmed
	}
	return outletcontext.ActorIDFromContext(ctx)
}

func (s *Service) metadata(ctx context.Context, metadata map[string]any) datatypes.JSONMap {
	payload := datatypes.JSONMap{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if len(payload) == 0 {
		return nil
	}
	return payload
}

func (s *Service) messageLimit() int {
	limit := config.DefaultBillingConfig().Audit.MessageLimit
	if s.billing != nil {
		limit = s.billing.Get().Audit.MessageLimit
	}
	return limit
}
