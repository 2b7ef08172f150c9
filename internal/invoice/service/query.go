package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbill/internal/invoice/domain"
	pkgdb "github.com/smallbiznis/rentbill/pkg/db"
	"github.com/smallbiznis/rentbill/pkg/db/pagination"
	"github.com/smallbiznis/rentbill/pkg/errs"
)

func (s *Service) GetInvoice(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	if id == 0 {
		return nil, errs.Validation(domain.ErrInvalidInvoice, "invoice id is required")
	}
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, pkgdb.ClassifyError(err, "load invoice")
	}
	if invoice == nil {
		return nil, errs.NotFound(domain.ErrInvoiceNotFound, "invoice not found")
	}
	return invoice, nil
}

func (s *Service) GetInvoiceByOrder(ctx context.Context, orderID snowflake.ID) (*domain.Invoice, error) {
	if orderID == 0 {
		return nil, errs.Validation(domain.ErrInvalidOrder, "order id is required")
	}
	invoice, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, pkgdb.ClassifyError(err, "load invoice by order")
	}
	if invoice == nil {
		return nil, errs.NotFound(domain.ErrInvoiceNotFound, "order has no invoice")
	}
	return invoice, nil
}

func (s *Service) ListInvoiceLineItems(ctx context.Context, invoiceID snowflake.ID) ([]domain.InvoiceLineItem, error) {
	if _, err := s.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, s.db, invoiceID)
	if err != nil {
		return nil, pkgdb.ClassifyError(err, "list invoice lines")
	}
	return lines, nil
}

func (s *Service) ListInvoices(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListInvoiceResponse{}, errs.Validation(domain.ErrInvalidStatus, "unknown invoice status")
	}

	pageSize := pagination.NormalizePageSize(req.PageSize)
	filter := domain.ListFilter{
		OutletID:     req.OutletID,
		Status:       req.Status,
		NumberSource: req.NumberSource,
		Limit:        pageSize + 1,
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListInvoiceResponse{}, errs.Validation(domain.ErrInvalidPageToken, "malformed page token")
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListInvoiceResponse{}, errs.Validation(domain.ErrInvalidPageToken, "malformed page token")
		}
		filter.BeforeID = beforeID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListInvoiceResponse{}, pkgdb.ClassifyError(err, "list invoices")
	}

	page, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(invoice *domain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: invoice.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	invoices := make([]domain.Invoice, 0, len(page))
	for _, item := range page {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	return domain.ListInvoiceResponse{PageInfo: *pageInfo, Invoices: invoices}, nil
}

func (s *Service) ListFallbackNumbered(ctx context.Context, outletID snowflake.ID, limit int) ([]domain.Invoice, error) {
	if outletID == 0 {
		return nil, errs.Validation(domain.ErrInvalidInvoice, "outlet id is required")
	}
	resp, err := s.ListInvoices(ctx, domain.ListInvoiceRequest{
		OutletID:     outletID,
		NumberSource: domain.NumberSourceFallback,
		PageSize:     limit,
	})
	if err != nil {
		return nil, err
	}
	return resp.Invoices, nil
}
