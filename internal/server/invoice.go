package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/rentbill/internal/audit/domain"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	"github.com/smallbiznis/rentbill/internal/outletcontext"
	"github.com/smallbiznis/rentbill/pkg/db/pagination"
	"github.com/smallbiznis/rentbill/pkg/errs"
)

const maxAuditWindow = 200

type listInvoicesQuery struct {
	pagination.Pagination
	OutletID     string `form:"outlet_id"`
	Status       string `form:"status"`
	NumberSource string `form:"number_source"`
}

type auditTrailResponse struct {
	OrderID           string                           `json:"order_id"`
	HasFailedAttempts bool                             `json:"has_failed_attempts"`
	Entries           []auditdomain.CreationAuditEntry `json:"entries"`
}

func (s *Server) CreateInvoiceForOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.invoiceSvc.CreateInvoiceForOrder(c.Request.Context(), orderID)
	s.respondCreation(c, orderID, result, err)
}

func (s *Server) RetryInvoiceForOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.invoiceSvc.RecreateInvoiceForOrder(c.Request.Context(), orderID)
	s.respondCreation(c, orderID, result, err)
}

// respondCreation answers 201 for a new invoice and 200 when the order was
// already invoiced. A lost insert race answers 409 with the winning invoice.
func (s *Server) respondCreation(c *gin.Context, orderID snowflake.ID, result *invoicedomain.CreationResult, err error) {
	if err != nil {
		if errs.IsConflict(err) {
			if existing, lookupErr := s.invoiceSvc.GetInvoiceByOrder(c.Request.Context(), orderID); lookupErr == nil {
				status, payload := mapError(err)
				c.JSON(status, gin.H{"error": payload, "data": existing})
				return
			}
		}
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == invoicedomain.OutcomeCreated {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"data":     result.Invoice,
		"outcome":  result.Outcome,
		"attempts": result.Attempts,
	})
}

func (s *Server) GetInvoiceByOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.GetInvoiceByOrder(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) GetInvoiceAuditTrail(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit := s.billing.Get().Audit.DefaultWindow
	parsed, err := parseOptionalInt(c.Query("limit"))
	if err != nil || (parsed != nil && (*parsed < 0 || *parsed > maxAuditWindow)) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be between 0 and 200"))
		return
	}
	if parsed != nil {
		limit = *parsed
	}

	ctx := c.Request.Context()
	entries, err := s.auditTrail.GetAuditTrail(ctx, orderID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	failed, err := s.auditTrail.HasFailedAttempts(ctx, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": auditTrailResponse{
		OrderID:           orderID.String(),
		HasFailedAttempts: failed,
		Entries:           entries,
	}})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := invoicedomain.ListInvoiceRequest{
		Status:       invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(query.Status))),
		NumberSource: invoicedomain.NumberSource(strings.ToLower(strings.TrimSpace(query.NumberSource))),
		PageToken:    strings.TrimSpace(query.PageToken),
		PageSize:     query.PageSize,
	}
	outletID, err := parseOptionalSnowflakeID(query.OutletID)
	if err != nil {
		AbortWithError(c, newValidationError("outlet_id", "invalid_outlet_id", "invalid outlet_id"))
		return
	}
	if outletID != nil {
		req.OutletID = *outletID
	} else if scoped, ok := outletcontext.OutletIDFromContext(c.Request.Context()); ok {
		req.OutletID = scoped
	}

	resp, err := s.invoiceSvc.ListInvoices(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Invoices,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.GetInvoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) ListInvoiceLineItems(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	lines, err := s.invoiceSvc.ListInvoiceLineItems(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": lines})
}

func (s *Server) ListFallbackInvoices(c *gin.Context) {
	outletID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || (limit != nil && (*limit < 0 || *limit > pagination.MaxPageSize)) {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	size := 0
	if limit != nil {
		size = *limit
	}

	invoices, err := s.invoiceSvc.ListFallbackNumbered(c.Request.Context(), outletID, size)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices})
}
