package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/rentbill/internal/payment/domain"
)

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	PaidOn    string          `json:"paid_on"`
	Reference *string         `json:"reference"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	paidOn, err := parseOptionalTime(req.PaidOn)
	if err != nil {
		AbortWithError(c, newValidationError("paid_on", "invalid_paid_on", "paid_on must be RFC3339 or YYYY-MM-DD"))
		return
	}

	var paidAt time.Time
	if paidOn != nil {
		paidAt = *paidOn
	}
	result, err := s.paymentSvc.RecordPayment(c.Request.Context(), paymentdomain.RecordPaymentRequest{
		InvoiceID: invoiceID,
		Amount:    req.Amount,
		Method:    paymentdomain.Method(req.Method),
		PaidOn:    paidAt,
		Reference: req.Reference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListInvoicePayments(c *gin.Context) {
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	payments, err := s.paymentSvc.ListPayments(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) DeletePayment(c *gin.Context) {
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := s.paymentSvc.DeletePayment(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
