package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/rentbill/internal/tax/domain"
)

type computeTaxRequest struct {
	OutletState   string               `json:"outlet_state"`
	CustomerState string               `json:"customer_state"`
	Lines         []taxdomain.LineItem `json:"lines"`
}

type taxLineResponse struct {
	LineTotal decimal.Decimal `json:"line_total"`
	LineTax   decimal.Decimal `json:"line_tax"`
}

type taxBreakdownResponse struct {
	Subtotal   decimal.Decimal   `json:"subtotal"`
	CGST       decimal.Decimal   `json:"cgst"`
	SGST       decimal.Decimal   `json:"sgst"`
	IGST       decimal.Decimal   `json:"igst"`
	TaxTotal   decimal.Decimal   `json:"tax_total"`
	GrandTotal decimal.Decimal   `json:"grand_total"`
	InterState bool              `json:"inter_state"`
	Lines      []taxLineResponse `json:"lines"`
}

// ComputeTax previews the GST split of a line set without persisting anything.
func (s *Server) ComputeTax(c *gin.Context) {
	var req computeTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	breakdown, err := s.taxCalc.ComputeTax(req.Lines, req.OutletState, req.CustomerState)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	lines := make([]taxLineResponse, 0, len(breakdown.Lines))
	for _, line := range breakdown.Lines {
		lines = append(lines, taxLineResponse{
			LineTotal: line.LineTotal,
			LineTax:   line.LineTax,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": taxBreakdownResponse{
		Subtotal:   breakdown.Subtotal,
		CGST:       breakdown.CGST,
		SGST:       breakdown.SGST,
		IGST:       breakdown.IGST,
		TaxTotal:   breakdown.TaxTotal,
		GrandTotal: breakdown.GrandTotal,
		InterState: taxdomain.InterState(req.OutletState, req.CustomerState),
		Lines:      lines,
	}})
}
