package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one priced order line submitted for tax computation.
type LineItem struct {
	Description    string          `json:"description,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitRate       decimal.Decimal `json:"unit_rate"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
}

// LineResult carries the rounded per-line amounts in input order.
type LineResult struct {
	LineTotal decimal.Decimal
	LineTax   decimal.Decimal
}

// TaxBreakdown is the rounded tax split of a line set. It always satisfies
// CGST+SGST+IGST == TaxTotal and Subtotal+TaxTotal == GrandTotal.
type TaxBreakdown struct {
	Subtotal   decimal.Decimal
	CGST       decimal.Decimal
	SGST       decimal.Decimal
	IGST       decimal.Decimal
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal
	Lines      []LineResult
}

// InterState reports whether both jurisdictions are known and differ.
// A missing code is treated as intra-state.
func InterState(outletState, customerState string) bool {
	outletState = NormalizeStateCode(outletState)
	customerState = NormalizeStateCode(customerState)
	if outletState == "" || customerState == "" {
		return false
	}
	return outletState != customerState
}

func NormalizeStateCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
