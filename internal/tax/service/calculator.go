package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbill/internal/config"
	taxdomain "github.com/smallbiznis/rentbill/internal/tax/domain"
	"github.com/smallbiznis/rentbill/pkg/errs"
	"go.uber.org/fx"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	Billing *config.BillingConfigHolder
}

type calculator struct {
	billing *config.BillingConfigHolder
}

func NewCalculator(p Params) taxdomain.Calculator {
	return &calculator{billing: p.Billing}
}

// ComputeTax rounds every line to 2 places before aggregating, then splits the
// tax total into CGST/SGST or IGST.
func (c *calculator) ComputeTax(lines []taxdomain.LineItem, outletState, customerState string) (*taxdomain.TaxBreakdown, error) {
	if err := c.validate(lines); err != nil {
		return nil, err
	}

	out := &taxdomain.TaxBreakdown{
		Subtotal: decimal.Zero,
		CGST:     decimal.Zero,
		SGST:     decimal.Zero,
		IGST:     decimal.Zero,
		TaxTotal: decimal.Zero,
		Lines:    make([]taxdomain.LineResult, 0, len(lines)),
	}
	for _, line := range lines {
		lineTotal := round2(line.Quantity.Mul(line.UnitRate))
		lineTax := round2(lineTotal.Mul(line.TaxRatePercent).Div(hundred))
		out.Lines = append(out.Lines, taxdomain.LineResult{LineTotal: lineTotal, LineTax: lineTax})
		out.Subtotal = out.Subtotal.Add(lineTotal)
		out.TaxTotal = out.TaxTotal.Add(lineTax)
	}
	out.GrandTotal = round2(out.Subtotal.Add(out.TaxTotal))

	if taxdomain.InterState(outletState, customerState) {
		out.IGST = out.TaxTotal
		return out, nil
	}

	out.CGST, out.SGST = splitIntraState(out.TaxTotal)
	return out, nil
}

// splitIntraState halves taxTotal. SGST takes the half rounded down and CGST
// takes the rest, so an odd paisa deliberately lands on CGST instead of
// rounding both halves half-up, which would overshoot taxTotal by 0.01.
func splitIntraState(taxTotal decimal.Decimal) (cgst, sgst decimal.Decimal) {
	sgst = taxTotal.Div(decimal.NewFromInt(2)).RoundDown(2)
	cgst = taxTotal.Sub(sgst)
	return cgst, sgst
}

func (c *calculator) validate(lines []taxdomain.LineItem) error {
	if len(lines) == 0 {
		return errs.Validation(taxdomain.ErrEmptyLines, "at least one line item is required")
	}
	allowed := c.allowedRates()
	for i, line := range lines {
		if !line.Quantity.IsPositive() {
			return errs.Validation(taxdomain.ErrInvalidQuantity, fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
		if line.UnitRate.IsNegative() {
			return errs.Validation(taxdomain.ErrInvalidRate, fmt.Sprintf("line %d: unit rate cannot be negative", i+1))
		}
		if !rateAllowed(allowed, line.TaxRatePercent) {
			return errs.Validation(taxdomain.ErrInvalidTaxRate, fmt.Sprintf("line %d: tax rate %s%% is not allowed", i+1, line.TaxRatePercent.String()))
		}
	}
	return nil
}

func (c *calculator) allowedRates() []decimal.Decimal {
	rates := config.DefaultBillingConfig().Tax.AllowedRates
	if c.billing != nil {
		rates = c.billing.Get().Tax.AllowedRates
	}
	out := make([]decimal.Decimal, 0, len(rates))
	for _, rate := range rates {
		out = append(out, decimal.NewFromFloat(rate))
	}
	return out
}

func rateAllowed(allowed []decimal.Decimal, rate decimal.Decimal) bool {
	for _, candidate := range allowed {
		if candidate.Equal(rate) {
			return true
		}
	}
	return false
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
