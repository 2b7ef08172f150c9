package domain

// Calculator computes GST splits. Implementations are pure and perform no I/O.
type Calculator interface {
	ComputeTax(lines []LineItem, outletState, customerState string) (*TaxBreakdown, error)
}
