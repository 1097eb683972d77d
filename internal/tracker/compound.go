package tracker

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CompoundResult is the outcome of a compound interest calculation.
type CompoundResult struct {
	Total    decimal.Decimal `json:"total"`
	Interest decimal.Decimal `json:"interest"`
}

// CompoundInterest computes A = P(1 + r/n)^(n·t) where ratePercent is the
// annual rate in percent and timesPerYear is n. Both results are rounded to
// 2 decimal places.
func CompoundInterest(principal, ratePercent, years, timesPerYear decimal.Decimal) (CompoundResult, error) {
	if principal.IsNegative() || ratePercent.IsNegative() || years.IsNegative() {
		return CompoundResult{}, fmt.Errorf("amount, rate and years must not be negative")
	}
	if !timesPerYear.IsPositive() {
		return CompoundResult{}, fmt.Errorf("compounding frequency must be positive, got %s", timesPerYear)
	}

	r := ratePercent.Div(decimal.NewFromInt(100))
	base := decimal.NewFromInt(1).Add(r.Div(timesPerYear))
	growth, err := base.PowWithPrecision(timesPerYear.Mul(years), 16)
	if err != nil {
		return CompoundResult{}, fmt.Errorf("failed to compute compound growth: %w", err)
	}

	total := principal.Mul(growth).Round(2)
	return CompoundResult{
		Total:    total,
		Interest: total.Sub(principal).Round(2),
	}, nil
}
