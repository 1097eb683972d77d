// Package report turns a ledger into human readable reports.
package report

import (
	"fmt"
	"strings"
	"time"

	"portfolio-tracker/internal/ledger"

	"github.com/Rhymond/go-money"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const Title = "Investment Portfolio Report"

// Row is one position as shown in a report.
type Row struct {
	Ticker       string          `json:"ticker"`
	BuyPrice     decimal.Decimal `json:"buy_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Quantity     int64           `json:"quantity"`
	ProfitLoss   decimal.Decimal `json:"profit_loss"`
	Malformed    bool            `json:"malformed,omitempty"`
}

// Report is a point-in-time view of the ledger with its totals.
type Report struct {
	ID              string          `json:"id"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Currency        string          `json:"currency"`
	Rows            []Row           `json:"rows"`
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalProfitLoss decimal.Decimal `json:"total_profit_loss"`
}

// Build recomputes the ledger and captures its positions and totals.
func Build(l *ledger.Ledger, currency string) Report {
	totalPL := l.TotalProfitLoss()
	positions := l.Positions()

	rows := make([]Row, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, Row{
			Ticker:       p.Ticker,
			BuyPrice:     p.BuyPrice,
			CurrentPrice: p.CurrentPrice,
			Quantity:     p.Quantity,
			ProfitLoss:   p.ProfitLoss.Decimal,
			Malformed:    p.Malformed(),
		})
	}

	return Report{
		ID:              ulid.Make().String(),
		GeneratedAt:     time.Now(),
		Currency:        currency,
		Rows:            rows,
		TotalValue:      l.TotalValue(),
		TotalProfitLoss: totalPL,
	}
}

// Tone classifies the overall result: "gain", "loss" or "flat".
func (r Report) Tone() string {
	switch {
	case r.TotalProfitLoss.IsPositive():
		return "gain"
	case r.TotalProfitLoss.IsNegative():
		return "loss"
	default:
		return "flat"
	}
}

// Money formats amount in the report currency, e.g. £1,234.50.
func (r Report) Money(amount decimal.Decimal) string {
	return FormatMoney(amount, r.Currency)
}

// FormatMoney formats amount with the symbol and grouping of currency. Unknown
// currency codes fall back to "CODE 0.00".
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		return fmt.Sprintf("%s %s", currency, amount.StringFixed(2))
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}
