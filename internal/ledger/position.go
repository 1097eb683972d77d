package ledger

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Position is one holding in the portfolio.
type Position struct {
	Ticker       string
	BuyPrice     decimal.Decimal
	CurrentPrice decimal.Decimal
	Quantity     int64
	// ProfitLoss is derived from the fields above and is only as fresh as
	// the last recompute.
	ProfitLoss decimal.NullDecimal

	// raw holds the object as it was read from disk, so keys this package
	// does not know about survive a load/save cycle.
	raw       map[string]json.RawMessage
	malformed bool
	// null marks an array element that was JSON null; it is written back as null.
	null bool
}

// Malformed reports whether the position was loaded as null or with a missing or
// non-numeric price or quantity. Such positions count as zero.
func (p Position) Malformed() bool { return p.malformed }

// Value returns current_price × quantity, or zero for a malformed position.
func (p Position) Value() decimal.Decimal {
	if p.malformed {
		return decimal.Zero
	}
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity))
}

func (p *Position) recompute() {
	if p.malformed {
		p.ProfitLoss = decimal.NewNullDecimal(decimal.Zero)
		return
	}
	pl := p.CurrentPrice.Sub(p.BuyPrice).Mul(decimal.NewFromInt(p.Quantity))
	p.ProfitLoss = decimal.NewNullDecimal(pl)
}

// MarshalJSON writes the persisted shape: ticker, buy_price, current_price,
// quantity and profit_loss once it has been computed.
func (p Position) MarshalJSON() ([]byte, error) {
	if p.null {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(p.raw)+5)
	for k, v := range p.raw {
		out[k] = v
	}
	if !p.malformed {
		out["ticker"] = p.Ticker
		out["buy_price"] = json.Number(p.BuyPrice.String())
		out["current_price"] = json.Number(p.CurrentPrice.String())
		out["quantity"] = p.Quantity
	}
	if p.ProfitLoss.Valid {
		out["profit_loss"] = json.Number(p.ProfitLoss.Decimal.String())
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts any JSON object, or null. Numeric fields may be numbers or
// numeric strings; anything else marks the position malformed instead of
// failing the whole load.
func (p *Position) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*p = Position{malformed: true, null: true}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Position{raw: raw}
	p.Ticker = rawText(raw["ticker"])
	if pl, ok := rawDecimal(raw["profit_loss"]); ok {
		p.ProfitLoss = decimal.NewNullDecimal(pl)
	}

	buy, okBuy := rawDecimal(raw["buy_price"])
	current, okCurrent := rawDecimal(raw["current_price"])
	qty, okQty := rawInt(raw["quantity"])
	if !okBuy || !okCurrent || !okQty {
		p.malformed = true
		return nil
	}
	p.BuyPrice, p.CurrentPrice, p.Quantity = buy, current, qty
	return nil
}

func rawText(msg json.RawMessage) string {
	if len(msg) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	return string(msg)
}

func rawDecimal(msg json.RawMessage) (decimal.Decimal, bool) {
	if len(msg) == 0 {
		return decimal.Zero, false
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return decimal.Zero, false
	}
	var text string
	switch v := v.(type) {
	case float64:
		text = string(msg)
	case string:
		text = strings.TrimSpace(v)
	default:
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// rawInt truncates JSON numbers toward zero and accepts integer strings.
// Numbers outside the int64 range are rejected.
func rawInt(msg json.RawMessage) (int64, bool) {
	if len(msg) == 0 {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return 0, false
	}
	switch v := v.(type) {
	case float64:
		d, err := decimal.NewFromString(string(msg))
		if err != nil {
			return 0, false
		}
		whole := d.Truncate(0)
		if !decimal.NewFromInt(whole.IntPart()).Equal(whole) {
			return 0, false
		}
		return whole.IntPart(), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
