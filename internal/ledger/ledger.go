// Package ledger holds the in-memory list of portfolio positions and the
// profit/loss figures derived from it.
//
// A Ledger is not safe for concurrent use; callers that share one across
// goroutines must serialise access themselves.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"portfolio-tracker/internal/atomicfile"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidInput is returned when an addition or price update is rejected.
var ErrInvalidInput = errors.New("invalid input")

// ThresholdStatus is the outcome of CheckThreshold.
type ThresholdStatus int

const (
	Within ThresholdStatus = iota
	Exceeded
)

func (s ThresholdStatus) String() string {
	if s == Exceeded {
		return "exceeded"
	}
	return "within"
}

// Ledger is an ordered, append-only collection of positions.
type Ledger struct {
	log       *zap.Logger
	positions []Position
}

// New creates an empty ledger.
func New(log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{log: log.Named("ledger")}
}

// Len returns the number of positions.
func (l *Ledger) Len() int { return len(l.positions) }

// Positions returns a copy of the positions in insertion order.
func (l *Ledger) Positions() []Position {
	out := make([]Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// Add parses the textual fields of a new position and appends it. Any parse
// failure or out-of-range value rejects the whole addition.
func (l *Ledger) Add(ticker, buyPrice, currentPrice, quantity string) (Position, error) {
	p, err := parsePosition(ticker, buyPrice, currentPrice, quantity)
	if err != nil {
		l.log.Warn("Rejected position", zap.String("ticker", ticker), zap.Error(err))
		return Position{}, err
	}
	l.positions = append(l.positions, p)
	l.log.Info("Position added",
		zap.String("ticker", p.Ticker),
		zap.Stringer("buy_price", p.BuyPrice),
		zap.Stringer("current_price", p.CurrentPrice),
		zap.Int64("quantity", p.Quantity))
	return p, nil
}

func parsePosition(ticker, buyText, currentText, quantityText string) (Position, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return Position{}, fmt.Errorf("%w: ticker is empty", ErrInvalidInput)
	}
	buy, err := decimal.NewFromString(strings.TrimSpace(buyText))
	if err != nil {
		return Position{}, fmt.Errorf("%w: buy price %q is not a number", ErrInvalidInput, buyText)
	}
	if !buy.IsPositive() {
		return Position{}, fmt.Errorf("%w: buy price must be positive, got %s", ErrInvalidInput, buy)
	}
	current, err := decimal.NewFromString(strings.TrimSpace(currentText))
	if err != nil {
		return Position{}, fmt.Errorf("%w: current price %q is not a number", ErrInvalidInput, currentText)
	}
	if current.IsNegative() {
		return Position{}, fmt.Errorf("%w: current price must not be negative, got %s", ErrInvalidInput, current)
	}
	qty, err := strconv.ParseInt(strings.TrimSpace(quantityText), 10, 64)
	if err != nil {
		return Position{}, fmt.Errorf("%w: quantity %q is not a whole number", ErrInvalidInput, quantityText)
	}
	if qty <= 0 {
		return Position{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidInput, qty)
	}
	return Position{Ticker: ticker, BuyPrice: buy, CurrentPrice: current, Quantity: qty}, nil
}

// SetCurrentPrice replaces the current price of every well-formed position
// holding ticker (case-insensitive) and returns how many were updated.
func (l *Ledger) SetCurrentPrice(ticker string, price decimal.Decimal) (int, error) {
	if price.IsNegative() {
		return 0, fmt.Errorf("%w: current price must not be negative, got %s", ErrInvalidInput, price)
	}
	ticker = strings.TrimSpace(ticker)
	updated := 0
	for i := range l.positions {
		p := &l.positions[i]
		if p.malformed || !strings.EqualFold(p.Ticker, ticker) {
			continue
		}
		p.CurrentPrice = price
		updated++
	}
	return updated, nil
}

// RecomputeProfitLoss refreshes profit_loss on every position. Malformed
// positions get zero and the pass carries on.
func (l *Ledger) RecomputeProfitLoss() {
	for i := range l.positions {
		p := &l.positions[i]
		p.recompute()
		if p.malformed {
			l.log.Warn("Position has non-numeric fields, profit/loss set to zero",
				zap.Int("index", i), zap.String("ticker", p.Ticker))
		}
	}
}

// TotalValue returns the sum of current_price × quantity rounded to 2 places.
func (l *Ledger) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(p.Value())
	}
	return total.Round(2)
}

// TotalProfitLoss recomputes every position and returns the sum of their
// profit/loss.
func (l *Ledger) TotalProfitLoss() decimal.Decimal {
	l.RecomputeProfitLoss()
	total := decimal.Zero
	for _, p := range l.positions {
		total = total.Add(p.ProfitLoss.Decimal)
	}
	return total
}

// CheckThreshold reports Exceeded when |total profit/loss| is strictly
// greater than threshold. The total it compared is returned too.
func (l *Ledger) CheckThreshold(threshold decimal.Decimal) (ThresholdStatus, decimal.Decimal) {
	total := l.TotalProfitLoss()
	if total.Abs().GreaterThan(threshold) {
		return Exceeded, total
	}
	return Within, total
}

// Save writes every position to path as a JSON array, replacing the file
// atomically.
func (l *Ledger) Save(path string) error {
	positions := l.positions
	if positions == nil {
		positions = []Position{}
	}
	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode portfolio: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	l.log.Info("Portfolio saved", zap.String("path", path), zap.Int("positions", len(l.positions)))
	return nil
}

// Load replaces the ledger contents with the positions stored at path.
// A missing file returns found=false and leaves the ledger untouched, as
// does any error.
func (l *Ledger) Load(path string) (found bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		l.log.Info("No saved portfolio found", zap.String("path", path))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read portfolio: %w", err)
	}

	var positions []Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return false, fmt.Errorf("failed to decode portfolio %s: %w", path, err)
	}
	l.positions = positions
	l.log.Info("Portfolio loaded", zap.String("path", path), zap.Int("positions", len(positions)))
	return true, nil
}
