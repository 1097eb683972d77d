package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"portfolio-tracker/internal/config"
	"portfolio-tracker/internal/ledger"
	"portfolio-tracker/internal/models"
	"portfolio-tracker/internal/quote"
	"portfolio-tracker/internal/report"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrEmptyPortfolio is returned by operations that need at least one position.
	ErrEmptyPortfolio = errors.New("add stocks first")
	// ErrNoQuoteClient is returned when price fetching is not configured.
	ErrNoQuoteClient = errors.New("quote fetching is not configured")
)

// HistoryStore records valuations and fetched prices.
type HistoryStore interface {
	RecordSnapshot(snap *models.Snapshot) error
	RecordQuote(q *models.Quote) error
}

// Notification is the result of a threshold check.
type Notification struct {
	Status          ledger.ThresholdStatus `json:"-"`
	Exceeded        bool                   `json:"exceeded"`
	TotalProfitLoss decimal.Decimal        `json:"total_profit_loss"`
	Threshold       decimal.Decimal        `json:"threshold"`
	Message         string                 `json:"message"`
}

// RefreshResult lists the tickers a price refresh touched.
type RefreshResult struct {
	Updated []string
	Failed  map[string]error
}

// Service wires the ledger to its collaborators. Like the ledger it is
// meant to be driven from a single goroutine.
type Service struct {
	logger *zap.Logger
	cfg    *config.Config
	ledger *ledger.Ledger
	quotes quote.PriceFetcher
	store  HistoryStore
}

// NewService creates a service around l. quotes and store may be nil, which
// disables price fetching and history respectively.
func NewService(logger *zap.Logger, cfg *config.Config, l *ledger.Ledger, quotes quote.PriceFetcher, store HistoryStore) *Service {
	return &Service{
		logger: logger.Named("tracker"),
		cfg:    cfg,
		ledger: l,
		quotes: quotes,
		store:  store,
	}
}

// Ledger returns the ledger the service operates on.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// DefaultThreshold returns the configured notification threshold.
func (s *Service) DefaultThreshold() decimal.Decimal {
	return decimal.NewFromFloat(s.cfg.Portfolio.Threshold)
}

// Currency returns the ISO 4217 code amounts are shown in.
func (s *Service) Currency() string { return s.cfg.Portfolio.Currency }

// Open loads the configured portfolio file. found is false when there is
// no saved portfolio yet.
func (s *Service) Open() (found bool, err error) {
	return s.ledger.Load(s.cfg.Portfolio.File)
}

// Save writes the ledger to the configured portfolio file.
func (s *Service) Save() error {
	return s.ledger.Save(s.cfg.Portfolio.File)
}

func (s *Service) autosave() error {
	if !s.cfg.Portfolio.AutoSave {
		return nil
	}
	return s.Save()
}

// AddPosition adds a position from user supplied text and saves the
// portfolio when autosave is on.
func (s *Service) AddPosition(ticker, buyPrice, currentPrice, quantity string) (ledger.Position, error) {
	p, err := s.ledger.Add(ticker, buyPrice, currentPrice, quantity)
	if err != nil {
		return ledger.Position{}, err
	}
	if err := s.autosave(); err != nil {
		return p, err
	}
	return p, nil
}

// FetchPrice returns the latest price of symbol and records it in history.
func (s *Service) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if s.quotes == nil {
		return decimal.Zero, ErrNoQuoteClient
	}
	price, err := s.quotes.LatestPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	s.recordQuote(strings.ToUpper(strings.TrimSpace(symbol)), price)
	return price, nil
}

// RefreshPrices fetches every distinct ticker once and updates the matching
// positions. A failed fetch leaves that ticker's price untouched.
func (s *Service) RefreshPrices(ctx context.Context) (RefreshResult, error) {
	result := RefreshResult{Failed: make(map[string]error)}
	if s.quotes == nil {
		return result, ErrNoQuoteClient
	}

	for _, ticker := range s.tickers() {
		price, err := s.FetchPrice(ctx, ticker)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			s.logger.Warn("No price update", zap.String("ticker", ticker), zap.Error(err))
			result.Failed[ticker] = err
			continue
		}
		if _, err := s.ledger.SetCurrentPrice(ticker, price); err != nil {
			result.Failed[ticker] = err
			continue
		}
		result.Updated = append(result.Updated, ticker)
	}

	if len(result.Updated) > 0 {
		if err := s.autosave(); err != nil {
			return result, err
		}
	}
	s.logger.Info("Price refresh complete",
		zap.Int("updated", len(result.Updated)),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// tickers returns the distinct upper-cased tickers of well-formed positions.
func (s *Service) tickers() []string {
	seen := make(map[string]struct{})
	for _, p := range s.ledger.Positions() {
		if p.Malformed() {
			continue
		}
		seen[strings.ToUpper(p.Ticker)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Overview recomputes the ledger and returns a report of it along with the
// notification for the configured threshold. It records one snapshot.
func (s *Service) Overview() (report.Report, Notification, error) {
	if s.ledger.Len() == 0 {
		return report.Report{}, Notification{}, ErrEmptyPortfolio
	}
	rep := report.Build(s.ledger, s.cfg.Portfolio.Currency)
	threshold := s.DefaultThreshold()
	status, total := s.ledger.CheckThreshold(threshold)
	s.recordSnapshot("overview", rep.TotalValue, total, threshold, status)
	return rep, s.notification(status, total, threshold), nil
}

// CheckNotifications compares the absolute total profit/loss with threshold.
func (s *Service) CheckNotifications(threshold decimal.Decimal) (Notification, error) {
	return s.checkNotifications("check", threshold)
}

func (s *Service) checkNotifications(source string, threshold decimal.Decimal) (Notification, error) {
	if s.ledger.Len() == 0 {
		return Notification{}, ErrEmptyPortfolio
	}
	status, total := s.ledger.CheckThreshold(threshold)
	s.recordSnapshot(source, s.ledger.TotalValue(), total, threshold, status)
	return s.notification(status, total, threshold), nil
}

func (s *Service) notification(status ledger.ThresholdStatus, total, threshold decimal.Decimal) Notification {
	n := Notification{
		Status:          status,
		Exceeded:        status == ledger.Exceeded,
		TotalProfitLoss: total,
		Threshold:       threshold,
		Message:         "No notifications yet",
	}
	if n.Exceeded {
		n.Message = fmt.Sprintf("P/L %s exceeds your set threshold, act quickly!",
			report.FormatMoney(total, s.cfg.Portfolio.Currency))
	}
	return n
}

// Export writes a report of the ledger to path.
func (s *Service) Export(path string, format report.Format) (report.Report, error) {
	if s.ledger.Len() == 0 {
		return report.Report{}, ErrEmptyPortfolio
	}
	rep := report.Build(s.ledger, s.cfg.Portfolio.Currency)
	if err := report.WriteFile(path, rep, format); err != nil {
		return rep, err
	}
	s.logger.Info("Portfolio exported", zap.String("path", path), zap.String("format", string(format)), zap.String("report_id", rep.ID))
	return rep, nil
}

func (s *Service) recordSnapshot(source string, value, profitLoss, threshold decimal.Decimal, status ledger.ThresholdStatus) {
	if s.store == nil {
		return
	}
	snap := &models.Snapshot{
		TakenAt:         time.Now(),
		Positions:       s.ledger.Len(),
		TotalValue:      value,
		TotalProfitLoss: profitLoss,
		Threshold:       threshold,
		Exceeded:        status == ledger.Exceeded,
		Source:          source,
	}
	if err := s.store.RecordSnapshot(snap); err != nil {
		// History is best effort.
		s.logger.Warn("Failed to record snapshot", zap.Error(err))
	}
}

func (s *Service) recordQuote(ticker string, price decimal.Decimal) {
	if s.store == nil {
		return
	}
	q := &models.Quote{Ticker: ticker, Price: price, Source: quote.Source, FetchedAt: time.Now()}
	if err := s.store.RecordQuote(q); err != nil {
		s.logger.Warn("Failed to record quote", zap.String("ticker", ticker), zap.Error(err))
	}
}
