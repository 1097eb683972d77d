package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"portfolio-tracker/internal/database"
	"portfolio-tracker/internal/ledger"
	"portfolio-tracker/internal/quote"
	"portfolio-tracker/internal/report"
	"portfolio-tracker/internal/tracker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// APIHandler holds dependencies for the API endpoints.
// The ledger is single-threaded; handlers that touch it hold mu.
type APIHandler struct {
	log   *zap.Logger
	svc   *tracker.Service
	store *database.Store

	mu sync.Mutex
}

// NewAPIHandler creates a new APIHandler. store may be nil when history is disabled.
func NewAPIHandler(log *zap.Logger, svc *tracker.Service, store *database.Store) *APIHandler {
	return &APIHandler{log: log, svc: svc, store: store}
}

// newRouter registers every endpoint on a fresh gin engine.
func newRouter(h *APIHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api")
	{
		api.GET("/positions", h.PositionsHandler)
		api.POST("/positions", h.AddPositionHandler)
		api.GET("/summary", h.SummaryHandler)
		api.GET("/notifications", h.NotificationsHandler)
		api.GET("/quote/:ticker", h.QuoteHandler)
		api.POST("/refresh", h.RefreshHandler)
		api.GET("/report", h.ReportHandler)
		api.POST("/save", h.SaveHandler)
		api.POST("/load", h.LoadHandler)
		api.GET("/snapshots", h.SnapshotsHandler)
		api.GET("/statistics", h.StatisticsHandler)
	}
	return router
}

// positionResponse is the API view of a ledger position.
type positionResponse struct {
	Ticker       string           `json:"ticker"`
	BuyPrice     decimal.Decimal  `json:"buy_price"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Quantity     int64            `json:"quantity"`
	Value        decimal.Decimal  `json:"value"`
	ProfitLoss   *decimal.Decimal `json:"profit_loss,omitempty"`
	Malformed    bool             `json:"malformed,omitempty"`
}

func toResponse(p ledger.Position) positionResponse {
	r := positionResponse{
		Ticker:       p.Ticker,
		BuyPrice:     p.BuyPrice,
		CurrentPrice: p.CurrentPrice,
		Quantity:     p.Quantity,
		Value:        p.Value(),
		Malformed:    p.Malformed(),
	}
	if p.ProfitLoss.Valid {
		pl := p.ProfitLoss.Decimal
		r.ProfitLoss = &pl
	}
	return r
}

// PositionsHandler returns every position in insertion order.
func (h *APIHandler) PositionsHandler(c *gin.Context) {
	h.mu.Lock()
	positions := h.svc.Ledger().Positions()
	h.mu.Unlock()

	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, toResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

// fieldText accepts a JSON string or number and keeps its text, so the
// ledger does the parsing exactly as it does for typed input.
type fieldText string

func (f *fieldText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = fieldText(s)
		return nil
	}
	*f = fieldText(strings.TrimSpace(string(b)))
	return nil
}

// AddPositionRequest is the body of POST /api/positions.
type AddPositionRequest struct {
	Ticker       string    `json:"ticker"`
	BuyPrice     fieldText `json:"buy_price"`
	CurrentPrice fieldText `json:"current_price"`
	Quantity     fieldText `json:"quantity"`
}

// AddPositionHandler appends a position.
func (h *APIHandler) AddPositionHandler(c *gin.Context) {
	var req AddPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	p, err := h.svc.AddPosition(req.Ticker, string(req.BuyPrice), string(req.CurrentPrice), string(req.Quantity))
	h.mu.Unlock()

	if errors.Is(err, ledger.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Error("Failed to add position", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save portfolio"})
		return
	}
	c.JSON(http.StatusCreated, toResponse(p))
}

// SummaryHandler recomputes profit/loss and returns the full report.
func (h *APIHandler) SummaryHandler(c *gin.Context) {
	h.mu.Lock()
	rep, n, err := h.svc.Overview()
	h.mu.Unlock()

	if errors.Is(err, tracker.ErrEmptyPortfolio) {
		c.JSON(http.StatusOK, gin.H{"message": "Add stocks first and retry", "rows": []report.Row{}})
		return
	}
	if err != nil {
		h.log.Error("Failed to build summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build summary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report":       rep,
		"tone":         rep.Tone(),
		"text":         report.Overview(rep),
		"notification": n,
	})
}

// NotificationsHandler checks the threshold given as ?threshold= or the configured one.
func (h *APIHandler) NotificationsHandler(c *gin.Context) {
	threshold := h.svc.DefaultThreshold()
	if q := c.Query("threshold"); q != "" {
		t, err := decimal.NewFromString(strings.TrimSpace(q))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Enter a number you want to set as your threshold number"})
			return
		}
		threshold = t
	}

	h.mu.Lock()
	n, err := h.svc.CheckNotifications(threshold)
	h.mu.Unlock()

	if errors.Is(err, tracker.ErrEmptyPortfolio) {
		c.JSON(http.StatusOK, gin.H{"message": "Add stocks first", "exceeded": false})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, n)
}

// QuoteHandler fetches the latest price of a ticker.
func (h *APIHandler) QuoteHandler(c *gin.Context) {
	ticker := strings.ToUpper(strings.TrimSpace(c.Param("ticker")))

	// No lock: FetchPrice does not touch the ledger.
	price, err := h.svc.FetchPrice(c.Request.Context(), ticker)

	switch {
	case errors.Is(err, quote.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing API key or ticker"})
	case errors.Is(err, quote.ErrInvalidResponse):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Invalid API response"})
	case err != nil:
		h.log.Warn("Quote fetch failed", zap.String("ticker", ticker), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "API Error"})
	default:
		c.JSON(http.StatusOK, gin.H{"ticker": ticker, "price": price})
	}
}

// RefreshHandler updates every position's current price from the quote API.
func (h *APIHandler) RefreshHandler(c *gin.Context) {
	h.mu.Lock()
	result, err := h.svc.RefreshPrices(c.Request.Context())
	h.mu.Unlock()

	if err != nil {
		h.log.Error("Price refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	failed := make(map[string]string, len(result.Failed))
	for ticker, ferr := range result.Failed {
		failed[ticker] = ferr.Error()
	}
	updated := result.Updated
	if updated == nil {
		updated = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated, "failed": failed})
}

// ReportHandler renders the export report inline; ?format= picks text, markdown or html.
func (h *APIHandler) ReportHandler(c *gin.Context) {
	format, err := report.ParseFormat(c.DefaultQuery("format", "text"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	empty := h.svc.Ledger().Len() == 0
	var rep report.Report
	if !empty {
		rep = report.Build(h.svc.Ledger(), h.svc.Currency())
	}
	h.mu.Unlock()

	if empty {
		c.JSON(http.StatusOK, gin.H{"message": "Add stocks first before exporting"})
		return
	}
	data, err := report.Render(rep, format)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	contentType := map[report.Format]string{
		report.FormatText:     "text/plain; charset=utf-8",
		report.FormatMarkdown: "text/markdown; charset=utf-8",
		report.FormatHTML:     "text/html; charset=utf-8",
	}[format]
	c.Data(http.StatusOK, contentType, data)
}

// SaveHandler writes the ledger to the portfolio file.
func (h *APIHandler) SaveHandler(c *gin.Context) {
	h.mu.Lock()
	err := h.svc.Save()
	h.mu.Unlock()

	if err != nil {
		h.log.Error("Failed to save portfolio", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save portfolio"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Portfolio saved successfully!"})
}

// LoadHandler replaces the ledger with the portfolio file.
func (h *APIHandler) LoadHandler(c *gin.Context) {
	h.mu.Lock()
	found, err := h.svc.Open()
	h.mu.Unlock()

	if err != nil {
		h.log.Error("Failed to load portfolio", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load portfolio"})
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"message": "No saved portfolio found.", "found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Portfolio loaded successfully!", "found": true})
}

// SnapshotsHandler returns recorded valuations, most recent first.
func (h *APIHandler) SnapshotsHandler(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "History is disabled"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
		return
	}
	snaps, err := h.store.ListSnapshots(limit)
	if err != nil {
		h.log.Error("Failed to get snapshots from database", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get snapshots"})
		return
	}
	c.JSON(http.StatusOK, snaps)
}

// StatisticsResponse is the structure for the /api/statistics endpoint.
type StatisticsResponse struct {
	Since24h database.StatsDetail `json:"since_24h"`
	AllTime  database.StatsDetail `json:"all_time"`
}

// StatisticsHandler summarises the recorded valuations.
func (h *APIHandler) StatisticsHandler(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "History is disabled"})
		return
	}
	since24h, err := h.store.SnapshotStats(time.Now().Add(-24 * time.Hour))
	if err != nil {
		h.log.Error("Failed to calculate statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to calculate statistics"})
		return
	}
	allTime, err := h.store.SnapshotStats(time.Time{})
	if err != nil {
		h.log.Error("Failed to calculate statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to calculate statistics"})
		return
	}
	c.JSON(http.StatusOK, StatisticsResponse{Since24h: since24h, AllTime: allTime})
}
