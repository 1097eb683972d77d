package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"portfolio-tracker/internal/config"
	"portfolio-tracker/internal/database"
	"portfolio-tracker/internal/ledger"
	"portfolio-tracker/internal/quote"
	"portfolio-tracker/internal/tracker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRouter(t *testing.T) (*gin.Engine, *config.Config) {
	h, cfg := setupHandler(t)
	return newRouter(h), cfg
}

// setupHandler builds the API over a temp portfolio file, a temp history
// database and a fake quote API that knows only AAPL.
func setupHandler(t *testing.T) (*APIHandler, *config.Config) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	quoteAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "AAPL" {
			_, _ = w.Write([]byte(`{"Global Quote": {}}`))
			return
		}
		_, _ = w.Write([]byte(`{"Global Quote": {"05. price": "12.50"}}`))
	}))
	t.Cleanup(quoteAPI.Close)

	cfg := &config.Config{
		Portfolio: config.Portfolio{
			File:      filepath.Join(dir, "portfolio.json"),
			Currency:  "GBP",
			Threshold: 100,
			AutoSave:  true,
		},
		Quote:    config.Quote{BaseURL: quoteAPI.URL, ApiKey: "test_api_key", MaxAttempts: 1},
		Database: config.Database{DSN: filepath.Join(dir, "history.db")},
	}

	db, err := database.NewDatabase(&cfg.Database)
	require.NoError(t, err)
	store := database.NewStore(db)

	log := zap.NewNop()
	svc := tracker.NewService(log, cfg, ledger.New(log), quote.NewClient(&cfg.Quote, log), store)
	return NewAPIHandler(log, svc, store), cfg
}

func doJSON(t *testing.T, router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestAddAndListPositions(t *testing.T) {
	// Arrange
	router, cfg := setupRouter(t)

	// Act
	w := doJSON(t, router, http.MethodPost, "/api/positions",
		`{"ticker":"AAA","buy_price":10,"current_price":"15","quantity":2}`)

	// Assert
	require.Equal(t, http.StatusCreated, w.Code)
	var added positionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	assert.Equal(t, "AAA", added.Ticker)
	assert.True(t, added.Value.Equal(decimal.NewFromInt(30)))
	assert.FileExists(t, cfg.Portfolio.File)

	w = doJSON(t, router, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []positionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, int64(2), listed[0].Quantity)
}

func TestAddPosition_Invalid(t *testing.T) {
	router, cfg := setupRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"NotJSON", `ticker=AAA`},
		{"EmptyTicker", `{"ticker":" ","buy_price":10,"current_price":15,"quantity":2}`},
		{"TextPrice", `{"ticker":"AAA","buy_price":"ten","current_price":15,"quantity":2}`},
		{"FractionalQuantity", `{"ticker":"AAA","buy_price":10,"current_price":15,"quantity":1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/positions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.NoFileExists(t, cfg.Portfolio.File)
}

func TestSummaryAndNotifications(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Add stocks first and retry")

	doJSON(t, router, http.MethodPost, "/api/positions", `{"ticker":"AAA","buy_price":10,"current_price":15,"quantity":2}`)
	doJSON(t, router, http.MethodPost, "/api/positions", `{"ticker":"BBB","buy_price":20,"current_price":18,"quantity":1}`)

	t.Run("Summary", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/summary", "")
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Report struct {
				TotalValue      decimal.Decimal `json:"total_value"`
				TotalProfitLoss decimal.Decimal `json:"total_profit_loss"`
			} `json:"report"`
			Tone         string               `json:"tone"`
			Text         string               `json:"text"`
			Notification tracker.Notification `json:"notification"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Report.TotalValue.Equal(decimal.NewFromInt(48)))
		assert.True(t, body.Report.TotalProfitLoss.Equal(decimal.NewFromInt(8)))
		assert.Equal(t, "gain", body.Tone)
		assert.Contains(t, body.Text, "Total Portfolio Value: £48.00")
		assert.Equal(t, "No notifications yet", body.Notification.Message)
	})

	t.Run("WithinDefaultThreshold", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/notifications", "")
		require.Equal(t, http.StatusOK, w.Code)
		var n tracker.Notification
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &n))
		assert.False(t, n.Exceeded)
		assert.Equal(t, "No notifications yet", n.Message)
	})

	t.Run("Exceeded", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/notifications?threshold=7.99", "")
		require.Equal(t, http.StatusOK, w.Code)
		var n tracker.Notification
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &n))
		assert.True(t, n.Exceeded)
		assert.Equal(t, "P/L £8.00 exceeds your set threshold, act quickly!", n.Message)
	})

	t.Run("BadThreshold", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/notifications?threshold=lots", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("History", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/snapshots?limit=10", "")
		require.Equal(t, http.StatusOK, w.Code)
		var snaps []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snaps))
		assert.Len(t, snaps, 3)

		w = doJSON(t, router, http.MethodGet, "/api/statistics", "")
		require.Equal(t, http.StatusOK, w.Code)
		var stats StatisticsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, int64(3), stats.AllTime.Snapshots)
		assert.Equal(t, int64(1), stats.Since24h.Exceeded)
	})
}

func TestQuoteAndRefresh(t *testing.T) {
	router, cfg := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/quote/aapl", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ticker":"AAPL"`)

	w = doJSON(t, router, http.MethodGet, "/api/quote/NOPE", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API response")

	doJSON(t, router, http.MethodPost, "/api/positions", `{"ticker":"aapl","buy_price":10,"current_price":10,"quantity":4}`)
	doJSON(t, router, http.MethodPost, "/api/positions", `{"ticker":"NOPE","buy_price":1,"current_price":1,"quantity":1}`)

	w = doJSON(t, router, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		Updated []string          `json:"updated"`
		Failed  map[string]string `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, []string{"AAPL"}, result.Updated)
	assert.Contains(t, result.Failed, "NOPE")

	raw, err := os.ReadFile(cfg.Portfolio.File)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"current_price": 12.5`)
}

func TestQuote_DoesNotWaitForLedger(t *testing.T) {
	h, _ := setupHandler(t)
	router := newRouter(h)

	h.mu.Lock()
	defer h.mu.Unlock()

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- doJSON(t, router, http.MethodGet, "/api/quote/AAPL", "")
	}()

	select {
	case w := <-done:
		assert.Equal(t, http.StatusOK, w.Code)
	case <-time.After(5 * time.Second):
		t.Fatal("quote request blocked on the ledger lock")
	}
}

func TestReport(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Add stocks first before exporting")

	doJSON(t, router, http.MethodPost, "/api/positions", `{"ticker":"AAA","buy_price":10,"current_price":15,"quantity":2}`)

	w = doJSON(t, router, http.MethodGet, "/api/report?format=html", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<table>")

	w = doJSON(t, router, http.MethodGet, "/api/report?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaveAndLoad(t *testing.T) {
	router, cfg := setupRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/load", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"found":false`)

	require.NoError(t, os.WriteFile(cfg.Portfolio.File,
		[]byte(`[{"ticker":"ZZZ","buy_price":1,"current_price":3,"quantity":5}]`), 0o644))

	w = doJSON(t, router, http.MethodPost, "/api/load", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"found":true`)

	w = doJSON(t, router, http.MethodGet, "/api/positions", "")
	assert.Contains(t, w.Body.String(), `"ticker":"ZZZ"`)

	w = doJSON(t, router, http.MethodPost, "/api/save", "")
	require.Equal(t, http.StatusOK, w.Code)
	raw, err := os.ReadFile(cfg.Portfolio.File)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ticker": "ZZZ"`)
}
