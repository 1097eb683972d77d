package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Arrange: a directory with no config.yml in it
	dir := t.TempDir()

	// Act
	cfg, err := LoadConfig(dir)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "portfolio.json", cfg.Portfolio.File)
	assert.Equal(t, "GBP", cfg.Portfolio.Currency)
	assert.Equal(t, 100.0, cfg.Portfolio.Threshold)
	assert.True(t, cfg.Portfolio.AutoSave)
	assert.Equal(t, `$["Global Quote"]["05. price"]`, cfg.Quote.PricePath)
	assert.Equal(t, 1, cfg.Quote.MaxAttempts)
	assert.Equal(t, "text", cfg.Report.Format)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	content := `
portfolio:
  file: holdings.json
  currency: USD
  threshold: 250
quote:
  apiKey: from-file
logger:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644))
	t.Setenv("QUOTE_APIKEY", "from-env")

	// Act
	cfg, err := LoadConfig(dir)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "holdings.json", cfg.Portfolio.File)
	assert.Equal(t, "USD", cfg.Portfolio.Currency)
	assert.Equal(t, 250.0, cfg.Portfolio.Threshold)
	assert.Equal(t, "from-env", cfg.Quote.ApiKey, "environment must override the file")
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	// Unset keys keep their defaults
	assert.Equal(t, "https://www.alphavantage.co/query", cfg.Quote.BaseURL)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("portfolio: [unclosed"), 0o644))

	_, err := LoadConfig(dir)

	assert.Error(t, err)
}
