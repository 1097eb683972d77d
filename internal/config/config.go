package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Portfolio Portfolio `mapstructure:"portfolio"`
	Quote     Quote     `mapstructure:"quote"`
	Report    Report    `mapstructure:"report"`
	Watch     Watch     `mapstructure:"watch"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
}

// Portfolio holds the configuration for the ledger file and notifications.
type Portfolio struct {
	File      string  `mapstructure:"file"`
	Currency  string  `mapstructure:"currency"`
	Threshold float64 `mapstructure:"threshold"`
	AutoSave  bool    `mapstructure:"autosave"`
}

// Quote holds the configuration for the quote API.
type Quote struct {
	BaseURL        string  `mapstructure:"base_url"`
	ApiKey         string  `mapstructure:"apiKey"`
	PricePath      string  `mapstructure:"price_path"`
	Timeout        int     `mapstructure:"timeout"`
	MaxAttempts    int     `mapstructure:"max_attempts"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Report holds the configuration for report export.
type Report struct {
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
}

// Watch holds the configuration for the polling loop.
type Watch struct {
	TickInterval int `mapstructure:"tick_interval"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the history database.
// An empty DSN disables history.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and the environment apply.
func LoadConfig(path string) (config Config, err error) {
	// A .env file is optional and never overrides variables already set.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("portfolio.file", "portfolio.json")
	v.SetDefault("portfolio.currency", "GBP")
	v.SetDefault("portfolio.threshold", 100)
	v.SetDefault("portfolio.autosave", true)

	v.SetDefault("quote.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("quote.apiKey", "")
	v.SetDefault("quote.price_path", `$["Global Quote"]["05. price"]`)
	v.SetDefault("quote.timeout", 10)      // seconds
	v.SetDefault("quote.max_attempts", 1)  // no retries unless asked for
	v.SetDefault("quote.rate_limit", 0.2)  // requests per second, free tier is 5/min
	v.SetDefault("quote.rate_limit_burst", 1)

	v.SetDefault("report.file", "portfolio_report.txt")
	v.SetDefault("report.format", "text")

	v.SetDefault("watch.tick_interval", 300)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.dsn", "portfolio_history.db")
}
