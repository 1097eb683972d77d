package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-tracker/internal/config"
	"portfolio-tracker/internal/database"
	"portfolio-tracker/internal/ledger"
	"portfolio-tracker/internal/logger"
	"portfolio-tracker/internal/quote"
	"portfolio-tracker/internal/tracker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "./configs", "directory holding config.yml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to the history database
	var store *database.Store
	var history tracker.HistoryStore
	db, err := database.NewDatabase(&cfg.Database)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Info("History database disabled")
	case err != nil:
		log.Fatal("Failed to connect to database", zap.Error(err))
	default:
		store = database.NewStore(db)
		history = store
	}

	quotes := quote.NewClient(&cfg.Quote, log)
	svc := tracker.NewService(log, &cfg, ledger.New(log), quotes, history)
	found, err := svc.Open()
	if err != nil {
		log.Fatal("Failed to load portfolio", zap.String("file", cfg.Portfolio.File), zap.Error(err))
	}
	log.Info("Portfolio ready", zap.Bool("loaded", found), zap.Int("positions", svc.Ledger().Len()))

	server := NewAPIServer(cfg.Server.Port, NewAPIHandler(log, svc, store), log)
	server.Start()

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	if cfg.Portfolio.AutoSave {
		if err := svc.Save(); err != nil {
			log.Error("Failed to save portfolio", zap.Error(err))
		}
	}
	log.Info("Web server has been shut down.")
}
