package main

import (
	"errors"
	"fmt"

	"portfolio-tracker/internal/config"
	"portfolio-tracker/internal/database"
	"portfolio-tracker/internal/ledger"
	"portfolio-tracker/internal/logger"
	"portfolio-tracker/internal/quote"
	"portfolio-tracker/internal/tracker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand needs once the root command has
// loaded configuration.
type app struct {
	configDir string
	portfolio string
	logLevel  string

	cfg   config.Config
	log   *zap.Logger
	store *database.Store
	svc   *tracker.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tracker",
		Short: "Track a personal stock portfolio and its profit/loss",
		Long: `Tracker keeps a list of stock positions in a JSON file, computes their
profit/loss, refreshes prices from a quote API and exports reports.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config", "./configs", "directory holding config.yml")
	root.PersistentFlags().StringVar(&a.portfolio, "portfolio", "", "portfolio file (overrides portfolio.file)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides logger.level)")

	root.AddCommand(
		newAddCmd(a),
		newListCmd(a),
		newOverviewCmd(a),
		newCheckCmd(a),
		newQuoteCmd(a),
		newRefreshCmd(a),
		newExportCmd(a),
		newHistoryCmd(a),
		newCompoundCmd(a),
		newWatchCmd(a),
	)
	return root
}

// setup loads configuration, builds the logger and the service, and loads
// the saved portfolio.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(a.configDir)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if a.portfolio != "" {
		cfg.Portfolio.File = a.portfolio
	}
	if a.logLevel != "" {
		cfg.Logger.Level = a.logLevel
	}
	// Each invocation is its own session, so changes must reach the file.
	cfg.Portfolio.AutoSave = true
	a.cfg = cfg

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.log = log

	var history tracker.HistoryStore
	db, err := database.NewDatabase(&cfg.Database)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Debug("History database disabled")
	case err != nil:
		log.Warn("History database unavailable, continuing without it", zap.Error(err))
	default:
		a.store = database.NewStore(db)
		history = a.store
	}

	quotes := quote.NewClient(&cfg.Quote, log)
	a.svc = tracker.NewService(log, &a.cfg, ledger.New(log), quotes, history)

	if _, err := a.svc.Open(); err != nil {
		return err
	}
	return nil
}
