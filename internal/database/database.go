package database

import (
	"errors"
	"fmt"
	"time"

	"portfolio-tracker/internal/config"
	"portfolio-tracker/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrDisabled is returned by NewDatabase when no DSN is configured.
var ErrDisabled = errors.New("history database disabled")

// NewDatabase opens the history database and migrates its schema.
// Existing rows are kept across restarts.
func NewDatabase(cfg *config.Database) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, ErrDisabled
	}
	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the history tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Snapshot{}, &models.Quote{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Store reads and writes portfolio history.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// RecordSnapshot inserts a valuation snapshot.
func (s *Store) RecordSnapshot(snap *models.Snapshot) error {
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now()
	}
	if err := s.db.Create(snap).Error; err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the most recent snapshots first. A limit of zero or
// less returns all of them.
func (s *Store) ListSnapshots(limit int) ([]models.Snapshot, error) {
	var snaps []models.Snapshot
	q := s.db.Order("taken_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snaps, nil
}

// RecordQuote inserts a fetched price.
func (s *Store) RecordQuote(q *models.Quote) error {
	if q.FetchedAt.IsZero() {
		q.FetchedAt = time.Now()
	}
	if err := s.db.Create(q).Error; err != nil {
		return fmt.Errorf("failed to record quote for %s: %w", q.Ticker, err)
	}
	return nil
}

// LatestQuote returns the most recent price fetched for ticker, or
// gorm.ErrRecordNotFound.
func (s *Store) LatestQuote(ticker string) (*models.Quote, error) {
	var q models.Quote
	err := s.db.Where("ticker = ?", ticker).Order("fetched_at desc").Order("id desc").First(&q).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get latest quote for %s: %w", ticker, err)
	}
	return &q, nil
}

// StatsDetail summarises the snapshots of a period.
type StatsDetail struct {
	Snapshots       int64           `json:"snapshots"`
	Exceeded        int64           `json:"exceeded"`
	ExceededRate    float64         `json:"exceeded_rate"`
	BestProfitLoss  decimal.Decimal `json:"best_profit_loss"`
	WorstProfitLoss decimal.Decimal `json:"worst_profit_loss"`
	LastProfitLoss  decimal.Decimal `json:"last_profit_loss"`
	LastValue       decimal.Decimal `json:"last_value"`
}

// SnapshotStats aggregates all snapshots taken at or after since.
func (s *Store) SnapshotStats(since time.Time) (StatsDetail, error) {
	var snaps []models.Snapshot
	if err := s.db.Where("taken_at >= ?", since).Order("taken_at asc").Order("id asc").Find(&snaps).Error; err != nil {
		return StatsDetail{}, fmt.Errorf("failed to get snapshots for statistics: %w", err)
	}

	stats := StatsDetail{}
	for i, snap := range snaps {
		stats.Snapshots++
		if snap.Exceeded {
			stats.Exceeded++
		}
		if i == 0 || snap.TotalProfitLoss.GreaterThan(stats.BestProfitLoss) {
			stats.BestProfitLoss = snap.TotalProfitLoss
		}
		if i == 0 || snap.TotalProfitLoss.LessThan(stats.WorstProfitLoss) {
			stats.WorstProfitLoss = snap.TotalProfitLoss
		}
		stats.LastProfitLoss = snap.TotalProfitLoss
		stats.LastValue = snap.TotalValue
	}
	if stats.Snapshots > 0 {
		stats.ExceededRate = float64(stats.Exceeded) / float64(stats.Snapshots)
	}
	return stats, nil
}
