package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Snapshot records one valuation of the portfolio.
type Snapshot struct {
	gorm.Model
	TakenAt         time.Time       `json:"taken_at" gorm:"index;not null"`
	Positions       int             `json:"positions"`
	TotalValue      decimal.Decimal `json:"total_value" gorm:"type:text;not null"`
	TotalProfitLoss decimal.Decimal `json:"total_profit_loss" gorm:"type:text;not null"`
	Threshold       decimal.Decimal `json:"threshold" gorm:"type:text"`
	Exceeded        bool            `json:"exceeded"`
	Source          string          `json:"source"` // "overview", "check" or "watch"
}
