package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quote is a price fetched from the quote API.
type Quote struct {
	gorm.Model
	Ticker    string          `json:"ticker" gorm:"index;not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:text;not null"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at" gorm:"index;not null"`
}
