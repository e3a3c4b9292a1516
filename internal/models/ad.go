package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Жизненный цикл объявления: draft -> active -> paused/ended
const (
	AdStatusDraft  = "draft"
	AdStatusActive = "active"
	AdStatusPaused = "paused"
	AdStatusEnded  = "ended"
)

// Ad рекламное объявление; ставки и бюджет в валютных единицах
type Ad struct {
	ID             int64           `json:"id"`
	Channel        string          `json:"channel"`
	Objective      string          `json:"objective"`
	Budget         decimal.Decimal `json:"budget"`
	CPMBid         decimal.Decimal `json:"cpm_bid"` // Цена за тысячу показов
	CPCBid         decimal.Decimal `json:"cpc_bid"` // Цена за клик
	DestinationURL string          `json:"destination_url"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}
