package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Slot рекламное место на площадке со счётчиками доставки
type Slot struct {
	ID          int64           `json:"id"`
	SiteID      int64           `json:"site_id"`
	Position    string          `json:"position"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	CurrentAdID *int64          `json:"current_ad_id,omitempty"` // nil = слот свободен
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Revenue     decimal.Decimal `json:"revenue"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SlotCounterEvent инкремент счётчиков слота, применяется асинхронно воркерами
type SlotCounterEvent struct {
	SlotID      int64
	Impressions int64
	Clicks      int64
	Revenue     decimal.Decimal
}
