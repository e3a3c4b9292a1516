package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Click клик по объявлению; заблокированные клики тоже сохраняются для аудита
type Click struct {
	ID           string          `json:"id"`
	ImpressionID *string         `json:"impression_id,omitempty"` // nil = клик без привязанного показа
	AdID         int64           `json:"ad_id"`
	SlotID       int64           `json:"slot_id"`
	SiteID       int64           `json:"site_id"`
	ClickX       int             `json:"click_x"`
	ClickY       int             `json:"click_y"`
	TimeOnPageMs int             `json:"time_on_page_ms"`
	FraudScore   float64         `json:"fraud_score"`
	Blocked      bool            `json:"blocked"`
	Revenue      decimal.Decimal `json:"revenue"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TrackClickInput входные данные эндпоинта /track-click
type TrackClickInput struct {
	AdID         int64        `json:"ad_id" binding:"required"`
	SlotID       int64        `json:"slot_id" binding:"required"`
	SiteID       int64        `json:"site_id" binding:"required"`
	ImpressionID string       `json:"impression_id,omitempty"`
	Context      EventContext `json:"context"`
}

// ClickDecision результат обработки клика: вердикт и редирект
type ClickDecision struct {
	ClickID     string  `json:"click_id"`
	Blocked     bool    `json:"blocked"`
	FraudScore  float64 `json:"fraud_score"`
	RedirectURL string  `json:"redirect_url,omitempty"` // Только для незаблокированных кликов
}
