package models

import (
	"time"
)

// EventContext контекст доставки, собираемый трекером на стороне клиента
type EventContext struct {
	DeviceClass   string `json:"device_class,omitempty"`
	ViewportW     int    `json:"viewport_w,omitempty"`
	ViewportH     int    `json:"viewport_h,omitempty"`
	Referrer      string `json:"referrer,omitempty"`
	PageURL       string `json:"page_url,omitempty"`
	IsViewable    bool   `json:"is_viewable,omitempty"`
	TimeVisibleMs int    `json:"time_visible_ms,omitempty"`
	// Поля только для кликов
	ClickX       int    `json:"click_x,omitempty"`
	ClickY       int    `json:"click_y,omitempty"`
	TimeOnPageMs int    `json:"time_on_page_ms,omitempty"`
	Fingerprint  string `json:"fingerprint,omitempty"`
}

// Impression показ объявления; запись неизменяема после вставки
type Impression struct {
	ID            string    `json:"id"`
	AdID          int64     `json:"ad_id"`
	SlotID        int64     `json:"slot_id"`
	SiteID        int64     `json:"site_id"`
	DeviceClass   string    `json:"device_class"`
	ViewportW     int       `json:"viewport_w"`
	ViewportH     int       `json:"viewport_h"`
	Referrer      string    `json:"referrer"`
	PageURL       string    `json:"page_url"`
	IsViewable    bool      `json:"is_viewable"`
	TimeVisibleMs int       `json:"time_visible_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// TrackImpressionInput входные данные эндпоинта /track-impression
type TrackImpressionInput struct {
	AdID    int64        `json:"ad_id" binding:"required"`
	SlotID  int64        `json:"slot_id" binding:"required"`
	SiteID  int64        `json:"site_id" binding:"required"`
	Context EventContext `json:"context"`
}
