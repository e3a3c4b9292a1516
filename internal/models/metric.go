package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricKey ключ метрики: площадка, объявление, временная корзина
type MetricKey struct {
	SiteID int64     `json:"site_id"`
	AdID   int64     `json:"ad_id"`
	Bucket time.Time `json:"bucket"`
}

// MetricRow агрегат за корзину; чистая функция сырых строк, пересчитывается
// целиком и никогда не редактируется вручную
type MetricRow struct {
	MetricKey
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Revenue     decimal.Decimal `json:"revenue"`
	CTR         float64         `json:"ctr"`
}

// EntityMetrics суммарные показатели площадки или объявления
type EntityMetrics struct {
	SiteID      int64           `json:"site_id,omitempty"`
	AdID        int64           `json:"ad_id,omitempty"`
	Impressions int64           `json:"impressions"`
	Clicks      int64           `json:"clicks"`
	Revenue     decimal.Decimal `json:"revenue"`
	CTR         float64         `json:"ctr"`
}

// InventorySnapshot производный срез инвентаря площадки, перезаписывается
// целиком при каждой сверке
type InventorySnapshot struct {
	SiteID         int64           `json:"site_id"`
	TotalSlots     int             `json:"total_slots"`
	OccupiedSlots  int             `json:"occupied_slots"`
	AvailableSlots int             `json:"available_slots"`
	Revenue        decimal.Decimal `json:"revenue"`
	Impressions    int64           `json:"impressions"`
	SyncedAt       time.Time       `json:"synced_at"`
}

// DashboardOverview KPI всей платформы для дашборда
type DashboardOverview struct {
	TotalImpressions  int64           `json:"total_impressions"`
	TotalClicks       int64           `json:"total_clicks"`
	AverageCTR        float64         `json:"average_ctr"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageFraudScore float64         `json:"average_fraud_score"`
	ActiveSites       int64           `json:"active_sites"`
	ActiveAds         int64           `json:"active_ads"`
}
