package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrInvalidWindow = errors.New("невалидное окно пересчёта")

// RollupReport итог одного прогона пересчёта
type RollupReport struct {
	RowsScanned    int `json:"rows_scanned"`
	BucketsWritten int `json:"buckets_written"`
	Skipped        int `json:"skipped"` // Сырые строки с исчезнувшей площадкой/объявлением
}

// RollupService пересчёт часовых и суточных агрегатов из сырых событий.
// Пересчёт идемпотентен: повторный прогон по тем же строкам даёт тот же результат
type RollupService interface {
	Recompute(ctx context.Context, from, to time.Time, filter repository.EventFilter) (*RollupReport, error)
}

type rollupService struct {
	eventRepo  repository.EventRepository
	metricRepo repository.MetricRepository
	siteRepo   repository.SiteRepository
	adRepo     repository.AdRepository
	logger     *zap.Logger
}

// NewRollupService создаёт новый экземпляр сервиса пересчёта
func NewRollupService(
	eventRepo repository.EventRepository,
	metricRepo repository.MetricRepository,
	siteRepo repository.SiteRepository,
	adRepo repository.AdRepository,
	logger *zap.Logger,
) RollupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rollupService{
		eventRepo:  eventRepo,
		metricRepo: metricRepo,
		siteRepo:   siteRepo,
		adRepo:     adRepo,
		logger:     logger,
	}
}

// Recompute пересчитывает агрегаты за окно. Окно расширяется до границ
// суток: корзина всегда пересчитывается из всех своих сырых строк, поэтому
// upsert заменяет значения, а не доливает их
func (s *rollupService) Recompute(ctx context.Context, from, to time.Time, filter repository.EventFilter) (*RollupReport, error) {
	if !from.Before(to) {
		return nil, ErrInvalidWindow
	}

	scanFrom := DayBucket(from.UTC())
	scanTo := DayBucket(to.UTC())
	if scanTo.Before(to.UTC()) {
		scanTo = scanTo.Add(24 * time.Hour)
	}

	impressions, err := s.eventRepo.ListImpressions(ctx, scanFrom, scanTo, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to scan impressions: %w", err)
	}
	clicks, err := s.eventRepo.ListClicks(ctx, scanFrom, scanTo, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to scan clicks: %w", err)
	}

	report := &RollupReport{RowsScanned: len(impressions) + len(clicks)}

	impressions, clicks, skipped := s.dropVanishedRefs(ctx, impressions, clicks)
	report.Skipped = skipped

	hourly := AggregateBuckets(impressions, clicks, HourBucket)
	daily := AggregateBuckets(impressions, clicks, DayBucket)

	if err := s.metricRepo.UpsertHourly(ctx, hourly); err != nil {
		return nil, fmt.Errorf("failed to upsert hourly metrics: %w", err)
	}
	if err := s.metricRepo.UpsertDaily(ctx, daily); err != nil {
		return nil, fmt.Errorf("failed to upsert daily metrics: %w", err)
	}

	report.BucketsWritten = len(hourly) + len(daily)

	s.logger.Info("Пересчёт агрегатов завершён",
		zap.Time("from", scanFrom),
		zap.Time("to", scanTo),
		zap.Int("rows_scanned", report.RowsScanned),
		zap.Int("buckets_written", report.BucketsWritten),
		zap.Int("skipped", report.Skipped),
	)

	return report, nil
}

// dropVanishedRefs отбрасывает строки, ссылающиеся на исчезнувшие
// площадки/объявления: логируем и пропускаем, прогон не падает
func (s *rollupService) dropVanishedRefs(ctx context.Context, impressions []models.Impression, clicks []models.Click) ([]models.Impression, []models.Click, int) {
	siteSeen := make(map[int64]bool)
	adSeen := make(map[int64]bool)
	skipped := 0

	siteExists := func(id int64) bool {
		if ok, seen := memoLookup(siteSeen, id); seen {
			return ok
		}
		_, err := s.siteRepo.GetByID(ctx, id)
		exists := err == nil
		if err != nil && !errors.Is(err, repository.ErrSiteNotFound) {
			// Временная ошибка БД - строку оставляем, чтобы не потерять данные
			exists = true
		}
		siteSeen[id] = exists
		return exists
	}
	adExists := func(id int64) bool {
		if ok, seen := memoLookup(adSeen, id); seen {
			return ok
		}
		_, err := s.adRepo.GetByID(ctx, id)
		exists := err == nil
		if err != nil && !errors.Is(err, repository.ErrAdNotFound) {
			exists = true
		}
		adSeen[id] = exists
		return exists
	}

	keptImps := impressions[:0]
	for _, imp := range impressions {
		if !siteExists(imp.SiteID) || !adExists(imp.AdID) {
			skipped++
			s.logger.Warn("Показ ссылается на исчезнувшую сущность",
				zap.String("impression_id", imp.ID),
				zap.Int64("site_id", imp.SiteID),
				zap.Int64("ad_id", imp.AdID),
			)
			continue
		}
		keptImps = append(keptImps, imp)
	}

	keptClicks := clicks[:0]
	for _, click := range clicks {
		if !siteExists(click.SiteID) || !adExists(click.AdID) {
			skipped++
			s.logger.Warn("Клик ссылается на исчезнувшую сущность",
				zap.String("click_id", click.ID),
				zap.Int64("site_id", click.SiteID),
				zap.Int64("ad_id", click.AdID),
			)
			continue
		}
		keptClicks = append(keptClicks, click)
	}

	return keptImps, keptClicks, skipped
}

func memoLookup(memo map[int64]bool, id int64) (bool, bool) {
	v, seen := memo[id]
	return v, seen
}

// HourBucket обрезает время до начала часа (UTC)
func HourBucket(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// DayBucket обрезает время до начала суток (UTC)
func DayBucket(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// AggregateBuckets чистая функция: группирует сырые события по
// (площадка, объявление, корзина) и выводит CTR из суммарных значений
func AggregateBuckets(impressions []models.Impression, clicks []models.Click, bucket func(time.Time) time.Time) []models.MetricRow {
	accum := make(map[models.MetricKey]*models.MetricRow)

	get := func(siteID, adID int64, at time.Time) *models.MetricRow {
		key := models.MetricKey{SiteID: siteID, AdID: adID, Bucket: bucket(at)}
		row, ok := accum[key]
		if !ok {
			row = &models.MetricRow{MetricKey: key, Revenue: decimal.Zero}
			accum[key] = row
		}
		return row
	}

	for _, imp := range impressions {
		row := get(imp.SiteID, imp.AdID, imp.CreatedAt)
		row.Impressions++
	}
	for _, click := range clicks {
		row := get(click.SiteID, click.AdID, click.CreatedAt)
		row.Clicks++
		row.Revenue = row.Revenue.Add(click.Revenue)
	}

	return finalizeRows(accum)
}

// MergeBuckets суммирует два набора частичных агрегатов по ключу.
// CTR никогда не суммируется - только пересчитывается из итоговых сумм
func MergeBuckets(a, b []models.MetricRow) []models.MetricRow {
	accum := make(map[models.MetricKey]*models.MetricRow)

	add := func(rows []models.MetricRow) {
		for _, row := range rows {
			existing, ok := accum[row.MetricKey]
			if !ok {
				copied := row
				accum[row.MetricKey] = &copied
				continue
			}
			existing.Impressions += row.Impressions
			existing.Clicks += row.Clicks
			existing.Revenue = existing.Revenue.Add(row.Revenue)
		}
	}
	add(a)
	add(b)

	return finalizeRows(accum)
}

// finalizeRows выводит CTR и возвращает строки в детерминированном порядке
func finalizeRows(accum map[models.MetricKey]*models.MetricRow) []models.MetricRow {
	rows := make([]models.MetricRow, 0, len(accum))
	for _, row := range accum {
		if row.Impressions > 0 {
			row.CTR = float64(row.Clicks) / float64(row.Impressions) * 100
		} else {
			row.CTR = 0
		}
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Bucket.Equal(rows[j].Bucket) {
			return rows[i].Bucket.Before(rows[j].Bucket)
		}
		if rows[i].SiteID != rows[j].SiteID {
			return rows[i].SiteID < rows[j].SiteID
		}
		return rows[i].AdID < rows[j].AdID
	})

	return rows
}
