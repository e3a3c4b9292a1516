package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/SergeiKhy/ad-tracker/internal/service"
	"github.com/SergeiKhy/ad-tracker/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rollupEnv struct {
	svc        service.RollupService
	eventRepo  *mocks.MockEventRepository
	metricRepo *mocks.MockMetricRepository
	siteRepo   *mocks.MockSiteRepository
	adRepo     *mocks.MockAdRepository
}

func setupRollup(t *testing.T) *rollupEnv {
	t.Helper()

	eventRepo := mocks.NewMockEventRepository()
	metricRepo := mocks.NewMockMetricRepository()
	siteRepo := mocks.NewMockSiteRepository()
	adRepo := mocks.NewMockAdRepository()

	siteRepo.Add(&models.Site{ID: 1, Domain: "news.example.com", Status: models.SiteStatusActive})
	adRepo.Add(&models.Ad{ID: 5, Status: models.AdStatusActive})

	logger, _ := zap.NewDevelopment()
	return &rollupEnv{
		svc:        service.NewRollupService(eventRepo, metricRepo, siteRepo, adRepo, logger),
		eventRepo:  eventRepo,
		metricRepo: metricRepo,
		siteRepo:   siteRepo,
		adRepo:     adRepo,
	}
}

func (e *rollupEnv) seedImpression(t *testing.T, id string, siteID, adID int64, at time.Time) {
	t.Helper()
	require.NoError(t, e.eventRepo.InsertImpression(context.Background(), &models.Impression{
		ID: id, SiteID: siteID, AdID: adID, SlotID: 10, CreatedAt: at,
	}))
}

func (e *rollupEnv) seedClick(t *testing.T, id string, siteID, adID int64, at time.Time, revenue string) {
	t.Helper()
	require.NoError(t, e.eventRepo.InsertClick(context.Background(), &models.Click{
		ID: id, SiteID: siteID, AdID: adID, SlotID: 10,
		Revenue: decimal.RequireFromString(revenue), CreatedAt: at,
	}))
}

// TestRollupService_Recompute проверяет пересчёт часовых и суточных корзин
func TestRollupService_Recompute(t *testing.T) {
	env := setupRollup(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	env.seedImpression(t, "imp-1", 1, 5, base.Add(5*time.Minute))
	env.seedImpression(t, "imp-2", 1, 5, base.Add(20*time.Minute))
	env.seedImpression(t, "imp-3", 1, 5, base.Add(70*time.Minute)) // следующий час
	env.seedClick(t, "click-1", 1, 5, base.Add(6*time.Minute), "0.40")

	report, err := env.svc.Recompute(ctx, base, base.Add(2*time.Hour), repository.EventFilter{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.RowsScanned)
	assert.Equal(t, 0, report.Skipped)

	hourly := env.metricRepo.HourlyRows()
	require.Len(t, hourly, 2)
	assert.Equal(t, base, hourly[0].Bucket)
	assert.Equal(t, int64(2), hourly[0].Impressions)
	assert.Equal(t, int64(1), hourly[0].Clicks)
	assert.Equal(t, float64(50), hourly[0].CTR)
	assert.True(t, hourly[0].Revenue.Equal(decimal.RequireFromString("0.40")))
	assert.Equal(t, int64(1), hourly[1].Impressions)

	// Суточная корзина собирает оба часа
	daily := env.metricRepo.DailyRows()
	require.Len(t, daily, 1)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), daily[0].Bucket)
	assert.Equal(t, int64(3), daily[0].Impressions)
	assert.Equal(t, int64(1), daily[0].Clicks)
}

// TestRollupService_Idempotent проверяет, что повторный прогон по тем же
// строкам не меняет агрегаты
func TestRollupService_Idempotent(t *testing.T) {
	env := setupRollup(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	env.seedImpression(t, "imp-1", 1, 5, base.Add(time.Minute))
	env.seedClick(t, "click-1", 1, 5, base.Add(2*time.Minute), "0.40")

	_, err := env.svc.Recompute(ctx, base, base.Add(time.Hour), repository.EventFilter{})
	require.NoError(t, err)
	first := env.metricRepo.HourlyRows()

	// Узкое окно внутри тех же суток: корзины пересчитываются целиком
	_, err = env.svc.Recompute(ctx, base.Add(10*time.Minute), base.Add(30*time.Minute), repository.EventFilter{})
	require.NoError(t, err)
	second := env.metricRepo.HourlyRows()

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Impressions, second[i].Impressions)
		assert.Equal(t, first[i].Clicks, second[i].Clicks)
		assert.True(t, first[i].Revenue.Equal(second[i].Revenue))
		assert.Equal(t, first[i].CTR, second[i].CTR)
	}
}

// TestRollupService_SkipsVanishedRefs проверяет, что строки с исчезнувшей
// площадкой или объявлением пропускаются, а прогон не падает
func TestRollupService_SkipsVanishedRefs(t *testing.T) {
	env := setupRollup(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	env.seedImpression(t, "imp-ok", 1, 5, base.Add(time.Minute))
	env.seedImpression(t, "imp-gone-site", 777, 5, base.Add(time.Minute))
	env.seedClick(t, "click-gone-ad", 1, 888, base.Add(2*time.Minute), "0")

	report, err := env.svc.Recompute(ctx, base, base.Add(time.Hour), repository.EventFilter{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.RowsScanned)
	assert.Equal(t, 2, report.Skipped)

	hourly := env.metricRepo.HourlyRows()
	require.Len(t, hourly, 1)
	assert.Equal(t, int64(1), hourly[0].SiteID)
	assert.Equal(t, int64(5), hourly[0].AdID)
}

// TestRollupService_InvalidWindow проверяет отказ по вырожденному окну
func TestRollupService_InvalidWindow(t *testing.T) {
	env := setupRollup(t)

	now := time.Now().UTC()
	_, err := env.svc.Recompute(context.Background(), now, now, repository.EventFilter{})

	assert.ErrorIs(t, err, service.ErrInvalidWindow)
}

// TestAggregateBuckets_CTRDerived проверяет, что CTR выводится из сумм,
// а не хранится
func TestAggregateBuckets_CTRDerived(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	impressions := []models.Impression{
		{ID: "a", SiteID: 1, AdID: 5, CreatedAt: base},
		{ID: "b", SiteID: 1, AdID: 5, CreatedAt: base.Add(time.Minute)},
		{ID: "c", SiteID: 1, AdID: 5, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "d", SiteID: 1, AdID: 5, CreatedAt: base.Add(3 * time.Minute)},
	}
	clicks := []models.Click{
		{ID: "x", SiteID: 1, AdID: 5, Revenue: decimal.Zero, CreatedAt: base.Add(time.Minute)},
	}

	rows := service.AggregateBuckets(impressions, clicks, service.HourBucket)

	require.Len(t, rows, 1)
	assert.Equal(t, float64(25), rows[0].CTR)

	// Корзина только с кликами: CTR ноль, а не деление на ноль
	rows = service.AggregateBuckets(nil, clicks, service.HourBucket)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(0), rows[0].CTR)
}

// TestMergeBuckets проверяет главное свойство слияния: сумма частичных
// агрегатов по непересекающимся подмножествам равна агрегату целого
func TestMergeBuckets(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	impressions := []models.Impression{
		{ID: "a", SiteID: 1, AdID: 5, CreatedAt: base},
		{ID: "b", SiteID: 1, AdID: 5, CreatedAt: base.Add(time.Minute)},
		{ID: "c", SiteID: 2, AdID: 5, CreatedAt: base.Add(2 * time.Minute)},
	}
	clicks := []models.Click{
		{ID: "x", SiteID: 1, AdID: 5, Revenue: decimal.RequireFromString("0.40"), CreatedAt: base},
		{ID: "y", SiteID: 2, AdID: 5, Revenue: decimal.RequireFromString("0.10"), CreatedAt: base.Add(time.Minute)},
	}

	whole := service.AggregateBuckets(impressions, clicks, service.HourBucket)

	partA := service.AggregateBuckets(impressions[:1], clicks[:1], service.HourBucket)
	partB := service.AggregateBuckets(impressions[1:], clicks[1:], service.HourBucket)
	merged := service.MergeBuckets(partA, partB)

	require.Len(t, merged, len(whole))
	for i := range whole {
		assert.Equal(t, whole[i].MetricKey, merged[i].MetricKey)
		assert.Equal(t, whole[i].Impressions, merged[i].Impressions)
		assert.Equal(t, whole[i].Clicks, merged[i].Clicks)
		assert.True(t, whole[i].Revenue.Equal(merged[i].Revenue))
		assert.Equal(t, whole[i].CTR, merged[i].CTR)
	}
}

// TestHourBucket_DayBucket проверяет обрезание до границ часа и суток
func TestHourBucket_DayBucket(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 42, 17, 500, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), service.HourBucket(at))
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), service.DayBucket(at))
}
