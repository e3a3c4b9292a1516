package service

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/shopspring/decimal"
)

// DashboardService read-only запросы по агрегированному состоянию;
// терпит ограниченное отставание агрегатов, побочных эффектов нет
type DashboardService interface {
	Overview(ctx context.Context) (*models.DashboardOverview, error)
	SiteMetrics(ctx context.Context, siteID int64) (*models.EntityMetrics, error)
	AllSiteMetrics(ctx context.Context) ([]models.EntityMetrics, error)
	AdMetrics(ctx context.Context, adID int64) (*models.EntityMetrics, error)
	AllAdMetrics(ctx context.Context) ([]models.EntityMetrics, error)
	HourlyMetrics(ctx context.Context, filter repository.EventFilter, hours int) ([]models.MetricRow, error)
	DailyMetrics(ctx context.Context, filter repository.EventFilter, days int) ([]models.MetricRow, error)
}

type dashboardService struct {
	metricRepo repository.MetricRepository
	eventRepo  repository.EventRepository
	siteRepo   repository.SiteRepository
	adRepo     repository.AdRepository
}

// NewDashboardService создаёт новый экземпляр сервиса дашборда
func NewDashboardService(
	metricRepo repository.MetricRepository,
	eventRepo repository.EventRepository,
	siteRepo repository.SiteRepository,
	adRepo repository.AdRepository,
) DashboardService {
	return &dashboardService{
		metricRepo: metricRepo,
		eventRepo:  eventRepo,
		siteRepo:   siteRepo,
		adRepo:     adRepo,
	}
}

// Overview KPI всей платформы одним вызовом
func (s *dashboardService) Overview(ctx context.Context) (*models.DashboardOverview, error) {
	totals, err := s.metricRepo.ListSiteTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get site totals: %w", err)
	}

	overview := &models.DashboardOverview{TotalRevenue: decimal.Zero}
	for _, t := range totals {
		overview.TotalImpressions += t.Impressions
		overview.TotalClicks += t.Clicks
		overview.TotalRevenue = overview.TotalRevenue.Add(t.Revenue)
	}
	if overview.TotalImpressions > 0 {
		overview.AverageCTR = float64(overview.TotalClicks) / float64(overview.TotalImpressions) * 100
	}

	overview.AverageFraudScore, err = s.eventRepo.AverageFraudScore(ctx)
	if err != nil {
		return nil, err
	}

	overview.ActiveSites, err = s.siteRepo.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	overview.ActiveAds, err = s.adRepo.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	return overview, nil
}

func (s *dashboardService) SiteMetrics(ctx context.Context, siteID int64) (*models.EntityMetrics, error) {
	return s.metricRepo.SiteTotals(ctx, siteID)
}

func (s *dashboardService) AllSiteMetrics(ctx context.Context) ([]models.EntityMetrics, error) {
	return s.metricRepo.ListSiteTotals(ctx)
}

func (s *dashboardService) AdMetrics(ctx context.Context, adID int64) (*models.EntityMetrics, error) {
	return s.metricRepo.AdTotals(ctx, adID)
}

func (s *dashboardService) AllAdMetrics(ctx context.Context) ([]models.EntityMetrics, error) {
	return s.metricRepo.ListAdTotals(ctx)
}

func (s *dashboardService) HourlyMetrics(ctx context.Context, filter repository.EventFilter, hours int) ([]models.MetricRow, error) {
	return s.metricRepo.ListHourly(ctx, filter, hours)
}

func (s *dashboardService) DailyMetrics(ctx context.Context, filter repository.EventFilter, days int) ([]models.MetricRow, error) {
	return s.metricRepo.ListDaily(ctx, filter, days)
}
