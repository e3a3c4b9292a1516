package service

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReconcileReport итог одного прогона сверки инвентаря
type ReconcileReport struct {
	SitesProcessed int      `json:"sites_processed"`
	SitesFailed    int      `json:"sites_failed"`
	Errors         []string `json:"errors,omitempty"`
}

// InventoryService сверка инвентаря: пересчитывает срез каждой площадки из
// счётчиков её слотов и перезаписывает его целиком. Прогоны безопасно
// повторять и запускать параллельно по разным площадкам
type InventoryService interface {
	Reconcile(ctx context.Context, siteID *int64) (*ReconcileReport, error)
}

type inventoryService struct {
	siteRepo      repository.SiteRepository
	slotRepo      repository.SlotRepository
	inventoryRepo repository.InventoryRepository
	logger        *zap.Logger
}

// NewInventoryService создаёт новый экземпляр сервиса сверки
func NewInventoryService(
	siteRepo repository.SiteRepository,
	slotRepo repository.SlotRepository,
	inventoryRepo repository.InventoryRepository,
	logger *zap.Logger,
) InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inventoryService{
		siteRepo:      siteRepo,
		slotRepo:      slotRepo,
		inventoryRepo: inventoryRepo,
		logger:        logger,
	}
}

// Reconcile обрабатывает все площадки или одну (siteID != nil).
// Ошибка одной площадки не прерывает прогон - она попадает в отчёт
func (s *inventoryService) Reconcile(ctx context.Context, siteID *int64) (*ReconcileReport, error) {
	var siteIDs []int64
	if siteID != nil {
		siteIDs = []int64{*siteID}
	} else {
		ids, err := s.siteRepo.ListIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sites: %w", err)
		}
		siteIDs = ids
	}

	report := &ReconcileReport{}
	for _, id := range siteIDs {
		if err := s.reconcileSite(ctx, id); err != nil {
			report.SitesFailed++
			report.Errors = append(report.Errors, fmt.Sprintf("site %d: %v", id, err))
			s.logger.Warn("Сверка площадки завершилась ошибкой",
				zap.Int64("site_id", id),
				zap.Error(err),
			)
			continue
		}
		report.SitesProcessed++
	}

	s.logger.Info("Сверка инвентаря завершена",
		zap.Int("sites_processed", report.SitesProcessed),
		zap.Int("sites_failed", report.SitesFailed),
	)

	return report, nil
}

// reconcileSite пересчитывает срез одной площадки из консистентного
// снимка её слотов
func (s *inventoryService) reconcileSite(ctx context.Context, siteID int64) error {
	slots, err := s.slotRepo.SnapshotSiteSlots(ctx, siteID)
	if err != nil {
		return err
	}

	snap := BuildSnapshot(siteID, slots, time.Now().UTC())

	if err := s.inventoryRepo.Replace(ctx, snap); err != nil {
		return err
	}

	return nil
}

// BuildSnapshot чистая функция: срез инвентаря из снимка слотов.
// Инварианты: occupied <= total, available = total - occupied
func BuildSnapshot(siteID int64, slots []models.Slot, syncedAt time.Time) *models.InventorySnapshot {
	snap := &models.InventorySnapshot{
		SiteID:     siteID,
		TotalSlots: len(slots),
		Revenue:    decimal.Zero,
		SyncedAt:   syncedAt,
	}

	for _, slot := range slots {
		if slot.CurrentAdID != nil {
			snap.OccupiedSlots++
		}
		snap.Impressions += slot.Impressions
		snap.Revenue = snap.Revenue.Add(slot.Revenue)
	}
	snap.AvailableSlots = snap.TotalSlots - snap.OccupiedSlots

	return snap
}
