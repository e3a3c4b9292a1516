package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/service"
	"github.com/SergeiKhy/ad-tracker/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adRef(id int64) *int64 { return &id }

type inventoryEnv struct {
	svc           service.InventoryService
	siteRepo      *mocks.MockSiteRepository
	slotRepo      *mocks.MockSlotRepository
	inventoryRepo *mocks.MockInventoryRepository
}

func setupInventory(t *testing.T) *inventoryEnv {
	t.Helper()

	siteRepo := mocks.NewMockSiteRepository()
	slotRepo := mocks.NewMockSlotRepository()
	inventoryRepo := mocks.NewMockInventoryRepository()
	logger, _ := zap.NewDevelopment()

	return &inventoryEnv{
		svc:           service.NewInventoryService(siteRepo, slotRepo, inventoryRepo, logger),
		siteRepo:      siteRepo,
		slotRepo:      slotRepo,
		inventoryRepo: inventoryRepo,
	}
}

// seedSite добавляет площадку с total слотами, occupied из которых заняты
func (e *inventoryEnv) seedSite(siteID int64, total, occupied int) {
	e.siteRepo.Add(&models.Site{ID: siteID, Status: models.SiteStatusActive})
	for i := 0; i < total; i++ {
		slot := &models.Slot{
			ID:      siteID*100 + int64(i),
			SiteID:  siteID,
			Revenue: decimal.Zero,
		}
		if i < occupied {
			slot.CurrentAdID = adRef(5)
		}
		e.slotRepo.Add(slot)
	}
}

// TestInventoryService_Reconcile проверяет базовый инвариант среза:
// available = total - occupied
func TestInventoryService_Reconcile(t *testing.T) {
	env := setupInventory(t)
	env.seedSite(1, 8, 5)
	ctx := context.Background()

	report, err := env.svc.Reconcile(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SitesProcessed)
	assert.Equal(t, 0, report.SitesFailed)

	snap, err := env.inventoryRepo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, snap.TotalSlots)
	assert.Equal(t, 5, snap.OccupiedSlots)
	assert.Equal(t, 3, snap.AvailableSlots)
	assert.False(t, snap.SyncedAt.IsZero())
}

// TestInventoryService_Reconcile_SingleSite проверяет прогон по одной площадке
func TestInventoryService_Reconcile_SingleSite(t *testing.T) {
	env := setupInventory(t)
	env.seedSite(1, 3, 1)
	env.seedSite(2, 4, 4)
	ctx := context.Background()

	siteID := int64(2)
	report, err := env.svc.Reconcile(ctx, &siteID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SitesProcessed)

	// Площадка 1 не трогалась
	_, err = env.inventoryRepo.Get(ctx, 1)
	assert.Error(t, err)

	snap, err := env.inventoryRepo.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.OccupiedSlots)
	assert.Equal(t, 0, snap.AvailableSlots)
}

// TestInventoryService_Reconcile_Rerun проверяет, что повторная сверка
// перезаписывает срез, а не дублирует его
func TestInventoryService_Reconcile_Rerun(t *testing.T) {
	env := setupInventory(t)
	env.seedSite(1, 2, 0)
	ctx := context.Background()

	_, err := env.svc.Reconcile(ctx, nil)
	require.NoError(t, err)
	_, err = env.svc.Reconcile(ctx, nil)
	require.NoError(t, err)

	snaps, err := env.inventoryRepo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
	assert.Equal(t, 2, snaps[0].TotalSlots)
}

// TestBuildSnapshot проверяет чистую сборку среза из снимка слотов
func TestBuildSnapshot(t *testing.T) {
	syncedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	slots := []models.Slot{
		{ID: 1, SiteID: 1, CurrentAdID: adRef(5), Impressions: 100, Revenue: decimal.RequireFromString("0.25")},
		{ID: 2, SiteID: 1, Impressions: 40, Revenue: decimal.RequireFromString("0.10")},
		{ID: 3, SiteID: 1, CurrentAdID: adRef(6), Impressions: 0, Revenue: decimal.Zero},
	}

	snap := service.BuildSnapshot(1, slots, syncedAt)

	assert.Equal(t, 3, snap.TotalSlots)
	assert.Equal(t, 2, snap.OccupiedSlots)
	assert.Equal(t, 1, snap.AvailableSlots)
	assert.Equal(t, int64(140), snap.Impressions)
	assert.True(t, snap.Revenue.Equal(decimal.RequireFromString("0.35")))
	assert.Equal(t, syncedAt, snap.SyncedAt)

	// Пустая площадка: все нули, инвариант сохраняется
	empty := service.BuildSnapshot(2, nil, syncedAt)
	assert.Equal(t, 0, empty.TotalSlots)
	assert.Equal(t, 0, empty.AvailableSlots)
	assert.True(t, empty.Revenue.IsZero())
}
