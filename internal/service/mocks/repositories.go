package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/SergeiKhy/ad-tracker/internal/repository"
)

// MockSiteRepository implements repository.SiteRepository for testing
type MockSiteRepository struct {
	mu    sync.RWMutex
	sites map[int64]*models.Site
}

func NewMockSiteRepository() *MockSiteRepository {
	return &MockSiteRepository{
		sites: make(map[int64]*models.Site),
	}
}

func (m *MockSiteRepository) Add(site *models.Site) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[site.ID] = site
}

func (m *MockSiteRepository) GetByID(ctx context.Context, id int64) (*models.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	site, exists := m.sites[id]
	if !exists {
		return nil, repository.ErrSiteNotFound
	}
	return site, nil
}

func (m *MockSiteRepository) GetByKeyHash(ctx context.Context, keyHash string) (*models.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, site := range m.sites {
		if site.KeyHash == keyHash {
			return site, nil
		}
	}
	return nil, repository.ErrSiteNotFound
}

func (m *MockSiteRepository) ListIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.sites))
	for id := range m.sites {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MockSiteRepository) CountActive(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, site := range m.sites {
		if site.Status == models.SiteStatusActive {
			count++
		}
	}
	return count, nil
}

// MockAdRepository implements repository.AdRepository for testing
type MockAdRepository struct {
	mu  sync.RWMutex
	ads map[int64]*models.Ad
}

func NewMockAdRepository() *MockAdRepository {
	return &MockAdRepository{
		ads: make(map[int64]*models.Ad),
	}
}

func (m *MockAdRepository) Add(ad *models.Ad) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ads[ad.ID] = ad
}

func (m *MockAdRepository) GetByID(ctx context.Context, id int64) (*models.Ad, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ad, exists := m.ads[id]
	if !exists {
		return nil, repository.ErrAdNotFound
	}
	return ad, nil
}

func (m *MockAdRepository) CountActive(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, ad := range m.ads {
		if ad.Status == models.AdStatusActive {
			count++
		}
	}
	return count, nil
}

// MockSlotRepository implements repository.SlotRepository for testing
type MockSlotRepository struct {
	mu    sync.RWMutex
	slots map[int64]*models.Slot

	// ApplyCalls records every counter event in order
	ApplyCalls []models.SlotCounterEvent
}

func NewMockSlotRepository() *MockSlotRepository {
	return &MockSlotRepository{
		slots: make(map[int64]*models.Slot),
	}
}

func (m *MockSlotRepository) Add(slot *models.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot.ID] = slot
}

func (m *MockSlotRepository) GetByID(ctx context.Context, id int64) (*models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	slot, exists := m.slots[id]
	if !exists {
		return nil, repository.ErrSlotNotFound
	}
	return slot, nil
}

func (m *MockSlotRepository) ApplyCounters(ctx context.Context, event *models.SlotCounterEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, exists := m.slots[event.SlotID]
	if !exists {
		return repository.ErrSlotNotFound
	}

	slot.Impressions += event.Impressions
	slot.Clicks += event.Clicks
	slot.Revenue = slot.Revenue.Add(event.Revenue)
	m.ApplyCalls = append(m.ApplyCalls, *event)
	return nil
}

func (m *MockSlotRepository) SnapshotSiteSlots(ctx context.Context, siteID int64) ([]models.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var slots []models.Slot
	for _, slot := range m.slots {
		if slot.SiteID == siteID {
			slots = append(slots, *slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots, nil
}

// MockEventRepository implements repository.EventRepository for testing
type MockEventRepository struct {
	mu          sync.RWMutex
	impressions map[string]*models.Impression
	clicks      []*models.Click
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{
		impressions: make(map[string]*models.Impression),
	}
}

func (m *MockEventRepository) InsertImpression(ctx context.Context, imp *models.Impression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *imp
	m.impressions[imp.ID] = &stored
	return nil
}

func (m *MockEventRepository) GetImpression(ctx context.Context, id string) (*models.Impression, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	imp, exists := m.impressions[id]
	if !exists {
		return nil, repository.ErrImpressionNotFound
	}
	return imp, nil
}

func (m *MockEventRepository) InsertClick(ctx context.Context, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *click
	m.clicks = append(m.clicks, &stored)
	return nil
}

func (m *MockEventRepository) ListImpressions(ctx context.Context, from, to time.Time, filter repository.EventFilter) ([]models.Impression, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Impression
	for _, imp := range m.impressions {
		if imp.CreatedAt.Before(from) || !imp.CreatedAt.Before(to) {
			continue
		}
		if filter.SiteID != nil && imp.SiteID != *filter.SiteID {
			continue
		}
		if filter.AdID != nil && imp.AdID != *filter.AdID {
			continue
		}
		out = append(out, *imp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockEventRepository) ListClicks(ctx context.Context, from, to time.Time, filter repository.EventFilter) ([]models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Click
	for _, click := range m.clicks {
		if click.CreatedAt.Before(from) || !click.CreatedAt.Before(to) {
			continue
		}
		if filter.SiteID != nil && click.SiteID != *filter.SiteID {
			continue
		}
		if filter.AdID != nil && click.AdID != *filter.AdID {
			continue
		}
		out = append(out, *click)
	}
	return out, nil
}

func (m *MockEventRepository) AverageFraudScore(ctx context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.clicks) == 0 {
		return 0, nil
	}
	var sum float64
	for _, click := range m.clicks {
		sum += click.FraudScore
	}
	return sum / float64(len(m.clicks)), nil
}

// Clicks returns a copy of all inserted clicks
func (m *MockEventRepository) Clicks() []models.Click {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Click, 0, len(m.clicks))
	for _, click := range m.clicks {
		out = append(out, *click)
	}
	return out
}

// Impressions returns a copy of all inserted impressions
func (m *MockEventRepository) Impressions() []models.Impression {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Impression, 0, len(m.impressions))
	for _, imp := range m.impressions {
		out = append(out, *imp)
	}
	return out
}

// MockMetricRepository implements repository.MetricRepository for testing
type MockMetricRepository struct {
	mu     sync.RWMutex
	hourly map[models.MetricKey]models.MetricRow
	daily  map[models.MetricKey]models.MetricRow
}

func NewMockMetricRepository() *MockMetricRepository {
	return &MockMetricRepository{
		hourly: make(map[models.MetricKey]models.MetricRow),
		daily:  make(map[models.MetricKey]models.MetricRow),
	}
}

func (m *MockMetricRepository) UpsertHourly(ctx context.Context, rows []models.MetricRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.hourly[row.MetricKey] = row
	}
	return nil
}

func (m *MockMetricRepository) UpsertDaily(ctx context.Context, rows []models.MetricRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.daily[row.MetricKey] = row
	}
	return nil
}

func sortedRows(byKey map[models.MetricKey]models.MetricRow) []models.MetricRow {
	out := make([]models.MetricRow, 0, len(byKey))
	for _, row := range byKey {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Bucket.Equal(out[j].Bucket) {
			return out[i].Bucket.Before(out[j].Bucket)
		}
		if out[i].SiteID != out[j].SiteID {
			return out[i].SiteID < out[j].SiteID
		}
		return out[i].AdID < out[j].AdID
	})
	return out
}

func (m *MockMetricRepository) ListHourly(ctx context.Context, filter repository.EventFilter, hours int) ([]models.MetricRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRows(sortedRows(m.hourly), filter), nil
}

func (m *MockMetricRepository) ListDaily(ctx context.Context, filter repository.EventFilter, days int) ([]models.MetricRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRows(sortedRows(m.daily), filter), nil
}

func filterRows(rows []models.MetricRow, filter repository.EventFilter) []models.MetricRow {
	var out []models.MetricRow
	for _, row := range rows {
		if filter.SiteID != nil && row.SiteID != *filter.SiteID {
			continue
		}
		if filter.AdID != nil && row.AdID != *filter.AdID {
			continue
		}
		out = append(out, row)
	}
	return out
}

func (m *MockMetricRepository) SiteTotals(ctx context.Context, siteID int64) (*models.EntityMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totals := &models.EntityMetrics{SiteID: siteID}
	for _, row := range m.hourly {
		if row.SiteID != siteID {
			continue
		}
		totals.Impressions += row.Impressions
		totals.Clicks += row.Clicks
		totals.Revenue = totals.Revenue.Add(row.Revenue)
	}
	if totals.Impressions > 0 {
		totals.CTR = float64(totals.Clicks) / float64(totals.Impressions) * 100
	}
	return totals, nil
}

func (m *MockMetricRepository) ListSiteTotals(ctx context.Context) ([]models.EntityMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := make(map[int64]*models.EntityMetrics)
	for _, row := range m.hourly {
		totals, exists := byID[row.SiteID]
		if !exists {
			totals = &models.EntityMetrics{SiteID: row.SiteID}
			byID[row.SiteID] = totals
		}
		totals.Impressions += row.Impressions
		totals.Clicks += row.Clicks
		totals.Revenue = totals.Revenue.Add(row.Revenue)
	}

	out := make([]models.EntityMetrics, 0, len(byID))
	for _, totals := range byID {
		if totals.Impressions > 0 {
			totals.CTR = float64(totals.Clicks) / float64(totals.Impressions) * 100
		}
		out = append(out, *totals)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out, nil
}

func (m *MockMetricRepository) AdTotals(ctx context.Context, adID int64) (*models.EntityMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totals := &models.EntityMetrics{AdID: adID}
	for _, row := range m.hourly {
		if row.AdID != adID {
			continue
		}
		totals.Impressions += row.Impressions
		totals.Clicks += row.Clicks
		totals.Revenue = totals.Revenue.Add(row.Revenue)
	}
	if totals.Impressions > 0 {
		totals.CTR = float64(totals.Clicks) / float64(totals.Impressions) * 100
	}
	return totals, nil
}

func (m *MockMetricRepository) ListAdTotals(ctx context.Context) ([]models.EntityMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := make(map[int64]*models.EntityMetrics)
	for _, row := range m.hourly {
		totals, exists := byID[row.AdID]
		if !exists {
			totals = &models.EntityMetrics{AdID: row.AdID}
			byID[row.AdID] = totals
		}
		totals.Impressions += row.Impressions
		totals.Clicks += row.Clicks
		totals.Revenue = totals.Revenue.Add(row.Revenue)
	}

	out := make([]models.EntityMetrics, 0, len(byID))
	for _, totals := range byID {
		if totals.Impressions > 0 {
			totals.CTR = float64(totals.Clicks) / float64(totals.Impressions) * 100
		}
		out = append(out, *totals)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AdID < out[j].AdID })
	return out, nil
}

// HourlyRows returns a deterministic snapshot of the hourly table
func (m *MockMetricRepository) HourlyRows() []models.MetricRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedRows(m.hourly)
}

// DailyRows returns a deterministic snapshot of the daily table
func (m *MockMetricRepository) DailyRows() []models.MetricRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedRows(m.daily)
}

// MockInventoryRepository implements repository.InventoryRepository for testing
type MockInventoryRepository struct {
	mu        sync.RWMutex
	snapshots map[int64]*models.InventorySnapshot
}

func NewMockInventoryRepository() *MockInventoryRepository {
	return &MockInventoryRepository{
		snapshots: make(map[int64]*models.InventorySnapshot),
	}
}

func (m *MockInventoryRepository) Replace(ctx context.Context, snap *models.InventorySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *snap
	m.snapshots[snap.SiteID] = &stored
	return nil
}

func (m *MockInventoryRepository) Get(ctx context.Context, siteID int64) (*models.InventorySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, exists := m.snapshots[siteID]
	if !exists {
		return nil, repository.ErrSnapshotNotFound
	}
	return snap, nil
}

func (m *MockInventoryRepository) List(ctx context.Context) ([]models.InventorySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.InventorySnapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out, nil
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu     sync.RWMutex
	sites  map[string]*models.Site
	counts map[string]int64
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		sites:  make(map[string]*models.Site),
		counts: make(map[string]int64),
	}
}

func (m *MockCacheRepository) GetSite(ctx context.Context, keyHash string) (*models.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	site, exists := m.sites[keyHash]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	return site, nil
}

func (m *MockCacheRepository) SetSite(ctx context.Context, keyHash string, site *models.Site, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[keyHash] = site
	return nil
}

func (m *MockCacheRepository) DeleteSite(ctx context.Context, keyHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sites, keyHash)
	return nil
}

func (m *MockCacheRepository) IncrClickCount(ctx context.Context, fingerprint string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[fingerprint]++
	return m.counts[fingerprint], nil
}

// SetClickCount pre-seeds the repeat-click counter for a fingerprint
func (m *MockCacheRepository) SetClickCount(fingerprint string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[fingerprint] = count
}
