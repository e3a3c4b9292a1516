package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/jackc/pgx/v5"
)

var ErrSnapshotNotFound = errors.New("inventory snapshot not found")

// MetricRepository хранилище производных агрегатов. Запись только через
// upsert-by-key с полной заменой значений, поэтому пересчёт идемпотентен.
type MetricRepository interface {
	UpsertHourly(ctx context.Context, rows []models.MetricRow) error
	UpsertDaily(ctx context.Context, rows []models.MetricRow) error
	ListHourly(ctx context.Context, filter EventFilter, hours int) ([]models.MetricRow, error)
	ListDaily(ctx context.Context, filter EventFilter, days int) ([]models.MetricRow, error)
	SiteTotals(ctx context.Context, siteID int64) (*models.EntityMetrics, error)
	ListSiteTotals(ctx context.Context) ([]models.EntityMetrics, error)
	AdTotals(ctx context.Context, adID int64) (*models.EntityMetrics, error)
	ListAdTotals(ctx context.Context) ([]models.EntityMetrics, error)
}

// InventoryRepository срезы инвентаря; каждая сверка перезаписывает строку целиком
type InventoryRepository interface {
	Replace(ctx context.Context, snap *models.InventorySnapshot) error
	Get(ctx context.Context, siteID int64) (*models.InventorySnapshot, error)
	List(ctx context.Context) ([]models.InventorySnapshot, error)
}

type metricRepository struct {
	db *PostgresDB
}

func NewMetricRepository(db *PostgresDB) MetricRepository {
	return &metricRepository{db: db}
}

func (r *metricRepository) UpsertHourly(ctx context.Context, rows []models.MetricRow) error {
	return r.upsert(ctx, "hourly_metrics", rows)
}

func (r *metricRepository) UpsertDaily(ctx context.Context, rows []models.MetricRow) error {
	return r.upsert(ctx, "daily_metrics", rows)
}

// upsert записывает корзины одной транзакцией: агрегаты либо обновились
// целиком, либо не обновились вовсе
func (r *metricRepository) upsert(ctx context.Context, table string, rows []models.MetricRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin metrics tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO %s (site_id, ad_id, bucket, impressions, clicks, revenue, ctr)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (site_id, ad_id, bucket)
		DO UPDATE SET impressions = EXCLUDED.impressions,
		              clicks = EXCLUDED.clicks,
		              revenue = EXCLUDED.revenue,
		              ctr = EXCLUDED.ctr
	`, table)

	for _, row := range rows {
		if _, err := tx.Exec(ctx, query,
			row.SiteID,
			row.AdID,
			row.Bucket,
			row.Impressions,
			row.Clicks,
			row.Revenue,
			row.CTR,
		); err != nil {
			return fmt.Errorf("failed to upsert metric row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit metrics tx: %w", err)
	}

	return nil
}

func (r *metricRepository) ListHourly(ctx context.Context, filter EventFilter, hours int) ([]models.MetricRow, error) {
	query := `
		SELECT site_id, ad_id, bucket, impressions, clicks, revenue, ctr
		FROM hourly_metrics
		WHERE bucket >= NOW() - INTERVAL '1 hour' * $1
			AND ($2::bigint IS NULL OR site_id = $2)
			AND ($3::bigint IS NULL OR ad_id = $3)
		ORDER BY bucket DESC
	`
	return r.list(ctx, query, hours, filter)
}

func (r *metricRepository) ListDaily(ctx context.Context, filter EventFilter, days int) ([]models.MetricRow, error) {
	query := `
		SELECT site_id, ad_id, bucket, impressions, clicks, revenue, ctr
		FROM daily_metrics
		WHERE bucket >= NOW() - INTERVAL '1 day' * $1
			AND ($2::bigint IS NULL OR site_id = $2)
			AND ($3::bigint IS NULL OR ad_id = $3)
		ORDER BY bucket DESC
	`
	return r.list(ctx, query, days, filter)
}

func (r *metricRepository) list(ctx context.Context, query string, span int, filter EventFilter) ([]models.MetricRow, error) {
	rows, err := r.db.Pool.Query(ctx, query, span, filter.SiteID, filter.AdID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []models.MetricRow{}, nil
		}
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	var result []models.MetricRow
	for rows.Next() {
		var row models.MetricRow
		if err := rows.Scan(
			&row.SiteID,
			&row.AdID,
			&row.Bucket,
			&row.Impressions,
			&row.Clicks,
			&row.Revenue,
			&row.CTR,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metric row: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}

	return result, nil
}

func (r *metricRepository) SiteTotals(ctx context.Context, siteID int64) (*models.EntityMetrics, error) {
	query := `
		SELECT COALESCE(SUM(impressions), 0), COALESCE(SUM(clicks), 0), COALESCE(SUM(revenue), 0)
		FROM daily_metrics
		WHERE site_id = $1
	`

	m := &models.EntityMetrics{SiteID: siteID}
	err := r.db.Pool.QueryRow(ctx, query, siteID).Scan(&m.Impressions, &m.Clicks, &m.Revenue)
	if err != nil {
		return nil, fmt.Errorf("failed to get site totals: %w", err)
	}
	m.CTR = deriveCTR(m.Impressions, m.Clicks)

	return m, nil
}

func (r *metricRepository) ListSiteTotals(ctx context.Context) ([]models.EntityMetrics, error) {
	query := `
		SELECT site_id, SUM(impressions), SUM(clicks), SUM(revenue)
		FROM daily_metrics
		GROUP BY site_id
		ORDER BY site_id
	`
	return r.listTotals(ctx, query, true)
}

func (r *metricRepository) AdTotals(ctx context.Context, adID int64) (*models.EntityMetrics, error) {
	query := `
		SELECT COALESCE(SUM(impressions), 0), COALESCE(SUM(clicks), 0), COALESCE(SUM(revenue), 0)
		FROM daily_metrics
		WHERE ad_id = $1
	`

	m := &models.EntityMetrics{AdID: adID}
	err := r.db.Pool.QueryRow(ctx, query, adID).Scan(&m.Impressions, &m.Clicks, &m.Revenue)
	if err != nil {
		return nil, fmt.Errorf("failed to get ad totals: %w", err)
	}
	m.CTR = deriveCTR(m.Impressions, m.Clicks)

	return m, nil
}

func (r *metricRepository) ListAdTotals(ctx context.Context) ([]models.EntityMetrics, error) {
	query := `
		SELECT ad_id, SUM(impressions), SUM(clicks), SUM(revenue)
		FROM daily_metrics
		GROUP BY ad_id
		ORDER BY ad_id
	`
	return r.listTotals(ctx, query, false)
}

func (r *metricRepository) listTotals(ctx context.Context, query string, bySite bool) ([]models.EntityMetrics, error) {
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list totals: %w", err)
	}
	defer rows.Close()

	var result []models.EntityMetrics
	for rows.Next() {
		var m models.EntityMetrics
		var id int64
		if err := rows.Scan(&id, &m.Impressions, &m.Clicks, &m.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		if bySite {
			m.SiteID = id
		} else {
			m.AdID = id
		}
		m.CTR = deriveCTR(m.Impressions, m.Clicks)
		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating totals: %w", err)
	}

	return result, nil
}

// deriveCTR всегда вычисляется из суммарных значений, никогда не суммируется
func deriveCTR(impressions, clicks int64) float64 {
	if impressions == 0 {
		return 0
	}
	return float64(clicks) / float64(impressions) * 100
}

type inventoryRepository struct {
	db *PostgresDB
}

func NewInventoryRepository(db *PostgresDB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Replace(ctx context.Context, snap *models.InventorySnapshot) error {
	query := `
		INSERT INTO inventory_snapshots (site_id, total_slots, occupied_slots, available_slots,
		                                 revenue, impressions, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (site_id)
		DO UPDATE SET total_slots = EXCLUDED.total_slots,
		              occupied_slots = EXCLUDED.occupied_slots,
		              available_slots = EXCLUDED.available_slots,
		              revenue = EXCLUDED.revenue,
		              impressions = EXCLUDED.impressions,
		              synced_at = EXCLUDED.synced_at
	`

	_, err := r.db.Pool.Exec(ctx, query,
		snap.SiteID,
		snap.TotalSlots,
		snap.OccupiedSlots,
		snap.AvailableSlots,
		snap.Revenue,
		snap.Impressions,
		snap.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to replace inventory snapshot: %w", err)
	}

	return nil
}

func (r *inventoryRepository) Get(ctx context.Context, siteID int64) (*models.InventorySnapshot, error) {
	query := `
		SELECT site_id, total_slots, occupied_slots, available_slots, revenue, impressions, synced_at
		FROM inventory_snapshots
		WHERE site_id = $1
	`

	snap := &models.InventorySnapshot{}
	err := r.db.Pool.QueryRow(ctx, query, siteID).Scan(
		&snap.SiteID,
		&snap.TotalSlots,
		&snap.OccupiedSlots,
		&snap.AvailableSlots,
		&snap.Revenue,
		&snap.Impressions,
		&snap.SyncedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get inventory snapshot: %w", err)
	}

	return snap, nil
}

func (r *inventoryRepository) List(ctx context.Context) ([]models.InventorySnapshot, error) {
	query := `
		SELECT site_id, total_slots, occupied_slots, available_slots, revenue, impressions, synced_at
		FROM inventory_snapshots
		ORDER BY site_id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []models.InventorySnapshot
	for rows.Next() {
		var snap models.InventorySnapshot
		if err := rows.Scan(
			&snap.SiteID,
			&snap.TotalSlots,
			&snap.OccupiedSlots,
			&snap.AvailableSlots,
			&snap.Revenue,
			&snap.Impressions,
			&snap.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan inventory snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory snapshots: %w", err)
	}

	return snaps, nil
}
