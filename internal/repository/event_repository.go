package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/jackc/pgx/v5"
)

// EventFilter опциональный фильтр сырых событий по площадке/объявлению
type EventFilter struct {
	SiteID *int64
	AdID   *int64
}

// EventRepository хранилище неизменяемых сырых событий (показы и клики):
// только вставка и чтение, обновлений не бывает
type EventRepository interface {
	InsertImpression(ctx context.Context, imp *models.Impression) error
	GetImpression(ctx context.Context, id string) (*models.Impression, error)
	InsertClick(ctx context.Context, click *models.Click) error
	ListImpressions(ctx context.Context, from, to time.Time, filter EventFilter) ([]models.Impression, error)
	ListClicks(ctx context.Context, from, to time.Time, filter EventFilter) ([]models.Click, error)
	AverageFraudScore(ctx context.Context) (float64, error)
}

type eventRepository struct {
	db *PostgresDB
}

func NewEventRepository(db *PostgresDB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) InsertImpression(ctx context.Context, imp *models.Impression) error {
	query := `
		INSERT INTO impressions (id, ad_id, slot_id, site_id, device_class, viewport_w,
		                         viewport_h, referrer, page_url, is_viewable, time_visible_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		imp.ID,
		imp.AdID,
		imp.SlotID,
		imp.SiteID,
		imp.DeviceClass,
		imp.ViewportW,
		imp.ViewportH,
		imp.Referrer,
		imp.PageURL,
		imp.IsViewable,
		imp.TimeVisibleMs,
		imp.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert impression: %w", err)
	}

	return nil
}

func (r *eventRepository) GetImpression(ctx context.Context, id string) (*models.Impression, error) {
	query := `
		SELECT id, ad_id, slot_id, site_id, device_class, viewport_w, viewport_h,
		       referrer, page_url, is_viewable, time_visible_ms, created_at
		FROM impressions
		WHERE id = $1
	`

	imp := &models.Impression{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&imp.ID,
		&imp.AdID,
		&imp.SlotID,
		&imp.SiteID,
		&imp.DeviceClass,
		&imp.ViewportW,
		&imp.ViewportH,
		&imp.Referrer,
		&imp.PageURL,
		&imp.IsViewable,
		&imp.TimeVisibleMs,
		&imp.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImpressionNotFound
		}
		return nil, fmt.Errorf("failed to get impression: %w", err)
	}

	return imp, nil
}

func (r *eventRepository) InsertClick(ctx context.Context, click *models.Click) error {
	query := `
		INSERT INTO clicks (id, impression_id, ad_id, slot_id, site_id, click_x, click_y,
		                    time_on_page_ms, fraud_score, blocked, revenue, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		click.ID,
		click.ImpressionID,
		click.AdID,
		click.SlotID,
		click.SiteID,
		click.ClickX,
		click.ClickY,
		click.TimeOnPageMs,
		click.FraudScore,
		click.Blocked,
		click.Revenue,
		click.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert click: %w", err)
	}

	return nil
}

func (r *eventRepository) ListImpressions(ctx context.Context, from, to time.Time, filter EventFilter) ([]models.Impression, error) {
	query := `
		SELECT id, ad_id, slot_id, site_id, device_class, viewport_w, viewport_h,
		       referrer, page_url, is_viewable, time_visible_ms, created_at
		FROM impressions
		WHERE created_at >= $1 AND created_at < $2
			AND ($3::bigint IS NULL OR site_id = $3)
			AND ($4::bigint IS NULL OR ad_id = $4)
		ORDER BY created_at
	`

	rows, err := r.db.Pool.Query(ctx, query, from, to, filter.SiteID, filter.AdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list impressions: %w", err)
	}
	defer rows.Close()

	var impressions []models.Impression
	for rows.Next() {
		var imp models.Impression
		if err := rows.Scan(
			&imp.ID,
			&imp.AdID,
			&imp.SlotID,
			&imp.SiteID,
			&imp.DeviceClass,
			&imp.ViewportW,
			&imp.ViewportH,
			&imp.Referrer,
			&imp.PageURL,
			&imp.IsViewable,
			&imp.TimeVisibleMs,
			&imp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan impression: %w", err)
		}
		impressions = append(impressions, imp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating impressions: %w", err)
	}

	return impressions, nil
}

func (r *eventRepository) ListClicks(ctx context.Context, from, to time.Time, filter EventFilter) ([]models.Click, error) {
	query := `
		SELECT id, impression_id, ad_id, slot_id, site_id, click_x, click_y,
		       time_on_page_ms, fraud_score, blocked, revenue, created_at
		FROM clicks
		WHERE created_at >= $1 AND created_at < $2
			AND ($3::bigint IS NULL OR site_id = $3)
			AND ($4::bigint IS NULL OR ad_id = $4)
		ORDER BY created_at
	`

	rows, err := r.db.Pool.Query(ctx, query, from, to, filter.SiteID, filter.AdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	defer rows.Close()

	var clicks []models.Click
	for rows.Next() {
		var click models.Click
		if err := rows.Scan(
			&click.ID,
			&click.ImpressionID,
			&click.AdID,
			&click.SlotID,
			&click.SiteID,
			&click.ClickX,
			&click.ClickY,
			&click.TimeOnPageMs,
			&click.FraudScore,
			&click.Blocked,
			&click.Revenue,
			&click.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, click)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clicks: %w", err)
	}

	return clicks, nil
}

func (r *eventRepository) AverageFraudScore(ctx context.Context) (float64, error) {
	var avg float64
	err := r.db.Pool.QueryRow(ctx, `SELECT COALESCE(AVG(fraud_score), 0) FROM clicks`).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to get average fraud score: %w", err)
	}
	return avg, nil
}
