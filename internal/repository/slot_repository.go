package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/jackc/pgx/v5"
)

type SlotRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Slot, error)
	ApplyCounters(ctx context.Context, event *models.SlotCounterEvent) error
	// SnapshotSiteSlots читает все слоты площадки в одной repeatable-read
	// транзакции, чтобы сверка не видела расползшиеся частичные счётчики
	SnapshotSiteSlots(ctx context.Context, siteID int64) ([]models.Slot, error)
}

type slotRepository struct {
	db *PostgresDB
}

func NewSlotRepository(db *PostgresDB) SlotRepository {
	return &slotRepository{db: db}
}

func (r *slotRepository) GetByID(ctx context.Context, id int64) (*models.Slot, error) {
	query := `
		SELECT id, site_id, position, width, height, current_ad_id,
		       impressions, clicks, revenue, created_at
		FROM slots
		WHERE id = $1
	`

	slot := &models.Slot{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&slot.ID,
		&slot.SiteID,
		&slot.Position,
		&slot.Width,
		&slot.Height,
		&slot.CurrentAdID,
		&slot.Impressions,
		&slot.Clicks,
		&slot.Revenue,
		&slot.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	return slot, nil
}

func (r *slotRepository) ApplyCounters(ctx context.Context, event *models.SlotCounterEvent) error {
	query := `
		UPDATE slots
		SET impressions = impressions + $2,
		    clicks = clicks + $3,
		    revenue = revenue + $4
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query,
		event.SlotID,
		event.Impressions,
		event.Clicks,
		event.Revenue,
	)
	if err != nil {
		return fmt.Errorf("failed to apply slot counters: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSlotNotFound
	}

	return nil
}

func (r *slotRepository) SnapshotSiteSlots(ctx context.Context, siteID int64) ([]models.Slot, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, site_id, position, width, height, current_ad_id,
		       impressions, clicks, revenue, created_at
		FROM slots
		WHERE site_id = $1
		ORDER BY id
	`

	rows, err := tx.Query(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot site slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		var slot models.Slot
		if err := rows.Scan(
			&slot.ID,
			&slot.SiteID,
			&slot.Position,
			&slot.Width,
			&slot.Height,
			&slot.CurrentAdID,
			&slot.Impressions,
			&slot.Clicks,
			&slot.Revenue,
			&slot.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot tx: %w", err)
	}

	return slots, nil
}
