package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/jackc/pgx/v5"
)

type AdRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Ad, error)
	CountActive(ctx context.Context) (int64, error)
}

type adRepository struct {
	db *PostgresDB
}

func NewAdRepository(db *PostgresDB) AdRepository {
	return &adRepository{db: db}
}

func (r *adRepository) GetByID(ctx context.Context, id int64) (*models.Ad, error) {
	query := `
		SELECT id, channel, objective, budget, cpm_bid, cpc_bid, destination_url, status, created_at
		FROM ads
		WHERE id = $1
	`

	ad := &models.Ad{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&ad.ID,
		&ad.Channel,
		&ad.Objective,
		&ad.Budget,
		&ad.CPMBid,
		&ad.CPCBid,
		&ad.DestinationURL,
		&ad.Status,
		&ad.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdNotFound
		}
		return nil, fmt.Errorf("failed to get ad: %w", err)
	}

	return ad, nil
}

func (r *adRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM ads WHERE status = $1`, models.AdStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active ads: %w", err)
	}
	return count, nil
}
