package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/ad-tracker/internal/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrSiteNotFound       = errors.New("site not found")
	ErrSlotNotFound       = errors.New("slot not found")
	ErrAdNotFound         = errors.New("ad not found")
	ErrImpressionNotFound = errors.New("impression not found")
)

type SiteRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Site, error)
	GetByKeyHash(ctx context.Context, keyHash string) (*models.Site, error)
	ListIDs(ctx context.Context) ([]int64, error)
	CountActive(ctx context.Context) (int64, error)
}

type siteRepository struct {
	db *PostgresDB
}

func NewSiteRepository(db *PostgresDB) SiteRepository {
	return &siteRepository{db: db}
}

func (r *siteRepository) GetByID(ctx context.Context, id int64) (*models.Site, error) {
	query := `
		SELECT id, domain, key_hash, status, created_at
		FROM sites
		WHERE id = $1
	`

	site := &models.Site{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&site.ID,
		&site.Domain,
		&site.KeyHash,
		&site.Status,
		&site.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	return site, nil
}

func (r *siteRepository) GetByKeyHash(ctx context.Context, keyHash string) (*models.Site, error) {
	query := `
		SELECT id, domain, key_hash, status, created_at
		FROM sites
		WHERE key_hash = $1
	`

	site := &models.Site{}
	err := r.db.Pool.QueryRow(ctx, query, keyHash).Scan(
		&site.ID,
		&site.Domain,
		&site.KeyHash,
		&site.Status,
		&site.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("failed to get site by key: %w", err)
	}

	return site, nil
}

func (r *siteRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM sites ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list site ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan site id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating site ids: %w", err)
	}

	return ids, nil
}

func (r *siteRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM sites WHERE status = $1`, models.SiteStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sites: %w", err)
	}
	return count, nil
}
