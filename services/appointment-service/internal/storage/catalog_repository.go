package storage

import (
	"context"

	"github.com/merodias-lab/clinic/libs/db"
)

// Service is a bookable clinic service from the read-only catalog.
type Service struct {
	ID          string
	Title       string
	Description string
}

type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, title, COALESCE(description, '')
		FROM services
		ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.Title, &s.Description); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return services, nil
}

func (r *CatalogRepository) ServiceExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM services WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}
